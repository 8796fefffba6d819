package glass

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/compose"
	"github.com/gogpu/glass/internal/derive"
	"github.com/gogpu/glass/internal/gpu"
	"github.com/gogpu/glass/internal/pointer"
	"github.com/gogpu/glass/internal/shape"
	"github.com/gogpu/glass/internal/system"
)

// Errors returned by Scene.
var (
	// ErrInvalidSize is returned for a zero or negative viewport.
	ErrInvalidSize = errors.New("glass: invalid viewport size")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("glass: scene closed")

	// ErrNotInitialized is returned by GPU-facing operations before Init.
	ErrNotInitialized = errors.New("glass: scene not initialized")

	// ErrAlreadyInitialized is returned by a second Init call.
	ErrAlreadyInitialized = errors.New("glass: scene already initialized")
)

// Scene is a set of glass shapes over a background, with the pointer
// interaction that drags them.
//
// Shapes are inserted before Init. Init mirrors them to the GPU, creates
// the derived textures and the composition pipeline, and generates once.
// After that every drag step moves one shape, regenerates the silhouette,
// then regenerates the light map from it, all before the call returns.
//
// A Scene is safe for concurrent use.
type Scene struct {
	mu sync.Mutex

	adapter gpucore.GPUAdapter
	opts    sceneOptions
	format  gpucore.TextureFormat

	store      *shape.Store
	system     *system.Group
	silhouette *derive.Silhouette
	lightMap   *derive.LightMap
	layer      *compose.Layer
	machine    *pointer.Machine

	// frame is the Snapshot target, recreated at the viewport size.
	frame gpucore.TextureID

	initialized bool
	closed      bool
	eventErr    error
}

// NewScene returns an empty scene on adapter. The scene does not own the
// adapter.
func NewScene(adapter gpucore.GPUAdapter, opts ...SceneOption) *Scene {
	o := defaultSceneOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Scene{
		adapter: adapter,
		opts:    o,
		store:   shape.NewStore(),
		system:  system.New(),
	}
	s.machine = pointer.NewMachine(s.store, dragEffector{s}, o.strict)
	return s
}

// InsertCircle adds a circle and returns its index.
// It panics after Init.
func (s *Scene) InsertCircle(c Circle, center Vec2, tint RGBA) Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.InsertCircle(c, center, tint)
}

// InsertBox adds a box and returns its index.
// It panics after Init.
func (s *Scene) InsertBox(b Box, center Vec2, tint RGBA) Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.InsertBox(b, center, tint)
}

// InsertRoundedBox adds a rounded box and returns its index.
// It panics after Init.
func (s *Scene) InsertRoundedBox(r RoundedBox, center Vec2, tint RGBA) Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.InsertRoundedBox(r, center, tint)
}

// Init creates every GPU resource for a width x height viewport and
// generates the derived textures.
func (s *Scene) Init(width, height int) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.initialized {
		return ErrAlreadyInitialized
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	format, ok := gpu.FromTextureFormat(s.opts.format)
	if !ok {
		return fmt.Errorf("glass: surface format %v: %w", s.opts.format, gpucore.ErrUnsupported)
	}
	s.format = format

	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if err := s.store.InitGPU(s.adapter); err != nil {
		return fmt.Errorf("glass: init: %w", err)
	}
	if err := s.system.Init(s.adapter, width, height); err != nil {
		return fmt.Errorf("glass: init: %w", err)
	}
	if s.silhouette, err = derive.NewSilhouette(s.adapter, s.system, s.store); err != nil {
		return fmt.Errorf("glass: init: %w", err)
	}
	if s.lightMap, err = derive.NewLightMap(s.adapter, s.system, s.store, s.silhouette); err != nil {
		return fmt.Errorf("glass: init: %w", err)
	}
	s.layer, err = compose.New(s.adapter, s.system, s.silhouette, s.lightMap,
		s.background(), format, s.opts.params.params())
	if err != nil {
		return fmt.Errorf("glass: init: %w", err)
	}
	if err := s.resize(width, height); err != nil {
		return fmt.Errorf("glass: init: %w", err)
	}
	s.initialized = true
	counts := s.store.Kinds()
	Logger().Info("glass: scene initialized",
		"backend", s.adapter.Name(),
		"width", width, "height", height,
		"circles", counts.Circles, "boxes", counts.Boxes, "rounded_boxes", counts.RoundedBoxes)
	return nil
}

// background returns the configured background, in order of precedence:
// WithBackground, WithBackgroundImage, WithBackgroundColor.
func (s *Scene) background() Background {
	switch {
	case s.opts.background != nil:
		return s.opts.background
	case s.opts.backgroundImage != nil:
		return compose.NewImageBackground(s.adapter, s.opts.backgroundImage)
	default:
		return compose.NewSolidBackground(s.adapter, s.opts.backgroundColor)
	}
}

// Resize recreates every size-dependent resource and regenerates the
// derived textures.
func (s *Scene) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if err := s.resize(width, height); err != nil {
		return fmt.Errorf("glass: resize: %w", err)
	}
	return nil
}

func (s *Scene) resize(width, height int) error {
	if err := s.system.Resize(width, height); err != nil {
		return err
	}
	if err := s.silhouette.Resize(width, height); err != nil {
		return err
	}
	if err := s.lightMap.Resize(width, height); err != nil {
		return err
	}
	if err := s.layer.Resize(width, height); err != nil {
		return err
	}
	s.destroyFrame()
	return nil
}

// ready reports whether the scene accepts GPU-facing calls.
func (s *Scene) ready() error {
	if s.closed {
		return ErrClosed
	}
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// CursorMove updates the cursor uniform and feeds a move event to the
// pointer machine. While dragging this moves the shape and regenerates.
func (s *Scene) CursorMove(x, y float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.system.CursorMove(x, y); err != nil {
		return fmt.Errorf("glass: cursor move: %w", err)
	}
	return s.apply(pointer.Move(Vec2{X: x, Y: y}))
}

// CursorLeave parks the cursor outside the viewport. A hovered shape is
// released; a press or drag in progress is kept.
func (s *Scene) CursorLeave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.system.CursorLeave(); err != nil {
		return fmt.Errorf("glass: cursor leave: %w", err)
	}
	return s.apply(pointer.Leave())
}

// MousePress feeds a primary button press.
func (s *Scene) MousePress() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.apply(pointer.Press())
}

// MouseRelease feeds a primary button release.
func (s *Scene) MouseRelease() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.apply(pointer.Release())
}

func (s *Scene) apply(e pointer.Event) error {
	if _, err := s.machine.Apply(e); err != nil {
		return fmt.Errorf("glass: %w", err)
	}
	return nil
}

// dragEffector moves the dragged shape, then regenerates the silhouette
// and the light map in that order.
type dragEffector struct{ s *Scene }

func (d dragEffector) Drag(i shape.Index, press, cursor shape.Vec2) error {
	if err := d.s.store.DragMove(i, press, cursor); err != nil {
		return err
	}
	if err := d.s.silhouette.Generate(); err != nil {
		return err
	}
	return d.s.lightMap.Generate()
}

// State returns the pointer interaction state.
func (s *Scene) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Shapes returns the shape store. Reads are safe while no other scene
// method is running.
func (s *Scene) Shapes() *Store { return s.store }

// Silhouette returns the distance and tint stage, or nil before Init.
func (s *Scene) Silhouette() *Silhouette {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silhouette
}

// LightMap returns the normal map stage, or nil before Init.
func (s *Scene) LightMap() *LightMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lightMap
}

// Size returns the viewport size.
func (s *Scene) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.Size()
}

// SetComposeParams replaces the glass shading parameters.
func (s *Scene) SetComposeParams(p ComposeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.params = p
	if s.layer == nil {
		return nil
	}
	return s.layer.SetParams(p.params())
}

// Render composes the scene into target, a texture of the surface format
// at the viewport size with render-attachment usage.
func (s *Scene) Render(target gpucore.TextureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.render(target)
}

func (s *Scene) render(target gpucore.TextureID) error {
	c := s.opts.clear
	bg := gpucore.Color{R: float32(c.R), G: float32(c.G), B: float32(c.B), A: float32(c.A)}
	if err := s.layer.Render(target, bg); err != nil {
		return fmt.Errorf("glass: render: %w", err)
	}
	return nil
}

// Snapshot renders the scene into an internal frame and reads it back.
// It stalls until the GPU is idle.
func (s *Scene) Snapshot() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	width, height := s.system.Size()
	if s.frame == gpucore.InvalidID {
		id, err := s.adapter.CreateTexture(&gpucore.TextureDesc{
			Label:  "snapshot",
			Width:  width,
			Height: height,
			Format: s.format,
			Usage:  gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageCopySrc,
		})
		if err != nil {
			return nil, fmt.Errorf("glass: snapshot: %w", err)
		}
		s.frame = id
	}
	if err := s.render(s.frame); err != nil {
		return nil, err
	}
	pix, err := s.adapter.ReadTexture(s.frame)
	if err != nil {
		return nil, fmt.Errorf("glass: snapshot: %w", err)
	}
	if s.format == gpucore.TextureFormatBGRA8Unorm || s.format == gpucore.TextureFormatBGRA8UnormSRGB {
		for i := 0; i+3 < len(pix); i += 4 {
			pix[i], pix[i+2] = pix[i+2], pix[i]
		}
	}
	return &image.RGBA{Pix: pix, Stride: 4 * width, Rect: image.Rect(0, 0, width, height)}, nil
}

func (s *Scene) destroyFrame() {
	if s.frame != gpucore.InvalidID {
		s.adapter.DestroyTexture(s.frame)
		s.frame = gpucore.InvalidID
	}
}

// Err returns the last error from an attached event source, if any.
func (s *Scene) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventErr
}

// Close releases every GPU resource the scene created. The adapter is
// left open. Close is idempotent.
func (s *Scene) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.release()
	s.closed = true
	return nil
}

// release destroys in reverse creation order. Every stage tolerates a
// partial construction.
func (s *Scene) release() {
	s.destroyFrame()
	if s.layer != nil {
		s.layer.Destroy()
		s.layer = nil
	}
	if s.lightMap != nil {
		s.lightMap.Destroy()
		s.lightMap = nil
	}
	if s.silhouette != nil {
		s.silhouette.Destroy()
		s.silhouette = nil
	}
	s.system.Destroy()
	s.store.Destroy()
	s.initialized = false
}
