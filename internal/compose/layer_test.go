package compose

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/gogpu/naga"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/derive"
	"github.com/gogpu/glass/internal/shape"
	"github.com/gogpu/glass/internal/software"
	"github.com/gogpu/glass/internal/system"
)

const size = 64

type scene struct {
	adapter    *software.Adapter
	system     *system.Group
	silhouette *derive.Silhouette
	lightMap   *derive.LightMap
	layer      *Layer
	target     gpucore.TextureID
}

func newScene(t *testing.T, format gpucore.TextureFormat) *scene {
	t.Helper()
	a := software.New(software.WithWorkers(2))
	t.Cleanup(a.Destroy)

	store := shape.NewStore()
	store.InsertCircle(shape.Circle{Radius: 24}, shape.Vec2{X: 32, Y: 32}, shape.RGBAFromU32(0xff0000ff))
	if err := store.InitGPU(a); err != nil {
		t.Fatalf("InitGPU: %v", err)
	}
	sys := system.New()
	if err := sys.Init(a, size, size); err != nil {
		t.Fatalf("system Init: %v", err)
	}
	sil, err := derive.NewSilhouette(a, sys, store)
	if err != nil {
		t.Fatalf("NewSilhouette: %v", err)
	}
	lm, err := derive.NewLightMap(a, sys, store, sil)
	if err != nil {
		t.Fatalf("NewLightMap: %v", err)
	}
	if err := sil.Resize(size, size); err != nil {
		t.Fatalf("silhouette Resize: %v", err)
	}
	if err := lm.Resize(size, size); err != nil {
		t.Fatalf("light map Resize: %v", err)
	}

	bg := NewSolidBackground(a, color.RGBA{B: 255, A: 255})
	layer, err := New(a, sys, sil, lm, bg, format, DefaultParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	target, err := a.CreateTexture(&gpucore.TextureDesc{
		Label:  "frame",
		Width:  size,
		Height: size,
		Format: format,
		Usage:  gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return &scene{adapter: a, system: sys, silhouette: sil, lightMap: lm, layer: layer, target: target}
}

func (s *scene) pixel(t *testing.T, x, y int) [4]byte {
	t.Helper()
	px, err := s.adapter.ReadTexture(s.target)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	o := (y*size + x) * 4
	return [4]byte{px[o], px[o+1], px[o+2], px[o+3]}
}

func near(a, b byte) bool {
	d := int(a) - int(b)
	return d >= -1 && d <= 1
}

func TestLayer_EncodeBeforeResize(t *testing.T) {
	s := newScene(t, gpucore.TextureFormatRGBA8Unorm)
	if err := s.layer.Render(s.target, gpucore.Color{}); !errors.Is(err, derive.ErrNotInitialized) {
		t.Errorf("Render() error = %v, want ErrNotInitialized", err)
	}
}

func TestLayer_Render(t *testing.T) {
	s := newScene(t, gpucore.TextureFormatRGBA8Unorm)
	if err := s.layer.Resize(size, size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := s.layer.Render(s.target, gpucore.Color{}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	if got := s.pixel(t, 0, 0); got != [4]byte{0, 0, 255, 255} {
		t.Errorf("outside pixel = %v, want background blue", got)
	}
	// Flat top of the glass: 65% background, 35% red tint.
	got := s.pixel(t, 31, 31)
	if !near(got[0], 89) || got[1] > 1 || !near(got[2], 166) || got[3] != 255 {
		t.Errorf("center pixel = %v, want about [89 0 166 255]", got)
	}
	if s.layer.Draws() != 1 {
		t.Errorf("Draws() = %d, want 1", s.layer.Draws())
	}
}

func TestLayer_CursorGlow(t *testing.T) {
	s := newScene(t, gpucore.TextureFormatRGBA8Unorm)
	if err := s.layer.Resize(size, size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := s.layer.Render(s.target, gpucore.Color{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	dark := s.pixel(t, 31, 31)

	if err := s.system.CursorMove(32, 32); err != nil {
		t.Fatalf("CursorMove: %v", err)
	}
	if err := s.layer.Render(s.target, gpucore.Color{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lit := s.pixel(t, 31, 31)
	if lit[0] <= dark[0] || lit[2] <= dark[2] {
		t.Errorf("pixel under cursor = %v, want brighter than %v", lit, dark)
	}
	if got := s.pixel(t, 0, 0); got != [4]byte{0, 0, 255, 255} {
		t.Errorf("outside pixel = %v, want unaffected by glow", got)
	}
}

func TestLayer_BGRATarget(t *testing.T) {
	s := newScene(t, gpucore.TextureFormatBGRA8Unorm)
	if err := s.layer.Resize(size, size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := s.layer.Render(s.target, gpucore.Color{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := s.pixel(t, 0, 0); got != [4]byte{255, 0, 0, 255} {
		t.Errorf("outside BGRA pixel = %v, want [255 0 0 255]", got)
	}
}

func TestLayer_ResizeReplacesBackdrop(t *testing.T) {
	s := newScene(t, gpucore.TextureFormatRGBA8Unorm)
	if err := s.layer.Resize(size, size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	first := s.layer.backdrop
	live := s.adapter.LiveResources()
	if err := s.layer.Resize(size, size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if s.layer.backdrop == first {
		t.Error("backdrop group reused across resize")
	}
	if n := s.adapter.LiveResources(); n != live {
		t.Errorf("LiveResources() = %d, want %d", n, live)
	}
}

func TestLayer_Destroy(t *testing.T) {
	s := newScene(t, gpucore.TextureFormatRGBA8Unorm)
	if err := s.layer.Resize(size, size); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	before := s.adapter.LiveResources()
	s.layer.Destroy()
	// module, pipeline layout, pipeline, backdrop layout, sampler, params,
	// backdrop group and background texture.
	if n := before - s.adapter.LiveResources(); n != 8 {
		t.Errorf("Destroy released %d resources, want 8", n)
	}
}

func TestImageBackground_Scales(t *testing.T) {
	a := software.New(software.WithWorkers(1))
	defer a.Destroy()

	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	bg := NewImageBackground(a, src)
	if err := bg.Resize(8, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	px, err := a.ReadTexture(bg.Texture())
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if len(px) != 8*4*4 {
		t.Fatalf("texture bytes = %d, want %d", len(px), 8*4*4)
	}
	for i, v := range px {
		if !near(v, 200) {
			t.Fatalf("byte %d = %d, want 200", i, v)
		}
	}
	old := bg.Texture()
	if err := bg.Resize(2, 2); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if bg.Texture() == old {
		t.Error("texture reused across resize")
	}
	bg.Destroy()
	if n := a.LiveResources(); n != 0 {
		t.Errorf("LiveResources() = %d, want 0", n)
	}
}

func TestParams_RoundTrip(t *testing.T) {
	p := DefaultParams()
	if got := readParams(p.bytes()); got != p {
		t.Errorf("readParams(bytes()) = %+v, want %+v", got, p)
	}
}

func TestShader_Compile(t *testing.T) {
	src := WGSL()
	if _, err := naga.Parse(src); err != nil {
		t.Fatalf("parse compose shader: %v", err)
	}
	if _, err := naga.Compile(src); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") ||
			strings.Contains(msg, "lowering error") {
			t.Skipf("Skipping: naga limitation: %v", err)
		}
		t.Fatalf("compile compose shader: %v", err)
	}
}
