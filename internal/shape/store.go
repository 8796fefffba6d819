// Package shape implements the columnar shape store.
//
// Shapes live in parallel columns indexed by insertion order: entries,
// positions and appearances share one index space, and each kind has its
// own geometry table addressed by Entry.KindIndex. After InitGPU every
// column is mirrored into a read-only storage buffer and exposed to shaders
// through one bind group.
package shape

import (
	"errors"
	"fmt"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/column"
)

// Errors returned by the store.
var (
	// ErrIndexOutOfRange is returned by accessors for unknown indices.
	ErrIndexOutOfRange = errors.New("shape: index out of range")

	// ErrNotInitialized is returned by GPU-facing operations before InitGPU.
	ErrNotInitialized = errors.New("shape: gpu mirror not initialized")

	// ErrAlreadyInitialized is returned by a second InitGPU call.
	ErrAlreadyInitialized = errors.New("shape: gpu mirror already initialized")
)

// Bindings of the shapes bind group.
const (
	BindingEntries      = 0
	BindingPositions    = 1
	BindingAppearances  = 2
	BindingCircles      = 3
	BindingBoxes        = 4
	BindingRoundedBoxes = 5
)

// maxShapes is the most shapes a store holds.
var maxShapes uint64 = column.MaxLen

// Counts holds the number of shapes per kind.
type Counts struct {
	Circles      int
	Boxes        int
	RoundedBoxes int
}

// Store owns the shape columns and their GPU mirror.
type Store struct {
	entries      *column.GpuColumn[Entry]
	positions    *column.GpuColumn[Position]
	appearances  *column.GpuColumn[Appearance]
	circles      *column.GpuColumn[Circle]
	boxes        *column.GpuColumn[Box]
	roundedBoxes *column.GpuColumn[RoundedBox]

	adapter gpucore.GPUAdapter
	layout  gpucore.BindGroupLayoutID
	group   gpucore.BindGroupID
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		entries:      column.NewGpuColumn[Entry]("shape entries"),
		positions:    column.NewGpuColumn[Position]("shape positions"),
		appearances:  column.NewGpuColumn[Appearance]("shape appearances"),
		circles:      column.NewGpuColumn[Circle]("circles"),
		boxes:        column.NewGpuColumn[Box]("boxes"),
		roundedBoxes: column.NewGpuColumn[RoundedBox]("rounded boxes"),
	}
}

// Initialized reports whether InitGPU has completed.
func (s *Store) Initialized() bool { return s.adapter != nil }

// Len returns the number of shapes.
func (s *Store) Len() int { return s.entries.Len() }

// Kinds returns the number of shapes of each kind.
func (s *Store) Kinds() Counts {
	return Counts{
		Circles:      s.circles.Len(),
		Boxes:        s.boxes.Len(),
		RoundedBoxes: s.roundedBoxes.Len(),
	}
}

// mustInsertable panics before any column is touched, so a failed insert
// leaves the columns aligned.
func (s *Store) mustInsertable() {
	if s.Initialized() {
		panic("shape: insert after InitGPU")
	}
	if uint64(s.entries.Len()) >= maxShapes || s.entries.Full() {
		panic(fmt.Sprintf("shape: store full at %d shapes", s.entries.Len()))
	}
}

// insert appends the shared columns for a shape whose geometry was stored
// at kindIndex.
func (s *Store) insert(kind Kind, kindIndex uint32, center Vec2, tint RGBA) Index {
	i := s.entries.Insert(Entry{Kind: kind, KindIndex: kindIndex})
	s.positions.Insert(Position{Center: center})
	s.appearances.Insert(Appearance{Tint: tint})
	return Index(i)
}

// InsertCircle appends a circle and returns its index.
// It panics after InitGPU or when the index space is exhausted.
func (s *Store) InsertCircle(c Circle, center Vec2, tint RGBA) Index {
	s.mustInsertable()
	return s.insert(KindCircle, s.circles.Insert(c), center, tint)
}

// InsertBox appends a box and returns its index.
// It panics after InitGPU or when the index space is exhausted.
func (s *Store) InsertBox(b Box, center Vec2, tint RGBA) Index {
	s.mustInsertable()
	return s.insert(KindBox, s.boxes.Insert(b), center, tint)
}

// InsertRoundedBox appends a rounded box and returns its index.
// It panics after InitGPU or when the index space is exhausted.
func (s *Store) InsertRoundedBox(r RoundedBox, center Vec2, tint RGBA) Index {
	s.mustInsertable()
	return s.insert(KindRoundedBox, s.roundedBoxes.Insert(r), center, tint)
}

// InitGPU mirrors every column into a storage buffer and creates the shapes
// bind group. It runs once.
func (s *Store) InitGPU(adapter gpucore.GPUAdapter) (err error) {
	if s.Initialized() {
		return ErrAlreadyInitialized
	}
	cols := []interface {
		InitBuffer(gpucore.GPUAdapter, gpucore.BufferUsage) error
		BindGroupEntry(uint32) gpucore.BindGroupEntry
		Destroy()
	}{s.entries, s.positions, s.appearances, s.circles, s.boxes, s.roundedBoxes}

	defer func() {
		if err != nil {
			for _, c := range cols {
				c.Destroy()
			}
		}
	}()

	layoutEntries := make([]gpucore.BindGroupLayoutEntry, len(cols))
	groupEntries := make([]gpucore.BindGroupEntry, len(cols))
	for i, c := range cols {
		if err := c.InitBuffer(adapter, gpucore.BufferUsageStorage); err != nil {
			return fmt.Errorf("shape: init gpu: %w", err)
		}
		layoutEntries[i] = gpucore.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Type:       gpucore.BindingTypeReadOnlyStorageBuffer,
			Visibility: gpucore.ShaderStageVertexFragment,
		}
		groupEntries[i] = c.BindGroupEntry(uint32(i))
	}

	layout, err := adapter.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label:   "shapes",
		Entries: layoutEntries,
	})
	if err != nil {
		return fmt.Errorf("shape: create layout: %w", err)
	}
	group, err := adapter.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   "shapes",
		Layout:  layout,
		Entries: groupEntries,
	})
	if err != nil {
		adapter.DestroyBindGroupLayout(layout)
		return fmt.Errorf("shape: create bind group: %w", err)
	}

	s.adapter = adapter
	s.layout = layout
	s.group = group
	slogger().Debug("shape: gpu mirror ready", "shapes", s.Len(),
		"circles", s.circles.Len(), "boxes", s.boxes.Len(), "rounded_boxes", s.roundedBoxes.Len())
	return nil
}

// Layout returns the shapes bind group layout, or InvalidID before InitGPU.
func (s *Store) Layout() gpucore.BindGroupLayoutID { return s.layout }

// BindGroup returns the shapes bind group, or InvalidID before InitGPU.
func (s *Store) BindGroup() gpucore.BindGroupID { return s.group }

// Destroy releases the GPU mirror. The CPU columns are kept and the store
// can be initialized again.
func (s *Store) Destroy() {
	if !s.Initialized() {
		return
	}
	s.adapter.DestroyBindGroup(s.group)
	s.adapter.DestroyBindGroupLayout(s.layout)
	s.entries.Destroy()
	s.positions.Destroy()
	s.appearances.Destroy()
	s.circles.Destroy()
	s.boxes.Destroy()
	s.roundedBoxes.Destroy()
	s.group = gpucore.InvalidID
	s.layout = gpucore.InvalidID
	s.adapter = nil
}

// SetPosition moves shape i. After InitGPU only the one position record is
// written to the mirror.
func (s *Store) SetPosition(i Index, center Vec2) error {
	if !s.positions.Set(uint32(i), Position{Center: center}) {
		return fmt.Errorf("shape: set position %d: %w", i, ErrIndexOutOfRange)
	}
	if !s.positions.HasBuffer() {
		return nil
	}
	if err := s.positions.UpdateRecord(uint32(i)); err != nil {
		return fmt.Errorf("shape: set position %d: %w", i, err)
	}
	return nil
}

// DragMove places shape i so that the press point, given relative to the
// bounding box min, lies under cursor. The new min is rounded to whole
// pixels.
func (s *Store) DragMove(i Index, press, cursor Vec2) error {
	g, err := s.GeometryOf(i)
	if err != nil {
		return err
	}
	boxMin := cursor.Sub(press).Round()
	return s.SetPosition(i, boxMin.Sub(g.LocalBounds().Min))
}

// Entry returns the entry of shape i.
func (s *Store) Entry(i Index) (Entry, error) {
	e, ok := s.entries.Get(uint32(i))
	if !ok {
		return Entry{}, fmt.Errorf("shape: entry %d: %w", i, ErrIndexOutOfRange)
	}
	return e, nil
}

// Position returns the position of shape i.
func (s *Store) Position(i Index) (Position, error) {
	p, ok := s.positions.Get(uint32(i))
	if !ok {
		return Position{}, fmt.Errorf("shape: position %d: %w", i, ErrIndexOutOfRange)
	}
	return p, nil
}

// Appearance returns the appearance of shape i.
func (s *Store) Appearance(i Index) (Appearance, error) {
	a, ok := s.appearances.Get(uint32(i))
	if !ok {
		return Appearance{}, fmt.Errorf("shape: appearance %d: %w", i, ErrIndexOutOfRange)
	}
	return a, nil
}

// Circle returns circle k of the circle table.
func (s *Store) Circle(k uint32) (Circle, error) {
	c, ok := s.circles.Get(k)
	if !ok {
		return Circle{}, fmt.Errorf("shape: circle %d: %w", k, ErrIndexOutOfRange)
	}
	return c, nil
}

// Box returns box k of the box table.
func (s *Store) Box(k uint32) (Box, error) {
	b, ok := s.boxes.Get(k)
	if !ok {
		return Box{}, fmt.Errorf("shape: box %d: %w", k, ErrIndexOutOfRange)
	}
	return b, nil
}

// RoundedBox returns rounded box k of the rounded box table.
func (s *Store) RoundedBox(k uint32) (RoundedBox, error) {
	r, ok := s.roundedBoxes.Get(k)
	if !ok {
		return RoundedBox{}, fmt.Errorf("shape: rounded box %d: %w", k, ErrIndexOutOfRange)
	}
	return r, nil
}

// Geometry returns entry k of the table selected by kind.
func (s *Store) Geometry(kind Kind, k uint32) (Geometry, error) {
	switch kind {
	case KindCircle:
		return s.Circle(k)
	case KindBox:
		return s.Box(k)
	case KindRoundedBox:
		return s.RoundedBox(k)
	default:
		return nil, fmt.Errorf("shape: geometry of kind %d: %w", kind, ErrIndexOutOfRange)
	}
}

// GeometryOf returns the geometry of shape i.
func (s *Store) GeometryOf(i Index) (Geometry, error) {
	e, err := s.Entry(i)
	if err != nil {
		return nil, err
	}
	return s.Geometry(e.Kind, e.KindIndex)
}
