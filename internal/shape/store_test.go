package shape

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/software"
)

var red = RGBAFromU32(0xff0000ff)

func newAdapter(t *testing.T) *software.Adapter {
	t.Helper()
	a := software.New(software.WithWorkers(1))
	t.Cleanup(a.Destroy)
	return a
}

func TestRGBAFromU32(t *testing.T) {
	got := RGBAFromU32(0x336699cc)
	want := RGBA{R: 0x33 / 255.0, G: 0x66 / 255.0, B: 0x99 / 255.0, A: 0xcc / 255.0}
	if got != want {
		t.Errorf("RGBAFromU32() = %+v, want %+v", got, want)
	}
}

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"entry", Entry{}.Size(), 8},
		{"position", Position{}.Size(), 8},
		{"appearance", Appearance{}.Size(), 16},
		{"circle", Circle{}.Size(), 4},
		{"box", Box{}.Size(), 8},
		{"rounded box", RoundedBox{}.Size(), 16},
	}
	for _, tt := range tests {
		if tt.size != tt.want {
			t.Errorf("%s size = %d, want %d", tt.name, tt.size, tt.want)
		}
	}
}

func TestStore_InsertKeepsColumnsAligned(t *testing.T) {
	s := NewStore()
	c := s.InsertCircle(Circle{Radius: 4}, Vec2{1, 2}, red)
	b := s.InsertBox(Box{HalfSize: Vec2{3, 5}}, Vec2{10, 20}, red)
	c2 := s.InsertCircle(Circle{Radius: 9}, Vec2{7, 7}, red)

	if c != 0 || b != 1 || c2 != 2 {
		t.Fatalf("indices = %d %d %d, want 0 1 2", c, b, c2)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if got := s.Kinds(); got != (Counts{Circles: 2, Boxes: 1}) {
		t.Errorf("Kinds() = %+v", got)
	}

	e, err := s.Entry(c2)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e.Kind != KindCircle || e.KindIndex != 1 {
		t.Errorf("Entry(2) = %+v, want circle #1", e)
	}
	g, err := s.GeometryOf(c2)
	if err != nil {
		t.Fatalf("GeometryOf: %v", err)
	}
	if g.(Circle).Radius != 9 {
		t.Errorf("GeometryOf(2) = %+v", g)
	}
}

func TestStore_AccessorsOutOfRange(t *testing.T) {
	s := NewStore()
	s.InsertCircle(Circle{Radius: 1}, Vec2{}, red)

	checks := []struct {
		name string
		err  error
	}{
		{"Entry", func() error { _, err := s.Entry(1); return err }()},
		{"Position", func() error { _, err := s.Position(1); return err }()},
		{"Appearance", func() error { _, err := s.Appearance(5); return err }()},
		{"Circle", func() error { _, err := s.Circle(1); return err }()},
		{"Box", func() error { _, err := s.Box(0); return err }()},
		{"RoundedBox", func() error { _, err := s.RoundedBox(0); return err }()},
		{"Geometry", func() error { _, err := s.Geometry(Kind(0), 0); return err }()},
		{"SetPosition", s.SetPosition(3, Vec2{})},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrIndexOutOfRange) {
			t.Errorf("%s error = %v, want ErrIndexOutOfRange", c.name, c.err)
		}
	}
}

func TestStore_InitGPU(t *testing.T) {
	a := newAdapter(t)
	s := NewStore()
	s.InsertCircle(Circle{Radius: 64}, Vec2{128, 128}, red)

	if s.BindGroup() != gpucore.InvalidID {
		t.Error("BindGroup() before InitGPU should be invalid")
	}
	if err := s.InitGPU(a); err != nil {
		t.Fatalf("InitGPU: %v", err)
	}
	if err := s.InitGPU(a); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second InitGPU() error = %v, want ErrAlreadyInitialized", err)
	}
	if s.Layout() == gpucore.InvalidID || s.BindGroup() == gpucore.InvalidID {
		t.Error("layout and bind group should be valid after InitGPU")
	}

	got, err := a.ReadBuffer(s.positions.Buffer(), 0, 8)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if x := math.Float32frombits(binary.LittleEndian.Uint32(got)); x != 128 {
		t.Errorf("mirrored center.x = %v, want 128", x)
	}
}

func TestStore_InsertAfterInitPanics(t *testing.T) {
	a := newAdapter(t)
	s := NewStore()
	if err := s.InitGPU(a); err != nil {
		t.Fatalf("InitGPU: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("InsertCircle after InitGPU should panic")
		}
	}()
	s.InsertCircle(Circle{Radius: 1}, Vec2{}, red)
}

func TestStore_InsertWhenFullKeepsColumnsAligned(t *testing.T) {
	saved := maxShapes
	maxShapes = 1
	defer func() { maxShapes = saved }()

	tests := []struct {
		name   string
		insert func(*Store)
	}{
		{"circle", func(s *Store) { s.InsertCircle(Circle{Radius: 1}, Vec2{}, red) }},
		{"box", func(s *Store) { s.InsertBox(Box{HalfSize: Vec2{1, 1}}, Vec2{}, red) }},
		{"rounded box", func(s *Store) { s.InsertRoundedBox(RoundedBox{HalfSize: Vec2{1, 1}}, Vec2{}, red) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.InsertCircle(Circle{Radius: 2}, Vec2{}, red)
			func() {
				defer func() {
					if recover() == nil {
						t.Error("insert into a full store should panic")
					}
				}()
				tt.insert(s)
			}()
			if got, want := s.Kinds(), (Counts{Circles: 1}); got != want {
				t.Errorf("Kinds() = %+v, want %+v", got, want)
			}
			if s.Len() != 1 || s.positions.Len() != 1 || s.appearances.Len() != 1 {
				t.Errorf("column lengths = %d, %d, %d; want 1, 1, 1",
					s.Len(), s.positions.Len(), s.appearances.Len())
			}
		})
	}
}

func TestStore_SetPositionWritesOneRecord(t *testing.T) {
	a := newAdapter(t)
	s := NewStore()
	for i := range 4 {
		s.InsertCircle(Circle{Radius: 2}, Vec2{float32(i), 0}, red)
	}
	if err := s.InitGPU(a); err != nil {
		t.Fatalf("InitGPU: %v", err)
	}

	before := a.Stats()
	if err := s.SetPosition(2, Vec2{50, 60}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	after := a.Stats()
	if after.BufferWrites-before.BufferWrites != 1 || after.BufferBytes-before.BufferBytes != 8 {
		t.Errorf("SetPosition wrote %d bytes in %d writes, want 8 in 1",
			after.BufferBytes-before.BufferBytes, after.BufferWrites-before.BufferWrites)
	}

	got, _ := a.ReadBuffer(s.positions.Buffer(), 16, 8)
	x := math.Float32frombits(binary.LittleEndian.Uint32(got))
	y := math.Float32frombits(binary.LittleEndian.Uint32(got[4:]))
	if x != 50 || y != 60 {
		t.Errorf("mirrored position 2 = (%v, %v), want (50, 60)", x, y)
	}
}

func TestStore_DragMove(t *testing.T) {
	tests := []struct {
		name   string
		insert func(s *Store) Index
		press  Vec2
		cursor Vec2
		want   Vec2
	}{
		{
			name:   "circle",
			insert: func(s *Store) Index { return s.InsertCircle(Circle{Radius: 64}, Vec2{128, 128}, red) },
			press:  Vec2{64, 64},
			cursor: Vec2{133, 125},
			want:   Vec2{133, 125},
		},
		{
			name:   "box rounds min",
			insert: func(s *Store) Index { return s.InsertBox(Box{HalfSize: Vec2{10, 5}}, Vec2{50, 50}, red) },
			press:  Vec2{2, 3},
			cursor: Vec2{12.5, 13.4},
			want:   Vec2{21, 15},
		},
		{
			name: "rounded box",
			insert: func(s *Store) Index {
				return s.InsertRoundedBox(RoundedBox{HalfSize: Vec2{8, 8}, CornerRadius: 2}, Vec2{0, 0}, red)
			},
			press:  Vec2{0, 0},
			cursor: Vec2{-4.5, 4.5},
			want:   Vec2{3, 13},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			i := tt.insert(s)
			if err := s.DragMove(i, tt.press, tt.cursor); err != nil {
				t.Fatalf("DragMove: %v", err)
			}
			p, _ := s.Position(i)
			if p.Center != tt.want {
				t.Errorf("center = %+v, want %+v", p.Center, tt.want)
			}
		})
	}
}

func TestStore_Destroy(t *testing.T) {
	a := newAdapter(t)
	s := NewStore()
	s.InsertBox(Box{HalfSize: Vec2{1, 1}}, Vec2{}, red)
	if err := s.InitGPU(a); err != nil {
		t.Fatalf("InitGPU: %v", err)
	}
	s.Destroy()
	s.Destroy()
	if n := a.LiveResources(); n != 0 {
		t.Errorf("LiveResources() = %d after Destroy, want 0", n)
	}
	if err := s.InitGPU(a); err != nil {
		t.Fatalf("InitGPU() after Destroy: %v", err)
	}
	if s.Len() != 1 || s.Layout() == gpucore.InvalidID {
		t.Errorf("after re-init: Len() = %d, Layout() = %v", s.Len(), s.Layout())
	}
	if err := s.InitGPU(a); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second InitGPU() error = %v, want ErrAlreadyInitialized", err)
	}
}
