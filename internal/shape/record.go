package shape

import (
	"encoding/binary"
	"math"
)

// Kind identifies a shape geometry table. Zero is reserved as invalid.
type Kind uint32

// Shape kinds. The values are shared with the WGSL side.
const (
	KindCircle     Kind = 1
	KindBox        Kind = 2
	KindRoundedBox Kind = 3
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindBox:
		return "box"
	case KindRoundedBox:
		return "rounded-box"
	default:
		return "invalid"
	}
}

// Index is a stable shape handle: the position of the shape in insertion
// order.
type Index uint32

// Entry selects the geometry of a shape.
type Entry struct {
	Kind Kind

	// KindIndex addresses the table selected by Kind.
	KindIndex uint32
}

// Size implements column.Record.
func (Entry) Size() int { return 8 }

// Put implements column.Record.
func (e Entry) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], uint32(e.Kind))
	binary.LittleEndian.PutUint32(b[4:], e.KindIndex)
}

// Position is the center of a shape in framebuffer pixels.
type Position struct {
	Center Vec2
}

// Size implements column.Record.
func (Position) Size() int { return 8 }

// Put implements column.Record.
func (p Position) Put(b []byte) { putVec2(b, p.Center) }

// RGBA is a straight-alpha color with components in [0, 1].
type RGBA struct {
	R, G, B, A float32
}

// RGBAFromU32 unpacks a 0xRRGGBBAA color.
func RGBAFromU32(v uint32) RGBA {
	return RGBA{
		R: float32(v>>24&0xff) / 255,
		G: float32(v>>16&0xff) / 255,
		B: float32(v>>8&0xff) / 255,
		A: float32(v&0xff) / 255,
	}
}

// Appearance is the per-shape tint.
type Appearance struct {
	Tint RGBA
}

// Size implements column.Record.
func (Appearance) Size() int { return 16 }

// Put implements column.Record.
func (a Appearance) Put(b []byte) {
	putF32(b[0:], a.Tint.R)
	putF32(b[4:], a.Tint.G)
	putF32(b[8:], a.Tint.B)
	putF32(b[12:], a.Tint.A)
}

// Circle geometry.
type Circle struct {
	Radius float32
}

// Size implements column.Record.
func (Circle) Size() int { return 4 }

// Put implements column.Record.
func (c Circle) Put(b []byte) { putF32(b, c.Radius) }

// Box is an axis-aligned rectangle.
type Box struct {
	HalfSize Vec2
}

// Size implements column.Record.
func (Box) Size() int { return 8 }

// Put implements column.Record.
func (x Box) Put(b []byte) { putVec2(b, x.HalfSize) }

// RoundedBox is an axis-aligned rectangle with circular corners.
type RoundedBox struct {
	HalfSize     Vec2
	CornerRadius float32
}

// Size implements column.Record. The record is padded to 16 bytes.
func (RoundedBox) Size() int { return 16 }

// Put implements column.Record.
func (r RoundedBox) Put(b []byte) {
	putVec2(b, r.HalfSize)
	putF32(b[8:], r.CornerRadius)
	putF32(b[12:], 0)
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func putVec2(b []byte, v Vec2) {
	putF32(b[0:], v.X)
	putF32(b[4:], v.Y)
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func getVec2(b []byte) Vec2 {
	return Vec2{X: getF32(b[0:]), Y: getF32(b[4:])}
}
