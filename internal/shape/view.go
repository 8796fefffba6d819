package shape

import (
	_ "embed"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/gogpu/glass/gpucore"
)

//go:embed shaders/shapes.wgsl
var shapesWGSL string

// Far is the distance reported where no shape exists.
const Far float32 = 1e30

// WGSL returns the shape bindings and distance helpers for a shader that
// binds the shapes group at index group.
func WGSL(group uint32) string {
	return strings.ReplaceAll(shapesWGSL, "SHAPES_GROUP", strconv.FormatUint(uint64(group), 10))
}

// View reads the shapes bind group from CPU fragment bindings. It is the
// CPU counterpart of the helpers returned by WGSL and reads the same bytes
// the GPU does.
type View struct {
	entries      []byte
	positions    []byte
	appearances  []byte
	circles      []byte
	boxes        []byte
	roundedBoxes []byte
}

// NewView binds a view to the shapes group at index group.
func NewView(b gpucore.Bindings, group uint32) View {
	return View{
		entries:      b.Buffer(group, BindingEntries),
		positions:    b.Buffer(group, BindingPositions),
		appearances:  b.Buffer(group, BindingAppearances),
		circles:      b.Buffer(group, BindingCircles),
		boxes:        b.Buffer(group, BindingBoxes),
		roundedBoxes: b.Buffer(group, BindingRoundedBoxes),
	}
}

// Len returns the number of entry slots, including zero padding.
func (v View) Len() int { return len(v.entries) / 8 }

// geometry decodes the geometry of slot i. Padding slots and dangling
// kind indices report false.
func (v View) geometry(i int) (Geometry, bool) {
	e := v.entries[i*8:]
	k := int(binary.LittleEndian.Uint32(e[4:]))
	switch Kind(binary.LittleEndian.Uint32(e)) {
	case KindCircle:
		if k < len(v.circles)/4 {
			return Circle{Radius: getF32(v.circles[k*4:])}, true
		}
	case KindBox:
		if k < len(v.boxes)/8 {
			return Box{HalfSize: getVec2(v.boxes[k*8:])}, true
		}
	case KindRoundedBox:
		if k < len(v.roundedBoxes)/16 {
			r := v.roundedBoxes[k*16:]
			return RoundedBox{HalfSize: getVec2(r), CornerRadius: getF32(r[8:])}, true
		}
	}
	return nil, false
}

// Center returns the center of slot i.
func (v View) Center(i int) Vec2 {
	if (i+1)*8 > len(v.positions) {
		return Vec2{}
	}
	return getVec2(v.positions[i*8:])
}

// Tint returns the tint of slot i.
func (v View) Tint(i int) RGBA {
	if (i+1)*16 > len(v.appearances) {
		return RGBA{}
	}
	a := v.appearances[i*16:]
	return RGBA{R: getF32(a), G: getF32(a[4:]), B: getF32(a[8:]), A: getF32(a[12:])}
}

// Nearest is the result of a nearest-shape scan.
type Nearest struct {
	Index      int
	Distance   float32
	HalfExtent float32
	Found      bool
}

// Nearest returns the shape with the smallest signed distance to p.
// The lowest index wins ties.
func (v View) Nearest(p Vec2) Nearest {
	n := Nearest{Distance: Far}
	for i := range v.Len() {
		g, ok := v.geometry(i)
		if !ok {
			continue
		}
		if d := g.Distance(p.Sub(v.Center(i))); d < n.Distance {
			n = Nearest{Index: i, Distance: d, HalfExtent: g.HalfExtent(), Found: true}
		}
	}
	return n
}
