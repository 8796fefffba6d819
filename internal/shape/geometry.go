package shape

import "math"

// Vec2 is a 2D point or vector in framebuffer pixels.
type Vec2 struct {
	X, Y float32
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Round rounds both components half away from zero.
func (v Vec2) Round() Vec2 {
	return Vec2{float32(math.Round(float64(v.X))), float32(math.Round(float64(v.Y)))}
}

// Length returns the Euclidean length of v.
func (v Vec2) Length() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// AABB is an axis-aligned box. Containment is half-open: [Min, Max).
type AABB struct {
	Min, Max Vec2
}

// Translate returns the box moved by d.
func (b AABB) Translate(d Vec2) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Contains reports whether p lies in [Min, Max) on both axes.
func (b AABB) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X < b.Max.X && p.Y >= b.Min.Y && p.Y < b.Max.Y
}

// Geometry is the kind-specific part of a shape, relative to its center.
type Geometry interface {
	// Kind returns the table the geometry is stored in.
	Kind() Kind

	// LocalBounds returns the bounding box relative to the shape center.
	LocalBounds() AABB

	// Distance returns the signed distance from the center-relative point
	// p to the shape outline. Negative inside.
	Distance(p Vec2) float32

	// HalfExtent returns the smaller half-dimension of the shape.
	HalfExtent() float32
}

// Kind implements Geometry.
func (Circle) Kind() Kind { return KindCircle }

// LocalBounds implements Geometry. The circle is hit-tested by its
// bounding square.
func (c Circle) LocalBounds() AABB {
	return AABB{Min: Vec2{-c.Radius, -c.Radius}, Max: Vec2{c.Radius, c.Radius}}
}

// Distance implements Geometry.
func (c Circle) Distance(p Vec2) float32 { return p.Length() - c.Radius }

// HalfExtent implements Geometry.
func (c Circle) HalfExtent() float32 { return c.Radius }

// Kind implements Geometry.
func (Box) Kind() Kind { return KindBox }

// LocalBounds implements Geometry.
func (x Box) LocalBounds() AABB {
	return AABB{Min: Vec2{-x.HalfSize.X, -x.HalfSize.Y}, Max: x.HalfSize}
}

// Distance implements Geometry.
func (x Box) Distance(p Vec2) float32 { return boxDistance(p, x.HalfSize, 0) }

// HalfExtent implements Geometry.
func (x Box) HalfExtent() float32 { return min(x.HalfSize.X, x.HalfSize.Y) }

// Kind implements Geometry.
func (RoundedBox) Kind() Kind { return KindRoundedBox }

// LocalBounds implements Geometry.
func (r RoundedBox) LocalBounds() AABB {
	return AABB{Min: Vec2{-r.HalfSize.X, -r.HalfSize.Y}, Max: r.HalfSize}
}

// Distance implements Geometry. The corner radius is clamped to the
// smaller half-dimension.
func (r RoundedBox) Distance(p Vec2) float32 {
	radius := min(max(r.CornerRadius, 0), r.HalfExtent())
	return boxDistance(p, r.HalfSize, radius)
}

// HalfExtent implements Geometry.
func (r RoundedBox) HalfExtent() float32 { return min(r.HalfSize.X, r.HalfSize.Y) }

// boxDistance is the rounded-box SDF; radius 0 gives the sharp box.
// It mirrors sd_box in shaders/shapes.wgsl.
func boxDistance(p, half Vec2, radius float32) float32 {
	qx := abs32(p.X) - half.X + radius
	qy := abs32(p.Y) - half.Y + radius
	outside := Vec2{max(qx, 0), max(qy, 0)}.Length()
	inside := min(max(qx, qy), 0)
	return outside + inside - radius
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
