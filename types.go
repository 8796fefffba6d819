package glass

import (
	"image"
	"image/color"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/compose"
	"github.com/gogpu/glass/internal/derive"
	"github.com/gogpu/glass/internal/pointer"
	"github.com/gogpu/glass/internal/shape"
)

// Shape geometry and store types.
type (
	// Vec2 is a 2D vector in pixels.
	Vec2 = shape.Vec2

	// Index identifies a shape in the scene, in insertion order.
	Index = shape.Index

	// RGBA is a linear tint color.
	RGBA = shape.RGBA

	// Circle is a circle of the given radius around its center.
	Circle = shape.Circle

	// Box is an axis-aligned box of the given half size.
	Box = shape.Box

	// RoundedBox is a box whose corners are rounded by CornerRadius.
	RoundedBox = shape.RoundedBox

	// Hit is a hit-test result: the shape and the point relative to its
	// bounding box minimum.
	Hit = shape.Hit

	// Store is the columnar shape store.
	Store = shape.Store
)

// RGBAFromU32 unpacks 0xRRGGBBAA.
func RGBAFromU32(v uint32) RGBA { return shape.RGBAFromU32(v) }

// Pointer interaction types.
type (
	// State is the pointer interaction state.
	State = pointer.State

	// StateKind names a State.
	StateKind = pointer.Kind

	// Outcome reports what one pointer event did.
	Outcome = pointer.Outcome
)

// Interaction states.
const (
	StateIdle     = pointer.KindIdle
	StateHovered  = pointer.KindHovered
	StatePressed  = pointer.KindPressed
	StateDragging = pointer.KindDragging
)

// ErrUndefinedTransition is wrapped by pointer events that have no
// transition in strict mode.
var ErrUndefinedTransition = pointer.ErrUndefinedTransition

// Derived texture stages.
type (
	// Silhouette holds the distance and tint textures.
	Silhouette = derive.Silhouette

	// LightMap holds the normal map.
	LightMap = derive.LightMap
)

// Background provides the texture drawn behind the glass.
type Background = compose.Background

// NewImageBackground returns a background that stretches img over the
// viewport.
func NewImageBackground(adapter gpucore.GPUAdapter, img image.Image) Background {
	return compose.NewImageBackground(adapter, img)
}

// NewSolidBackground returns a background filled with c.
func NewSolidBackground(adapter gpucore.GPUAdapter, c color.Color) Background {
	return compose.NewSolidBackground(adapter, c)
}
