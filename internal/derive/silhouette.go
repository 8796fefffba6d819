package derive

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/shape"
	"github.com/gogpu/glass/internal/system"
)

//go:embed shaders/silhouette.wgsl
var silhouetteWGSL string

// Bindings of the silhouette read group.
const (
	BindingSilhouetteDistance = 0
	BindingSilhouetteNearest  = 1
	BindingSilhouetteTint     = 2
	BindingSilhouetteLinear   = 3
)

// Silhouette renders the signed distance to the nearest shape (R32Float)
// and that shape's tint (RGBA8Unorm) in one pass.
//
// The render pass binds the system group at 0 and the shapes group at 1.
type Silhouette struct {
	*stage
}

// NewSilhouette creates the silhouette pipeline. Targets are created by the
// first Resize.
func NewSilhouette(adapter gpucore.GPUAdapter, sys, shapes Bindable) (*Silhouette, error) {
	st, err := newStage(adapter, stageConfig{
		label:    "silhouette",
		wgsl:     system.WGSL(0) + shape.WGSL(1) + gpucore.FullScreenVertexWGSL + silhouetteWGSL,
		fragment: silhouetteFragment,
		inputs:   []Bindable{sys, shapes},
		targets: []target{
			{label: "distance", format: gpucore.TextureFormatR32Float},
			{label: "tint", format: gpucore.TextureFormatRGBA8Unorm},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Silhouette{stage: st}, nil
}

// DistanceTexture returns the distance target.
func (s *Silhouette) DistanceTexture() gpucore.TextureID { return s.texture(0) }

// TintTexture returns the tint target.
func (s *Silhouette) TintTexture() gpucore.TextureID { return s.texture(1) }

// silhouetteFragment is the CPU variant of silhouette.wgsl fs_main.
func silhouetteFragment(f *gpucore.Fragment) {
	view := shape.NewView(f.Bindings, 1)
	n := view.Nearest(shape.Vec2{X: f.X, Y: f.Y})
	f.Out[0] = gpucore.Color{R: n.Distance, A: 1}
	if n.Found {
		t := view.Tint(n.Index)
		f.Out[1] = gpucore.Color{R: t.R, G: t.G, B: t.B, A: t.A}
	}
}

// SilhouetteWGSL declares the silhouette read group at index group.
func SilhouetteWGSL(group uint32) string {
	return fmt.Sprintf(`@group(%[1]d) @binding(0) var silhouette_distance: texture_2d<f32>;
@group(%[1]d) @binding(1) var silhouette_nearest: sampler;
@group(%[1]d) @binding(2) var silhouette_tint: texture_2d<f32>;
@group(%[1]d) @binding(3) var silhouette_linear: sampler;
`, group)
}
