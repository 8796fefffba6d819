package derive

import (
	_ "embed"
	"fmt"
	"math"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/shape"
	"github.com/gogpu/glass/internal/system"
)

//go:embed shaders/lightmap.wgsl
var lightMapWGSL string

// Bindings of the light map read group.
const (
	BindingLightMapNormals = 0
	BindingLightMapLinear  = 1
)

// MaxBevel is the widest bevel in pixels. Narrower shapes bevel over their
// half extent.
const MaxBevel = 16

// LightMap renders encoded surface normals (RGBA8Unorm) inside the
// silhouette. Outside texels are transparent.
//
// The render pass binds the system group at 0, the shapes group at 1 and
// the silhouette read group at 2. The silhouette must be generated first.
type LightMap struct {
	*stage
}

// NewLightMap creates the light map pipeline. Targets are created by the
// first Resize.
func NewLightMap(adapter gpucore.GPUAdapter, sys, shapes, silhouette Bindable) (*LightMap, error) {
	st, err := newStage(adapter, stageConfig{
		label: "light map",
		wgsl: system.WGSL(0) + shape.WGSL(1) + SilhouetteWGSL(2) +
			gpucore.FullScreenVertexWGSL + lightMapWGSL,
		fragment: lightMapFragment,
		inputs:   []Bindable{sys, shapes, silhouette},
		targets: []target{
			{label: "normals", format: gpucore.TextureFormatRGBA8Unorm},
		},
	})
	if err != nil {
		return nil, err
	}
	return &LightMap{stage: st}, nil
}

// NormalsTexture returns the normals target.
func (l *LightMap) NormalsTexture() gpucore.TextureID { return l.texture(0) }

// lightMapFragment is the CPU variant of lightmap.wgsl fs_main.
func lightMapFragment(f *gpucore.Fragment) {
	px := int(math.Floor(float64(f.X)))
	py := int(math.Floor(float64(f.Y)))
	load := func(x, y int) float32 {
		return f.Bindings.Load(2, BindingSilhouetteDistance, x, y).R
	}

	d := load(px, py)
	if d >= 0 {
		return
	}

	gx := float64(load(px+1, py) - load(px-1, py))
	gy := float64(load(px, py+1) - load(px, py-1))
	if l := math.Hypot(gx, gy); l < 1e-6 {
		gx, gy = 0, 0
	} else {
		gx, gy = gx/l, gy/l
	}

	nearest := shape.NewView(f.Bindings, 1).Nearest(shape.Vec2{X: f.X, Y: f.Y})
	bevel := math.Max(math.Min(MaxBevel, float64(nearest.HalfExtent)), 1e-3)
	t := math.Min(math.Max(-float64(d)/bevel, 0), 1)

	nx, ny, nz := gx*(1-t), gy*(1-t), t
	l := math.Sqrt(nx*nx + ny*ny + nz*nz)
	f.Out[0] = gpucore.Color{
		R: float32(nx/l*0.5 + 0.5),
		G: float32(ny/l*0.5 + 0.5),
		B: float32(nz/l*0.5 + 0.5),
		A: 1,
	}
}

// LightMapWGSL declares the light map read group at index group.
func LightMapWGSL(group uint32) string {
	return fmt.Sprintf(`@group(%[1]d) @binding(0) var light_normals: texture_2d<f32>;
@group(%[1]d) @binding(1) var light_linear: sampler;
`, group)
}
