package compose

import (
	"math"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/derive"
	"github.com/gogpu/glass/internal/system"
)

// highlight is normalize(-0.3, -0.5, 1.0), the specular half vector.
var highlight = func() [3]float64 {
	x, y, z := -0.3, -0.5, 1.0
	l := math.Sqrt(x*x + y*y + z*z)
	return [3]float64{x / l, y / l, z / l}
}()

// composeFragment is the CPU variant of compose.wgsl fs_main.
func composeFragment(f *gpucore.Fragment) {
	b := f.Bindings
	px := int(math.Floor(float64(f.X)))
	py := int(math.Floor(float64(f.Y)))

	base := b.Load(1, BindingBackground, px, py)
	if d := b.Load(2, derive.BindingSilhouetteDistance, px, py).R; d >= 0 {
		f.Out[0] = base
		return
	}

	params := readParams(b.Buffer(1, BindingParams))
	nc := b.Load(3, derive.BindingLightMapNormals, px, py)
	nx, ny, nz := float64(nc.R)*2-1, float64(nc.G)*2-1, float64(nc.B)*2-1
	tint := b.Load(2, derive.BindingSilhouetteTint, px, py)

	k := (1 - nz) * float64(params.Refraction)
	rx := int(math.Floor(float64(f.X) + nx*k))
	ry := int(math.Floor(float64(f.Y) + ny*k))
	refracted := b.Load(1, BindingBackground, rx, ry)

	a := float64(tint.A) * float64(params.TintStrength)
	r := float64(refracted.R)*(1-a) + float64(tint.R)*a
	g := float64(refracted.G)*(1-a) + float64(tint.G)*a
	bl := float64(refracted.B)*(1-a) + float64(tint.B)*a

	dot := max(nx*highlight[0]+ny*highlight[1]+nz*highlight[2], 0)
	spec := float64(params.Specular) * math.Pow(dot, float64(params.Shininess))
	r, g, bl = r+spec, g+spec, bl+spec

	glow := 0.0
	u := system.ReadUniforms(b, 0)
	if u.Cursor[0] < 1e30 && u.Cursor[1] < 1e30 {
		dist := math.Hypot(float64(f.X-u.Cursor[0]), float64(f.Y-u.Cursor[1]))
		glow = float64(params.Glow) * math.Exp(-dist/math.Max(float64(params.GlowFalloff), 1e-3))
	}
	s := 1 + glow
	f.Out[0] = gpucore.Color{R: float32(r * s), G: float32(g * s), B: float32(bl * s), A: 1}
}
