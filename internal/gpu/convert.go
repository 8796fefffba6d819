package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glass/gpucore"
)

var formats = map[gpucore.TextureFormat]gputypes.TextureFormat{
	gpucore.TextureFormatRGBA8Unorm:     gputypes.TextureFormatRGBA8Unorm,
	gpucore.TextureFormatRGBA8UnormSRGB: gputypes.TextureFormatRGBA8UnormSrgb,
	gpucore.TextureFormatBGRA8Unorm:     gputypes.TextureFormatBGRA8Unorm,
	gpucore.TextureFormatBGRA8UnormSRGB: gputypes.TextureFormatBGRA8UnormSrgb,
	gpucore.TextureFormatR32Float:       gputypes.TextureFormatR32Float,
}

// ToTextureFormat converts a gpucore format to its gputypes equivalent.
func ToTextureFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	t, ok := formats[f]
	if !ok {
		return 0, fmt.Errorf("gpu: texture format %d: %w", f, gpucore.ErrUnsupported)
	}
	return t, nil
}

// FromTextureFormat converts a gputypes format, typically a surface format,
// to the gpucore format. It reports false for formats gpucore has no name for.
func FromTextureFormat(f gputypes.TextureFormat) (gpucore.TextureFormat, bool) {
	for k, v := range formats {
		if v == f {
			return k, true
		}
	}
	return 0, false
}

func bufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	for _, m := range []struct {
		from gpucore.BufferUsage
		to   gputypes.BufferUsage
	}{
		{gpucore.BufferUsageMapRead, gputypes.BufferUsageMapRead},
		{gpucore.BufferUsageCopySrc, gputypes.BufferUsageCopySrc},
		{gpucore.BufferUsageCopyDst, gputypes.BufferUsageCopyDst},
		{gpucore.BufferUsageUniform, gputypes.BufferUsageUniform},
		{gpucore.BufferUsageStorage, gputypes.BufferUsageStorage},
	} {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

func textureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	for _, m := range []struct {
		from gpucore.TextureUsage
		to   gputypes.TextureUsage
	}{
		{gpucore.TextureUsageCopySrc, gputypes.TextureUsageCopySrc},
		{gpucore.TextureUsageCopyDst, gputypes.TextureUsageCopyDst},
		{gpucore.TextureUsageTextureBinding, gputypes.TextureUsageTextureBinding},
		{gpucore.TextureUsageRenderAttachment, gputypes.TextureUsageRenderAttachment},
	} {
		if u&m.from != 0 {
			out |= m.to
		}
	}
	return out
}

func shaderStages(s gpucore.ShaderStage) gputypes.ShaderStages {
	var out gputypes.ShaderStages
	if s&gpucore.ShaderStageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&gpucore.ShaderStageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	return out
}

func layoutEntry(e gpucore.BindGroupLayoutEntry) (gputypes.BindGroupLayoutEntry, error) {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding, Visibility: shaderStages(e.Visibility)}
	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case gpucore.BindingTypeSampledTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingTypeUnfilterableTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingTypeFilteringSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case gpucore.BindingTypeNonFilteringSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeNonFiltering}
	default:
		return out, fmt.Errorf("gpu: binding %d type %d: %w", e.Binding, e.Type, gpucore.ErrUnsupported)
	}
	return out, nil
}

func filterMode(f gpucore.FilterMode) gputypes.FilterMode {
	if f == gpucore.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func loadOp(op gpucore.LoadOp) gputypes.LoadOp {
	if op == gpucore.LoadOpLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

func clearColor(c gpucore.Color) gputypes.Color {
	return gputypes.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}

func colorTarget(t gpucore.ColorTarget) (gputypes.ColorTargetState, error) {
	f, err := ToTextureFormat(t.Format)
	if err != nil {
		return gputypes.ColorTargetState{}, err
	}
	out := gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
	if t.Blend == gpucore.BlendPremultiplied {
		b := gputypes.BlendStatePremultiplied()
		out.Blend = &b
	}
	return out, nil
}
