package software

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/glass/gpucore"
)

// fillPipeline builds a one-target pipeline whose fragment writes the
// first four floats of the uniform at group 0 binding 0.
type fillPipeline struct {
	pipeline gpucore.RenderPipelineID
	group    gpucore.BindGroupID
	uniform  gpucore.BufferID
}

func newFillPipeline(t *testing.T, a *Adapter, format gpucore.TextureFormat, blend gpucore.BlendMode) fillPipeline {
	t.Helper()
	uniform, err := a.CreateBuffer(&gpucore.BufferDesc{Label: "fill", Size: 16, Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	layout, err := a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "fill",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageFragment},
		},
	})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}
	pl, err := a.CreatePipelineLayout([]gpucore.BindGroupLayoutID{layout})
	if err != nil {
		t.Fatalf("CreatePipelineLayout: %v", err)
	}
	module, err := a.CreateShaderModule(&gpucore.ShaderModuleDesc{
		Label: "fill",
		Fragment: func(f *gpucore.Fragment) {
			b := f.Bindings.Buffer(0, 0)
			f.Out[0] = gpucore.Color{
				R: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
				G: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
				B: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
				A: math.Float32frombits(binary.LittleEndian.Uint32(b[12:])),
			}
		},
	})
	if err != nil {
		t.Fatalf("CreateShaderModule: %v", err)
	}
	p, err := a.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:   "fill",
		Layout:  pl,
		Module:  module,
		Targets: []gpucore.ColorTarget{{Format: format, Blend: blend}},
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline: %v", err)
	}
	group, err := a.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   "fill",
		Layout:  layout,
		Entries: []gpucore.BindGroupEntry{{Binding: 0, Buffer: uniform}},
	})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	return fillPipeline{pipeline: p, group: group, uniform: uniform}
}

func writeColor(t *testing.T, a *Adapter, buf gpucore.BufferID, c gpucore.Color) {
	t.Helper()
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(c.R))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(c.G))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(c.B))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(c.A))
	if err := a.WriteBuffer(buf, 0, b); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
}

func newTarget(t *testing.T, a *Adapter, w, h int, format gpucore.TextureFormat) gpucore.TextureID {
	t.Helper()
	id, err := a.CreateTexture(&gpucore.TextureDesc{
		Label:  "target",
		Width:  w,
		Height: h,
		Format: format,
		Usage:  gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return id
}

func drawFill(t *testing.T, a *Adapter, fp fillPipeline, target gpucore.TextureID, label string, load gpucore.LoadOp) {
	t.Helper()
	pass, err := a.BeginRenderPass(&gpucore.RenderPassDesc{
		Label:            label,
		ColorAttachments: []gpucore.ColorAttachment{{Texture: target, Load: load}},
	})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	pass.SetPipeline(fp.pipeline)
	pass.SetBindGroup(0, fp.group)
	pass.Draw(gpucore.FullScreenVertices, 1)
	if err := pass.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
}

func TestAdapter_Name(t *testing.T) {
	a := New()
	defer a.Destroy()
	if got := a.Name(); got != "software" {
		t.Errorf("Name() = %q, want %q", got, "software")
	}
}

func TestAdapter_BufferRoundTrip(t *testing.T) {
	a := New(WithWorkers(1))
	defer a.Destroy()

	id, err := a.CreateBuffer(&gpucore.BufferDesc{Label: "b", Size: 8, Usage: gpucore.BufferUsageStorage})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := a.WriteBuffer(id, 4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	got, err := a.ReadBuffer(id, 0, 8)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	if string(got) != string(want) {
		t.Errorf("ReadBuffer() = %v, want %v", got, want)
	}

	if err := a.WriteBuffer(id, 6, []byte{1, 2, 3}); err == nil {
		t.Error("WriteBuffer past end should fail")
	}
	if s := a.Stats(); s.BufferWrites != 1 || s.BufferBytes != 4 {
		t.Errorf("Stats() = %+v, want 1 write of 4 bytes", s)
	}
}

func TestAdapter_DestroyedIDs(t *testing.T) {
	a := New(WithWorkers(1))
	defer a.Destroy()

	buf, _ := a.CreateBuffer(&gpucore.BufferDesc{Size: 4})
	tex := newTarget(t, a, 2, 2, gpucore.TextureFormatRGBA8Unorm)
	a.DestroyBuffer(buf)
	a.DestroyTexture(tex)

	if err := a.WriteBuffer(buf, 0, []byte{1}); !errors.Is(err, gpucore.ErrInvalidID) {
		t.Errorf("WriteBuffer(destroyed) error = %v, want ErrInvalidID", err)
	}
	if _, err := a.ReadTexture(tex); !errors.Is(err, gpucore.ErrInvalidID) {
		t.Errorf("ReadTexture(destroyed) error = %v, want ErrInvalidID", err)
	}
	next, _ := a.CreateBuffer(&gpucore.BufferDesc{Size: 4})
	if next == buf {
		t.Error("buffer ID reused after destroy")
	}
}

func TestAdapter_CreateShaderModuleWithoutFragment(t *testing.T) {
	a := New()
	defer a.Destroy()
	_, err := a.CreateShaderModule(&gpucore.ShaderModuleDesc{Label: "wgsl-only", WGSL: "@fragment fn fs_main() {}"})
	if !errors.Is(err, gpucore.ErrUnsupported) {
		t.Errorf("CreateShaderModule() error = %v, want ErrUnsupported", err)
	}
}

func TestAdapter_CreateBindGroupValidation(t *testing.T) {
	a := New()
	defer a.Destroy()

	layout, _ := a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeSampledTexture},
			{Binding: 1, Type: gpucore.BindingTypeNonFilteringSampler},
		},
	})
	r32, _ := a.CreateTexture(&gpucore.TextureDesc{Width: 1, Height: 1, Format: gpucore.TextureFormatR32Float})
	rgba, _ := a.CreateTexture(&gpucore.TextureDesc{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm})
	nearest, _ := a.CreateSampler(&gpucore.SamplerDesc{Filter: gpucore.FilterNearest})
	linear, _ := a.CreateSampler(&gpucore.SamplerDesc{Filter: gpucore.FilterLinear})

	tests := []struct {
		name    string
		entries []gpucore.BindGroupEntry
		wantErr bool
	}{
		{"valid", []gpucore.BindGroupEntry{{Binding: 0, Texture: rgba}, {Binding: 1, Sampler: nearest}}, false},
		{"missing entry", []gpucore.BindGroupEntry{{Binding: 0, Texture: rgba}}, true},
		{"unfilterable texture", []gpucore.BindGroupEntry{{Binding: 0, Texture: r32}, {Binding: 1, Sampler: nearest}}, true},
		{"filtering sampler", []gpucore.BindGroupEntry{{Binding: 0, Texture: rgba}, {Binding: 1, Sampler: linear}}, true},
		{"unknown binding", []gpucore.BindGroupEntry{{Binding: 0, Texture: rgba}, {Binding: 7, Sampler: nearest}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.CreateBindGroup(&gpucore.BindGroupDesc{Layout: layout, Entries: tt.entries})
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateBindGroup() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdapter_DrawFillsTarget(t *testing.T) {
	for _, workers := range []int{1, 4} {
		a := New(WithWorkers(workers))
		fp := newFillPipeline(t, a, gpucore.TextureFormatRGBA8Unorm, gpucore.BlendReplace)
		target := newTarget(t, a, 5, 33, gpucore.TextureFormatRGBA8Unorm)

		writeColor(t, a, fp.uniform, gpucore.Color{R: 1, G: 0.5, B: 0, A: 1})
		drawFill(t, a, fp, target, "fill", gpucore.LoadOpClear)
		if err := a.Submit(); err != nil {
			t.Fatalf("Submit: %v", err)
		}

		px, err := a.ReadTexture(target)
		if err != nil {
			t.Fatalf("ReadTexture: %v", err)
		}
		for i := 0; i < len(px); i += 4 {
			if px[i] != 255 || px[i+1] != 128 || px[i+2] != 0 || px[i+3] != 255 {
				t.Fatalf("workers=%d texel %d = %v, want [255 128 0 255]", workers, i/4, px[i:i+4])
			}
		}
		a.Destroy()
	}
}

func TestAdapter_WriteBeforeSubmitIsVisible(t *testing.T) {
	a := New(WithWorkers(1))
	defer a.Destroy()
	fp := newFillPipeline(t, a, gpucore.TextureFormatRGBA8Unorm, gpucore.BlendReplace)
	target := newTarget(t, a, 1, 1, gpucore.TextureFormatRGBA8Unorm)

	writeColor(t, a, fp.uniform, gpucore.Color{R: 1, A: 1})
	drawFill(t, a, fp, target, "fill", gpucore.LoadOpClear)
	// Written after the pass was recorded but before Submit.
	writeColor(t, a, fp.uniform, gpucore.Color{B: 1, A: 1})
	if err := a.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	px, _ := a.ReadTexture(target)
	if px[0] != 0 || px[2] != 255 {
		t.Errorf("texel = %v, want blue", px)
	}
}

func TestAdapter_PremultipliedBlend(t *testing.T) {
	a := New(WithWorkers(1))
	defer a.Destroy()
	opaque := newFillPipeline(t, a, gpucore.TextureFormatRGBA8Unorm, gpucore.BlendReplace)
	over := newFillPipeline(t, a, gpucore.TextureFormatRGBA8Unorm, gpucore.BlendPremultiplied)
	target := newTarget(t, a, 2, 2, gpucore.TextureFormatRGBA8Unorm)

	writeColor(t, a, opaque.uniform, gpucore.Color{R: 1, A: 1})
	writeColor(t, a, over.uniform, gpucore.Color{B: 0.5, A: 0.5})
	drawFill(t, a, opaque, target, "base", gpucore.LoadOpClear)
	drawFill(t, a, over, target, "over", gpucore.LoadOpLoad)
	if err := a.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	px, _ := a.ReadTexture(target)
	want := []byte{128, 0, 128, 255}
	if string(px[:4]) != string(want) {
		t.Errorf("texel = %v, want %v", px[:4], want)
	}
	if got := a.PassLog(); len(got) != 2 || got[0] != "base" || got[1] != "over" {
		t.Errorf("PassLog() = %v, want [base over]", got)
	}
}

func TestAdapter_R32FloatTarget(t *testing.T) {
	a := New(WithWorkers(1))
	defer a.Destroy()
	fp := newFillPipeline(t, a, gpucore.TextureFormatR32Float, gpucore.BlendReplace)
	target := newTarget(t, a, 3, 1, gpucore.TextureFormatR32Float)

	writeColor(t, a, fp.uniform, gpucore.Color{R: -12.25, G: 9, A: 1})
	drawFill(t, a, fp, target, "fill", gpucore.LoadOpClear)
	if err := a.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	px, _ := a.ReadTexture(target)
	got := math.Float32frombits(binary.LittleEndian.Uint32(px[8:]))
	if got != -12.25 {
		t.Errorf("texel = %v, want -12.25", got)
	}
}

func TestAdapter_StaleBindGroupFailsSubmit(t *testing.T) {
	a := New(WithWorkers(1))
	defer a.Destroy()
	fp := newFillPipeline(t, a, gpucore.TextureFormatRGBA8Unorm, gpucore.BlendReplace)
	target := newTarget(t, a, 1, 1, gpucore.TextureFormatRGBA8Unorm)

	drawFill(t, a, fp, target, "fill", gpucore.LoadOpClear)
	a.DestroyBindGroup(fp.group)
	if err := a.Submit(); !errors.Is(err, gpucore.ErrInvalidID) {
		t.Errorf("Submit() error = %v, want ErrInvalidID", err)
	}
	if s := a.Stats(); s.Passes != 0 {
		t.Errorf("Stats().Passes = %d, want 0", s.Passes)
	}
}

func TestAdapter_PassOpen(t *testing.T) {
	a := New()
	defer a.Destroy()
	target := newTarget(t, a, 1, 1, gpucore.TextureFormatRGBA8Unorm)
	desc := &gpucore.RenderPassDesc{ColorAttachments: []gpucore.ColorAttachment{{Texture: target, Load: gpucore.LoadOpClear}}}

	pass, err := a.BeginRenderPass(desc)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if _, err := a.BeginRenderPass(desc); !errors.Is(err, gpucore.ErrPassOpen) {
		t.Errorf("second BeginRenderPass() error = %v, want ErrPassOpen", err)
	}
	if err := a.Submit(); !errors.Is(err, gpucore.ErrPassOpen) {
		t.Errorf("Submit() error = %v, want ErrPassOpen", err)
	}
	if err := pass.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := pass.End(); err == nil {
		t.Error("second End() should fail")
	}
}

func TestAdapter_DrawWithoutPipeline(t *testing.T) {
	a := New()
	defer a.Destroy()
	target := newTarget(t, a, 1, 1, gpucore.TextureFormatRGBA8Unorm)
	pass, _ := a.BeginRenderPass(&gpucore.RenderPassDesc{
		ColorAttachments: []gpucore.ColorAttachment{{Texture: target, Load: gpucore.LoadOpClear}},
	})
	pass.Draw(gpucore.FullScreenVertices, 1)
	if err := pass.End(); !errors.Is(err, ErrNoPipeline) {
		t.Errorf("End() error = %v, want ErrNoPipeline", err)
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float32
		want byte
	}{
		{0, 0},
		{-1, 0},
		{float32(math.NaN()), 0},
		{0.5, 128},
		{1, 255},
		{2, 255},
		{128.0 / 255, 128},
	}
	for _, tt := range tests {
		if got := quantize(tt.in); got != tt.want {
			t.Errorf("quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDecodeTexel_BGRA(t *testing.T) {
	got := decodeTexel(gpucore.TextureFormatBGRA8Unorm, []byte{255, 0, 0, 255})
	if got.B != 1 || got.R != 0 {
		t.Errorf("decodeTexel(BGRA) = %+v, want blue", got)
	}
}
