// Package compose draws the glass: the background refracted, tinted and lit
// through the derived silhouette and light map.
package compose

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/derive"
	"github.com/gogpu/glass/internal/system"
)

//go:embed shaders/compose.wgsl
var composeWGSL string

// Bindings of the backdrop group.
const (
	BindingBackground = 0
	BindingSampler    = 1
	BindingParams     = 2
)

const paramsSize = 32

// Params tunes the glass shading.
type Params struct {
	// Refraction is the background displacement in pixels at a vertical
	// rim.
	Refraction float32

	// TintStrength scales the shape tint alpha.
	TintStrength float32

	// Specular and Shininess shape the highlight.
	Specular  float32
	Shininess float32

	// Glow is the brightness boost under the cursor; it decays with
	// distance over GlowFalloff pixels.
	Glow        float32
	GlowFalloff float32
}

// DefaultParams returns the default shading.
func DefaultParams() Params {
	return Params{
		Refraction:   12,
		TintStrength: 0.35,
		Specular:     0.6,
		Shininess:    48,
		Glow:         0.25,
		GlowFalloff:  96,
	}
}

func (p Params) bytes() []byte {
	b := make([]byte, paramsSize)
	for i, v := range []float32{p.Refraction, p.TintStrength, p.Specular, p.Shininess, p.Glow, p.GlowFalloff} {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func readParams(b []byte) Params {
	if len(b) < paramsSize {
		return Params{}
	}
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])) }
	return Params{
		Refraction:   f(0),
		TintStrength: f(1),
		Specular:     f(2),
		Shininess:    f(3),
		Glow:         f(4),
		GlowFalloff:  f(5),
	}
}

// Layer is the composition pass.
//
// It binds the system group at 0, its own backdrop group (background,
// sampler, params) at 1, the silhouette at 2 and the light map at 3.
type Layer struct {
	adapter    gpucore.GPUAdapter
	system     derive.Bindable
	silhouette derive.Bindable
	lightMap   derive.Bindable
	background Background
	format     gpucore.TextureFormat

	module         gpucore.ShaderModuleID
	pipelineLayout gpucore.PipelineLayoutID
	pipeline       gpucore.RenderPipelineID
	backdropLayout gpucore.BindGroupLayoutID
	sampler        gpucore.SamplerID
	params         gpucore.BufferID
	backdrop       gpucore.BindGroupID

	draws int
}

// New creates the composition pipeline for targets of the given format.
// The layer takes ownership of background.
func New(adapter gpucore.GPUAdapter, sys, silhouette, lightMap derive.Bindable,
	background Background, format gpucore.TextureFormat, params Params) (_ *Layer, err error) {
	l := &Layer{
		adapter:    adapter,
		system:     sys,
		silhouette: silhouette,
		lightMap:   lightMap,
		background: background,
		format:     format,
	}
	defer func() {
		if err != nil {
			l.Destroy()
		}
	}()

	l.module, err = adapter.CreateShaderModule(&gpucore.ShaderModuleDesc{
		Label:    "compose",
		WGSL:     WGSL(),
		Fragment: composeFragment,
	})
	if err != nil {
		return nil, fmt.Errorf("compose: create shader: %w", err)
	}
	l.backdropLayout, err = adapter.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "backdrop",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: BindingBackground, Type: gpucore.BindingTypeSampledTexture, Visibility: gpucore.ShaderStageFragment},
			{Binding: BindingSampler, Type: gpucore.BindingTypeFilteringSampler, Visibility: gpucore.ShaderStageFragment},
			{Binding: BindingParams, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageFragment},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compose: create backdrop layout: %w", err)
	}
	l.pipelineLayout, err = adapter.CreatePipelineLayout([]gpucore.BindGroupLayoutID{
		sys.Layout(), l.backdropLayout, silhouette.Layout(), lightMap.Layout(),
	})
	if err != nil {
		return nil, fmt.Errorf("compose: create pipeline layout: %w", err)
	}
	l.pipeline, err = adapter.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:         "compose",
		Layout:        l.pipelineLayout,
		Module:        l.module,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Targets:       []gpucore.ColorTarget{{Format: format}},
	})
	if err != nil {
		return nil, fmt.Errorf("compose: create pipeline: %w", err)
	}
	l.sampler, err = adapter.CreateSampler(&gpucore.SamplerDesc{Label: "backdrop", Filter: gpucore.FilterLinear})
	if err != nil {
		return nil, fmt.Errorf("compose: create sampler: %w", err)
	}
	l.params, err = adapter.CreateBuffer(&gpucore.BufferDesc{
		Label: "compose params",
		Size:  paramsSize,
		Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("compose: create params: %w", err)
	}
	if err := l.SetParams(params); err != nil {
		return nil, err
	}
	return l, nil
}

// WGSL returns the full composition shader source.
func WGSL() string {
	return system.WGSL(0) + derive.SilhouetteWGSL(2) + derive.LightMapWGSL(3) +
		gpucore.FullScreenVertexWGSL + composeWGSL
}

// Format returns the target format the pipeline was built for.
func (l *Layer) Format() gpucore.TextureFormat { return l.format }

// Draws returns the number of encoded composition draws.
func (l *Layer) Draws() int { return l.draws }

// SetParams rewrites the shading parameters.
func (l *Layer) SetParams(p Params) error {
	if err := l.adapter.WriteBuffer(l.params, 0, p.bytes()); err != nil {
		return fmt.Errorf("compose: write params: %w", err)
	}
	return nil
}

// Resize resizes the background and rebuilds the backdrop group.
func (l *Layer) Resize(width, height int) error {
	l.destroyBackdrop()
	if err := l.background.Resize(width, height); err != nil {
		return fmt.Errorf("compose: resize background: %w", err)
	}
	group, err := l.adapter.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "backdrop",
		Layout: l.backdropLayout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: BindingBackground, Texture: l.background.Texture()},
			{Binding: BindingSampler, Sampler: l.sampler},
			{Binding: BindingParams, Buffer: l.params},
		},
	})
	if err != nil {
		return fmt.Errorf("compose: create backdrop group: %w", err)
	}
	l.backdrop = group
	return nil
}

// Encode records the composition draw into pass.
func (l *Layer) Encode(pass gpucore.RenderPassEncoder) error {
	if l.backdrop == gpucore.InvalidID {
		return fmt.Errorf("compose: encode before resize: %w", derive.ErrNotInitialized)
	}
	pass.SetPipeline(l.pipeline)
	pass.SetBindGroup(0, l.system.BindGroup())
	pass.SetBindGroup(1, l.backdrop)
	pass.SetBindGroup(2, l.silhouette.BindGroup())
	pass.SetBindGroup(3, l.lightMap.BindGroup())
	pass.Draw(gpucore.FullScreenVertices, 1)
	l.draws++
	return nil
}

// Render clears target, draws the glass into it and submits.
func (l *Layer) Render(target gpucore.TextureID, clear gpucore.Color) error {
	pass, err := l.adapter.BeginRenderPass(&gpucore.RenderPassDesc{
		Label:            "compose",
		ColorAttachments: []gpucore.ColorAttachment{{Texture: target, Load: gpucore.LoadOpClear, Clear: clear}},
	})
	if err != nil {
		return fmt.Errorf("compose: begin pass: %w", err)
	}
	encErr := l.Encode(pass)
	if err := pass.End(); err != nil {
		return fmt.Errorf("compose: end pass: %w", err)
	}
	if encErr != nil {
		return encErr
	}
	if err := l.adapter.Submit(); err != nil {
		return fmt.Errorf("compose: submit: %w", err)
	}
	return nil
}

func (l *Layer) destroyBackdrop() {
	if l.backdrop != gpucore.InvalidID {
		l.adapter.DestroyBindGroup(l.backdrop)
		l.backdrop = gpucore.InvalidID
	}
}

// Destroy releases the layer and its background.
func (l *Layer) Destroy() {
	l.destroyBackdrop()
	if l.background != nil {
		l.background.Destroy()
	}
	a := l.adapter
	if l.params != gpucore.InvalidID {
		a.DestroyBuffer(l.params)
		l.params = gpucore.InvalidID
	}
	if l.sampler != gpucore.InvalidID {
		a.DestroySampler(l.sampler)
		l.sampler = gpucore.InvalidID
	}
	if l.pipeline != gpucore.InvalidID {
		a.DestroyRenderPipeline(l.pipeline)
		l.pipeline = gpucore.InvalidID
	}
	if l.pipelineLayout != gpucore.InvalidID {
		a.DestroyPipelineLayout(l.pipelineLayout)
		l.pipelineLayout = gpucore.InvalidID
	}
	if l.backdropLayout != gpucore.InvalidID {
		a.DestroyBindGroupLayout(l.backdropLayout)
		l.backdropLayout = gpucore.InvalidID
	}
	if l.module != gpucore.InvalidID {
		a.DestroyShaderModule(l.module)
		l.module = gpucore.InvalidID
	}
}
