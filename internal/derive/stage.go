// Package derive generates the textures derived from the shape store: the
// silhouette (signed distance and tint) and the light map (surface
// normals).
//
// Each stage renders one full-screen pass into its targets and exposes the
// targets through a read-only bind group. Generation is unconditional:
// callers regenerate after every mutation and resize. A resize destroys the
// previous bind group before its textures and replaces the group, so a
// bind group ID obtained before a resize is never valid afterwards.
package derive

import (
	"errors"
	"fmt"

	"github.com/gogpu/glass/gpucore"
)

// ErrNotInitialized is returned by Generate before the first Resize.
var ErrNotInitialized = errors.New("derive: targets not initialized")

// Bindable is a bind group consumed by a stage, such as the system group
// or the shape store.
type Bindable interface {
	Layout() gpucore.BindGroupLayoutID
	BindGroup() gpucore.BindGroupID
}

// target describes one render target of a stage. It is exposed at binding
// 2k with its sampler at binding 2k+1.
type target struct {
	label  string
	format gpucore.TextureFormat
}

type stageConfig struct {
	label    string
	wgsl     string
	fragment gpucore.FragmentFunc
	inputs   []Bindable
	targets  []target
}

// stage is a full-screen pass with its own targets and read bind group.
type stage struct {
	label   string
	adapter gpucore.GPUAdapter
	inputs  []Bindable
	targets []target

	module         gpucore.ShaderModuleID
	pipelineLayout gpucore.PipelineLayoutID
	pipeline       gpucore.RenderPipelineID
	readLayout     gpucore.BindGroupLayoutID
	nearest        gpucore.SamplerID
	linear         gpucore.SamplerID

	textures []gpucore.TextureID
	group    gpucore.BindGroupID
	width    int
	height   int

	generations int
}

func newStage(adapter gpucore.GPUAdapter, cfg stageConfig) (_ *stage, err error) {
	st := &stage{
		label:    cfg.label,
		adapter:  adapter,
		inputs:   cfg.inputs,
		targets:  cfg.targets,
		textures: make([]gpucore.TextureID, len(cfg.targets)),
	}
	defer func() {
		if err != nil {
			st.Destroy()
		}
	}()

	st.module, err = adapter.CreateShaderModule(&gpucore.ShaderModuleDesc{
		Label:    cfg.label,
		WGSL:     cfg.wgsl,
		Fragment: cfg.fragment,
	})
	if err != nil {
		return nil, fmt.Errorf("derive: %s: create shader: %w", cfg.label, err)
	}

	layouts := make([]gpucore.BindGroupLayoutID, len(cfg.inputs))
	for i, in := range cfg.inputs {
		layouts[i] = in.Layout()
	}
	st.pipelineLayout, err = adapter.CreatePipelineLayout(layouts)
	if err != nil {
		return nil, fmt.Errorf("derive: %s: create pipeline layout: %w", cfg.label, err)
	}

	colorTargets := make([]gpucore.ColorTarget, len(cfg.targets))
	readEntries := make([]gpucore.BindGroupLayoutEntry, 0, 2*len(cfg.targets))
	for i, t := range cfg.targets {
		colorTargets[i] = gpucore.ColorTarget{Format: t.format}
		texType, samplerType := gpucore.BindingTypeSampledTexture, gpucore.BindingTypeFilteringSampler
		if !t.format.Filterable() {
			texType, samplerType = gpucore.BindingTypeUnfilterableTexture, gpucore.BindingTypeNonFilteringSampler
		}
		readEntries = append(readEntries,
			gpucore.BindGroupLayoutEntry{Binding: uint32(2 * i), Type: texType, Visibility: gpucore.ShaderStageFragment},
			gpucore.BindGroupLayoutEntry{Binding: uint32(2*i + 1), Type: samplerType, Visibility: gpucore.ShaderStageFragment},
		)
	}
	st.pipeline, err = adapter.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:         cfg.label,
		Layout:        st.pipelineLayout,
		Module:        st.module,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Targets:       colorTargets,
	})
	if err != nil {
		return nil, fmt.Errorf("derive: %s: create pipeline: %w", cfg.label, err)
	}

	st.readLayout, err = adapter.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label:   cfg.label + " read",
		Entries: readEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("derive: %s: create read layout: %w", cfg.label, err)
	}
	st.nearest, err = adapter.CreateSampler(&gpucore.SamplerDesc{Label: cfg.label + " nearest", Filter: gpucore.FilterNearest})
	if err != nil {
		return nil, fmt.Errorf("derive: %s: create sampler: %w", cfg.label, err)
	}
	st.linear, err = adapter.CreateSampler(&gpucore.SamplerDesc{Label: cfg.label + " linear", Filter: gpucore.FilterLinear})
	if err != nil {
		return nil, fmt.Errorf("derive: %s: create sampler: %w", cfg.label, err)
	}
	return st, nil
}

// Layout returns the read bind group layout. It does not change on resize.
func (st *stage) Layout() gpucore.BindGroupLayoutID { return st.readLayout }

// BindGroup returns the current read bind group, or InvalidID before the
// first Resize.
func (st *stage) BindGroup() gpucore.BindGroupID { return st.group }

// Generations returns the number of completed Generate calls.
func (st *stage) Generations() int { return st.generations }

// Size returns the target size.
func (st *stage) Size() (width, height int) { return st.width, st.height }

// Resize recreates the targets and the read bind group at the new size,
// then regenerates.
func (st *stage) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("derive: %s: invalid size %dx%d", st.label, width, height)
	}
	st.destroyTargets()

	for i, t := range st.targets {
		id, err := st.adapter.CreateTexture(&gpucore.TextureDesc{
			Label:  st.label + " " + t.label,
			Width:  width,
			Height: height,
			Format: t.format,
			Usage: gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageTextureBinding |
				gpucore.TextureUsageCopySrc,
		})
		if err != nil {
			st.destroyTargets()
			return fmt.Errorf("derive: %s: create %s texture: %w", st.label, t.label, err)
		}
		st.textures[i] = id
	}

	entries := make([]gpucore.BindGroupEntry, 0, 2*len(st.targets))
	for i, t := range st.targets {
		sampler := st.linear
		if !t.format.Filterable() {
			sampler = st.nearest
		}
		entries = append(entries,
			gpucore.BindGroupEntry{Binding: uint32(2 * i), Texture: st.textures[i]},
			gpucore.BindGroupEntry{Binding: uint32(2*i + 1), Sampler: sampler},
		)
	}
	group, err := st.adapter.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   st.label + " read",
		Layout:  st.readLayout,
		Entries: entries,
	})
	if err != nil {
		st.destroyTargets()
		return fmt.Errorf("derive: %s: create read bind group: %w", st.label, err)
	}
	st.group = group
	st.width, st.height = width, height
	slogger().Debug("derive: targets resized", "stage", st.label, "width", width, "height", height)
	return st.Generate()
}

// Generate renders the stage into its targets.
func (st *stage) Generate() error {
	if st.group == gpucore.InvalidID {
		return fmt.Errorf("derive: %s: %w", st.label, ErrNotInitialized)
	}
	attachments := make([]gpucore.ColorAttachment, len(st.textures))
	for i, id := range st.textures {
		attachments[i] = gpucore.ColorAttachment{Texture: id, Load: gpucore.LoadOpClear}
	}
	pass, err := st.adapter.BeginRenderPass(&gpucore.RenderPassDesc{
		Label:            st.label,
		ColorAttachments: attachments,
	})
	if err != nil {
		return fmt.Errorf("derive: %s: begin pass: %w", st.label, err)
	}
	pass.SetPipeline(st.pipeline)
	for i, in := range st.inputs {
		pass.SetBindGroup(uint32(i), in.BindGroup())
	}
	pass.Draw(gpucore.FullScreenVertices, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("derive: %s: end pass: %w", st.label, err)
	}
	if err := st.adapter.Submit(); err != nil {
		return fmt.Errorf("derive: %s: submit: %w", st.label, err)
	}
	st.generations++
	slogger().Debug("derive: generated", "stage", st.label, "generation", st.generations)
	return nil
}

// texture returns target i.
func (st *stage) texture(i int) gpucore.TextureID { return st.textures[i] }

// destroyTargets releases the read bind group first, then the textures it
// references.
func (st *stage) destroyTargets() {
	if st.group != gpucore.InvalidID {
		st.adapter.DestroyBindGroup(st.group)
		st.group = gpucore.InvalidID
	}
	for i, id := range st.textures {
		if id != gpucore.InvalidID {
			st.adapter.DestroyTexture(id)
			st.textures[i] = gpucore.InvalidID
		}
	}
	st.width, st.height = 0, 0
}

// Destroy releases every resource owned by the stage.
func (st *stage) Destroy() {
	st.destroyTargets()
	a := st.adapter
	if st.linear != gpucore.InvalidID {
		a.DestroySampler(st.linear)
		st.linear = gpucore.InvalidID
	}
	if st.nearest != gpucore.InvalidID {
		a.DestroySampler(st.nearest)
		st.nearest = gpucore.InvalidID
	}
	if st.readLayout != gpucore.InvalidID {
		a.DestroyBindGroupLayout(st.readLayout)
		st.readLayout = gpucore.InvalidID
	}
	if st.pipeline != gpucore.InvalidID {
		a.DestroyRenderPipeline(st.pipeline)
		st.pipeline = gpucore.InvalidID
	}
	if st.pipelineLayout != gpucore.InvalidID {
		a.DestroyPipelineLayout(st.pipelineLayout)
		st.pipelineLayout = gpucore.InvalidID
	}
	if st.module != gpucore.InvalidID {
		a.DestroyShaderModule(st.module)
		st.module = gpucore.InvalidID
	}
}
