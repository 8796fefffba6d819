// Package software implements gpucore.GPUAdapter on the CPU.
//
// Buffers are byte slices, textures are packed pixel arrays, and a draw
// evaluates the pipeline's CPU fragment function once per target pixel.
// Passes are queued when they end and executed in order on Submit, which
// gives the same visibility rules as a GPU queue: a WriteBuffer issued
// before Submit is seen by every pass in that submission.
package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/parallel"
)

type buffer struct {
	label string
	usage gpucore.BufferUsage
	data  []byte
}

type bindGroupLayout struct {
	label   string
	entries map[uint32]gpucore.BindGroupLayoutEntry
}

type bindGroup struct {
	label   string
	layout  gpucore.BindGroupLayoutID
	entries map[uint32]gpucore.BindGroupEntry
}

type pipeline struct {
	label    string
	groups   []gpucore.BindGroupLayoutID
	fragment gpucore.FragmentFunc
	targets  []gpucore.ColorTarget
}

// Stats counts work executed by the adapter.
type Stats struct {
	// Submits is the number of Submit calls that executed at least one pass.
	Submits int

	// Passes is the number of executed render passes.
	Passes int

	// Draws is the number of executed draw calls.
	Draws int

	// BufferWrites is the number of WriteBuffer calls.
	BufferWrites int

	// BufferBytes is the total number of bytes written with WriteBuffer.
	BufferBytes int
}

// Adapter is a CPU implementation of gpucore.GPUAdapter.
//
// Adapter is safe for concurrent use; passes execute while holding the
// adapter lock.
type Adapter struct {
	mu     sync.Mutex
	nextID uint64
	pool   *parallel.WorkerPool

	buffers         map[gpucore.BufferID]*buffer
	textures        map[gpucore.TextureID]*texture
	samplers        map[gpucore.SamplerID]gpucore.SamplerDesc
	modules         map[gpucore.ShaderModuleID]gpucore.ShaderModuleDesc
	layouts         map[gpucore.BindGroupLayoutID]*bindGroupLayout
	pipelineLayouts map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID
	pipelines       map[gpucore.RenderPipelineID]*pipeline
	groups          map[gpucore.BindGroupID]*bindGroup

	open    *passEncoder
	pending []*recordedPass
	passLog []string
	stats   Stats
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithWorkers runs fragment work on n goroutines. n <= 1 runs passes on the
// calling goroutine. The default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Adapter) {
		if a.pool != nil {
			a.pool.Close()
			a.pool = nil
		}
		if n > 1 {
			a.pool = parallel.NewWorkerPool(n)
		}
	}
}

// New creates a CPU adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		pool:            parallel.NewWorkerPool(0),
		buffers:         make(map[gpucore.BufferID]*buffer),
		textures:        make(map[gpucore.TextureID]*texture),
		samplers:        make(map[gpucore.SamplerID]gpucore.SamplerDesc),
		modules:         make(map[gpucore.ShaderModuleID]gpucore.ShaderModuleDesc),
		layouts:         make(map[gpucore.BindGroupLayoutID]*bindGroupLayout),
		pipelineLayouts: make(map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID),
		pipelines:       make(map[gpucore.RenderPipelineID]*pipeline),
		groups:          make(map[gpucore.BindGroupID]*bindGroup),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ gpucore.GPUAdapter = (*Adapter)(nil)

// Name implements gpucore.GPUAdapter.
func (a *Adapter) Name() string { return "software" }

// id returns a fresh resource ID. IDs are never reused. Callers hold mu.
func (a *Adapter) id() uint64 {
	a.nextID++
	return a.nextID
}

// Stats returns a snapshot of the work counters.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// PassLog returns the labels of executed passes, oldest first.
func (a *Adapter) PassLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.passLog...)
}

// ResetPassLog clears the executed pass labels.
func (a *Adapter) ResetPassLog() {
	a.mu.Lock()
	a.passLog = nil
	a.mu.Unlock()
}

// LiveResources returns the number of live resources of every kind.
func (a *Adapter) LiveResources() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers) + len(a.textures) + len(a.samplers) + len(a.modules) +
		len(a.layouts) + len(a.pipelineLayouts) + len(a.pipelines) + len(a.groups)
}

// CreateBuffer implements gpucore.GPUAdapter.
func (a *Adapter) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: create buffer: size must be positive")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BufferID(a.id())
	a.buffers[id] = &buffer{label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size)}
	slogger().Debug("software: buffer created", "label", desc.Label, "size", desc.Size)
	return id, nil
}

// DestroyBuffer implements gpucore.GPUAdapter.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	delete(a.buffers, id)
	a.mu.Unlock()
}

// WriteBuffer implements gpucore.GPUAdapter.
func (a *Adapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[id]
	if !ok {
		return fmt.Errorf("software: write buffer %d: %w", id, gpucore.ErrInvalidID)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("software: write buffer %q: range [%d,%d) exceeds size %d",
			b.label, offset, offset+uint64(len(data)), len(b.data))
	}
	copy(b.data[offset:], data)
	a.stats.BufferWrites++
	a.stats.BufferBytes += len(data)
	return nil
}

// ReadBuffer implements gpucore.GPUAdapter.
func (a *Adapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("software: read buffer %d: %w", id, gpucore.ErrInvalidID)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("software: read buffer %q: range exceeds size %d", b.label, len(b.data))
	}
	return append([]byte(nil), b.data[offset:offset+size]...), nil
}

// CreateTexture implements gpucore.GPUAdapter.
func (a *Adapter) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc == nil || desc.Width <= 0 || desc.Height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: create texture: invalid size")
	}
	if desc.Format.BytesPerPixel() == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: create texture %q: format %d: %w",
			desc.Label, desc.Format, gpucore.ErrUnsupported)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.id())
	a.textures[id] = newTexture(desc)
	slogger().Debug("software: texture created", "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// DestroyTexture implements gpucore.GPUAdapter.
func (a *Adapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	delete(a.textures, id)
	a.mu.Unlock()
}

// WriteTexture implements gpucore.GPUAdapter.
func (a *Adapter) WriteTexture(id gpucore.TextureID, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return fmt.Errorf("software: write texture %d: %w", id, gpucore.ErrInvalidID)
	}
	if len(data) != len(t.data) {
		return fmt.Errorf("software: write texture %q: got %d bytes, want %d", t.label, len(data), len(t.data))
	}
	copy(t.data, data)
	return nil
}

// ReadTexture implements gpucore.GPUAdapter.
func (a *Adapter) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return nil, fmt.Errorf("software: read texture %d: %w", id, gpucore.ErrInvalidID)
	}
	return append([]byte(nil), t.data...), nil
}

// CreateSampler implements gpucore.GPUAdapter.
func (a *Adapter) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.SamplerID(a.id())
	a.samplers[id] = *desc
	return id, nil
}

// DestroySampler implements gpucore.GPUAdapter.
func (a *Adapter) DestroySampler(id gpucore.SamplerID) {
	a.mu.Lock()
	delete(a.samplers, id)
	a.mu.Unlock()
}

// CreateShaderModule implements gpucore.GPUAdapter.
// Only the CPU fragment variant is used.
func (a *Adapter) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if desc.Fragment == nil {
		return gpucore.InvalidID, fmt.Errorf("software: shader %q has no CPU fragment: %w",
			desc.Label, gpucore.ErrUnsupported)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.ShaderModuleID(a.id())
	a.modules[id] = *desc
	return id, nil
}

// DestroyShaderModule implements gpucore.GPUAdapter.
func (a *Adapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	delete(a.modules, id)
	a.mu.Unlock()
}

// CreateBindGroupLayout implements gpucore.GPUAdapter.
func (a *Adapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make(map[uint32]gpucore.BindGroupLayoutEntry, len(desc.Entries))
	for _, e := range desc.Entries {
		if _, dup := entries[e.Binding]; dup {
			return gpucore.InvalidID, fmt.Errorf("software: layout %q: duplicate binding %d", desc.Label, e.Binding)
		}
		entries[e.Binding] = e
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BindGroupLayoutID(a.id())
	a.layouts[id] = &bindGroupLayout{label: desc.Label, entries: entries}
	return id, nil
}

// DestroyBindGroupLayout implements gpucore.GPUAdapter.
func (a *Adapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	delete(a.layouts, id)
	a.mu.Unlock()
}

// CreatePipelineLayout implements gpucore.GPUAdapter.
func (a *Adapter) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range layouts {
		if _, ok := a.layouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("software: pipeline layout: bind group layout %d: %w", l, gpucore.ErrInvalidID)
		}
	}
	id := gpucore.PipelineLayoutID(a.id())
	a.pipelineLayouts[id] = append([]gpucore.BindGroupLayoutID(nil), layouts...)
	return id, nil
}

// DestroyPipelineLayout implements gpucore.GPUAdapter.
func (a *Adapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	a.mu.Lock()
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()
}

// CreateRenderPipeline implements gpucore.GPUAdapter.
func (a *Adapter) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if len(desc.Targets) == 0 || len(desc.Targets) > gpucore.MaxColorTargets {
		return gpucore.InvalidID, fmt.Errorf("software: pipeline %q: %d color targets", desc.Label, len(desc.Targets))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	groups, ok := a.pipelineLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("software: pipeline %q: layout %d: %w", desc.Label, desc.Layout, gpucore.ErrInvalidID)
	}
	module, ok := a.modules[desc.Module]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("software: pipeline %q: module %d: %w", desc.Label, desc.Module, gpucore.ErrInvalidID)
	}
	id := gpucore.RenderPipelineID(a.id())
	a.pipelines[id] = &pipeline{
		label:    desc.Label,
		groups:   groups,
		fragment: module.Fragment,
		targets:  append([]gpucore.ColorTarget(nil), desc.Targets...),
	}
	return id, nil
}

// DestroyRenderPipeline implements gpucore.GPUAdapter.
func (a *Adapter) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	a.mu.Lock()
	delete(a.pipelines, id)
	a.mu.Unlock()
}

// CreateBindGroup implements gpucore.GPUAdapter.
// Every layout binding must be provided, with a resource of matching kind.
func (a *Adapter) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	layout, ok := a.layouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("software: bind group %q: layout %d: %w", desc.Label, desc.Layout, gpucore.ErrInvalidID)
	}
	if len(desc.Entries) != len(layout.entries) {
		return gpucore.InvalidID, fmt.Errorf("software: bind group %q: %d entries, layout %q has %d",
			desc.Label, len(desc.Entries), layout.label, len(layout.entries))
	}
	entries := make(map[uint32]gpucore.BindGroupEntry, len(desc.Entries))
	for _, e := range desc.Entries {
		le, ok := layout.entries[e.Binding]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("software: bind group %q: binding %d not in layout", desc.Label, e.Binding)
		}
		if err := a.checkEntry(le, e); err != nil {
			return gpucore.InvalidID, fmt.Errorf("software: bind group %q: binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[e.Binding] = e
	}
	id := gpucore.BindGroupID(a.id())
	a.groups[id] = &bindGroup{label: desc.Label, layout: desc.Layout, entries: entries}
	return id, nil
}

// checkEntry validates one bind group entry against its layout entry.
// Callers hold mu.
func (a *Adapter) checkEntry(le gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) error {
	switch {
	case le.Type.IsBuffer():
		if _, ok := a.buffers[e.Buffer]; !ok {
			return fmt.Errorf("buffer %d: %w", e.Buffer, gpucore.ErrInvalidID)
		}
	case le.Type.IsTexture():
		t, ok := a.textures[e.Texture]
		if !ok {
			return fmt.Errorf("texture %d: %w", e.Texture, gpucore.ErrInvalidID)
		}
		if le.Type == gpucore.BindingTypeSampledTexture && !t.format.Filterable() {
			return fmt.Errorf("texture %q is not filterable", t.label)
		}
	case le.Type.IsSampler():
		s, ok := a.samplers[e.Sampler]
		if !ok {
			return fmt.Errorf("sampler %d: %w", e.Sampler, gpucore.ErrInvalidID)
		}
		if le.Type == gpucore.BindingTypeNonFilteringSampler && s.Filter == gpucore.FilterLinear {
			return fmt.Errorf("sampler %q filters but layout requires non-filtering", s.Label)
		}
	}
	return nil
}

// DestroyBindGroup implements gpucore.GPUAdapter.
func (a *Adapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	delete(a.groups, id)
	a.mu.Unlock()
}

// WaitIdle implements gpucore.GPUAdapter. Submitted work has already run.
func (a *Adapter) WaitIdle() error { return nil }

// Destroy implements gpucore.GPUAdapter.
func (a *Adapter) Destroy() {
	a.mu.Lock()
	a.buffers = make(map[gpucore.BufferID]*buffer)
	a.textures = make(map[gpucore.TextureID]*texture)
	a.samplers = make(map[gpucore.SamplerID]gpucore.SamplerDesc)
	a.modules = make(map[gpucore.ShaderModuleID]gpucore.ShaderModuleDesc)
	a.layouts = make(map[gpucore.BindGroupLayoutID]*bindGroupLayout)
	a.pipelineLayouts = make(map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID)
	a.pipelines = make(map[gpucore.RenderPipelineID]*pipeline)
	a.groups = make(map[gpucore.BindGroupID]*bindGroup)
	a.open = nil
	a.pending = nil
	pool := a.pool
	a.pool = nil
	a.mu.Unlock()
	if pool != nil {
		pool.Close()
	}
}
