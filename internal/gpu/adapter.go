package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glass/gpucore"
)

// ErrExternalTexture is returned when an operation needs to own a texture
// that was imported with ImportView.
var ErrExternalTexture = errors.New("gpu: texture is an imported view")

type buffer struct {
	raw   hal.Buffer
	size  uint64
	usage gpucore.BufferUsage
}

type texture struct {
	raw      hal.Texture // nil for imported views
	view     hal.TextureView
	desc     gpucore.TextureDesc
	external bool
}

// submission is a command buffer the queue may still be executing.
type submission struct {
	index   uint64
	cmd     hal.CommandBuffer
	encoder hal.CommandEncoder
}

// Option configures a HALAdapter.
type Option func(*HALAdapter)

// WithSPIRV compiles WGSL to SPIR-V with naga before handing modules to
// the device. By default the backend receives WGSL and compiles it itself.
func WithSPIRV() Option {
	return func(a *HALAdapter) { a.spirv = true }
}

// HALAdapter implements gpucore.GPUAdapter with a hal device and queue.
type HALAdapter struct {
	mu sync.Mutex

	instance hal.Instance // set only when the adapter opened the device
	device   hal.Device
	queue    hal.Queue
	owned    bool
	spirv    bool

	nextID          uint64
	buffers         map[gpucore.BufferID]*buffer
	textures        map[gpucore.TextureID]*texture
	samplers        map[gpucore.SamplerID]hal.Sampler
	modules         map[gpucore.ShaderModuleID]hal.ShaderModule
	layouts         map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts map[gpucore.PipelineLayoutID]hal.PipelineLayout
	pipelines       map[gpucore.RenderPipelineID]hal.RenderPipeline
	groups          map[gpucore.BindGroupID]hal.BindGroup

	open      bool
	pending   []submission
	inflight  []submission
	submitted uint64 // index of the last successful Submit
	retired   []retired
}

var _ gpucore.GPUAdapter = (*HALAdapter)(nil)

// New wraps a device and queue the caller keeps ownership of.
func New(device hal.Device, queue hal.Queue, opts ...Option) *HALAdapter {
	a := &HALAdapter{
		device:          device,
		queue:           queue,
		buffers:         make(map[gpucore.BufferID]*buffer),
		textures:        make(map[gpucore.TextureID]*texture),
		samplers:        make(map[gpucore.SamplerID]hal.Sampler),
		modules:         make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		layouts:         make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts: make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		pipelines:       make(map[gpucore.RenderPipelineID]hal.RenderPipeline),
		groups:          make(map[gpucore.BindGroupID]hal.BindGroup),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements gpucore.GPUAdapter.
func (a *HALAdapter) Name() string { return "hal" }

// Device returns the underlying hal device.
func (a *HALAdapter) Device() hal.Device { return a.device }

// Queue returns the underlying hal queue.
func (a *HALAdapter) Queue() hal.Queue { return a.queue }

// LiveResources returns the number of tracked resources, imported views
// included.
func (a *HALAdapter) LiveResources() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers) + len(a.textures) + len(a.samplers) + len(a.modules) +
		len(a.layouts) + len(a.pipelineLayouts) + len(a.pipelines) + len(a.groups)
}

// id returns a fresh resource ID. Caller holds mu.
func (a *HALAdapter) id() uint64 {
	a.nextID++
	return a.nextID
}

// CreateBuffer implements gpucore.GPUAdapter.
func (a *HALAdapter) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	raw, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create buffer %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BufferID(a.id())
	a.buffers[id] = &buffer{raw: raw, size: desc.Size, usage: desc.Usage}
	slogger().Debug("gpu: buffer created", "label", desc.Label, "size", desc.Size)
	return id, nil
}

// DestroyBuffer implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroyBuffer(b.raw) })
	}
}

func (a *HALAdapter) buffer(id gpucore.BufferID) (*buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("gpu: buffer %d: %w", id, gpucore.ErrInvalidID)
	}
	return b, nil
}

// WriteBuffer implements gpucore.GPUAdapter.
func (a *HALAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, err := a.buffer(id)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("gpu: write [%d, %d) past buffer size %d", offset, offset+uint64(len(data)), b.size)
	}
	if err := a.queue.WriteBuffer(b.raw, offset, data); err != nil {
		return fmt.Errorf("gpu: write buffer %d: %w", id, err)
	}
	return nil
}

// CreateTexture implements gpucore.GPUAdapter.
func (a *HALAdapter) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("gpu: texture %q size %dx%d: %w",
			desc.Label, desc.Width, desc.Height, gpucore.ErrUnsupported)
	}
	format, err := ToTextureFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create texture %q: %w", desc.Label, err)
	}
	view, err := a.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         desc.Label + " view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		a.device.DestroyTexture(raw)
		return gpucore.InvalidID, fmt.Errorf("gpu: create view %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.id())
	a.textures[id] = &texture{raw: raw, view: view, desc: *desc}
	slogger().Debug("gpu: texture created", "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// ImportView registers a view the adapter does not own, such as the
// current surface texture, so it can be used as a render pass attachment.
// DestroyTexture on the returned ID only forgets the view.
func (a *HALAdapter) ImportView(view hal.TextureView, width, height int, format gpucore.TextureFormat) gpucore.TextureID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.TextureID(a.id())
	a.textures[id] = &texture{
		view:     view,
		external: true,
		desc: gpucore.TextureDesc{
			Label:  "imported view",
			Width:  width,
			Height: height,
			Format: format,
			Usage:  gpucore.TextureUsageRenderAttachment,
		},
	}
	return id
}

// DestroyTexture implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyTexture(id gpucore.TextureID) {
	a.mu.Lock()
	t, ok := a.textures[id]
	delete(a.textures, id)
	a.mu.Unlock()
	if !ok || t.external {
		return
	}
	a.retire(func() {
		a.device.DestroyTextureView(t.view)
		a.device.DestroyTexture(t.raw)
	})
}

func (a *HALAdapter) texture(id gpucore.TextureID) (*texture, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.textures[id]
	if !ok {
		return nil, fmt.Errorf("gpu: texture %d: %w", id, gpucore.ErrInvalidID)
	}
	return t, nil
}

// WriteTexture implements gpucore.GPUAdapter.
func (a *HALAdapter) WriteTexture(id gpucore.TextureID, data []byte) error {
	t, err := a.texture(id)
	if err != nil {
		return err
	}
	if t.external {
		return fmt.Errorf("gpu: write texture %d: %w", id, ErrExternalTexture)
	}
	w, h := uint32(t.desc.Width), uint32(t.desc.Height)
	bpp := uint32(t.desc.Format.BytesPerPixel())
	if want := int(w * h * bpp); len(data) != want {
		return fmt.Errorf("gpu: write texture %d: got %d bytes, want %d", id, len(data), want)
	}
	err = a.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: w * bpp, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("gpu: write texture %d: %w", id, err)
	}
	return nil
}

// CreateSampler implements gpucore.GPUAdapter.
func (a *HALAdapter) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	f := filterMode(desc.Filter)
	raw, err := a.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    f,
		MinFilter:    f,
		MipmapFilter: f,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create sampler %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.SamplerID(a.id())
	a.samplers[id] = raw
	return id, nil
}

// DestroySampler implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroySampler(id gpucore.SamplerID) {
	a.mu.Lock()
	s, ok := a.samplers[id]
	delete(a.samplers, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroySampler(s) })
	}
}

// CreateShaderModule implements gpucore.GPUAdapter. Only the WGSL variant
// of desc is used.
func (a *HALAdapter) CreateShaderModule(desc *gpucore.ShaderModuleDesc) (gpucore.ShaderModuleID, error) {
	if desc.WGSL == "" {
		return gpucore.InvalidID, fmt.Errorf("gpu: shader %q has no WGSL: %w", desc.Label, gpucore.ErrUnsupported)
	}
	source := hal.ShaderSource{WGSL: desc.WGSL}
	if a.spirv {
		code, err := CompileSPIRV(desc.WGSL)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("gpu: shader %q: %w", desc.Label, err)
		}
		source = hal.ShaderSource{SPIRV: code}
	}
	raw, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Label, Source: source})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create shader %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.ShaderModuleID(a.id())
	a.modules[id] = raw
	return id, nil
}

// DestroyShaderModule implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	m, ok := a.modules[id]
	delete(a.modules, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroyShaderModule(m) })
	}
}

// CreateBindGroupLayout implements gpucore.GPUAdapter.
func (a *HALAdapter) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		out, err := layoutEntry(e)
		if err != nil {
			return gpucore.InvalidID, err
		}
		entries = append(entries, out)
	}
	raw, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create layout %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BindGroupLayoutID(a.id())
	a.layouts[id] = raw
	return id, nil
}

// DestroyBindGroupLayout implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	a.mu.Lock()
	l, ok := a.layouts[id]
	delete(a.layouts, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroyBindGroupLayout(l) })
	}
}

// CreatePipelineLayout implements gpucore.GPUAdapter.
func (a *HALAdapter) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	a.mu.Lock()
	raws := make([]hal.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		raw, ok := a.layouts[l]
		if !ok {
			a.mu.Unlock()
			return gpucore.InvalidID, fmt.Errorf("gpu: pipeline layout group %d: %w", i, gpucore.ErrInvalidID)
		}
		raws[i] = raw
	}
	a.mu.Unlock()

	raw, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{BindGroupLayouts: raws})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create pipeline layout: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.PipelineLayoutID(a.id())
	a.pipelineLayouts[id] = raw
	return id, nil
}

// DestroyPipelineLayout implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	a.mu.Lock()
	l, ok := a.pipelineLayouts[id]
	delete(a.pipelineLayouts, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroyPipelineLayout(l) })
	}
}

// CreateRenderPipeline implements gpucore.GPUAdapter.
func (a *HALAdapter) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if n := len(desc.Targets); n == 0 || n > gpucore.MaxColorTargets {
		return gpucore.InvalidID, fmt.Errorf("gpu: pipeline %q has %d targets: %w", desc.Label, n, gpucore.ErrUnsupported)
	}
	targets := make([]gputypes.ColorTargetState, len(desc.Targets))
	for i, t := range desc.Targets {
		out, err := colorTarget(t)
		if err != nil {
			return gpucore.InvalidID, err
		}
		targets[i] = out
	}

	a.mu.Lock()
	layout, okLayout := a.pipelineLayouts[desc.Layout]
	module, okModule := a.modules[desc.Module]
	a.mu.Unlock()
	if !okLayout || !okModule {
		return gpucore.InvalidID, fmt.Errorf("gpu: pipeline %q: %w", desc.Label, gpucore.ErrInvalidID)
	}

	raw, err := a.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{Module: module, EntryPoint: desc.VertexEntry},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment:    &hal.FragmentState{Module: module, EntryPoint: desc.FragmentEntry, Targets: targets},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create pipeline %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.RenderPipelineID(a.id())
	a.pipelines[id] = raw
	return id, nil
}

// DestroyRenderPipeline implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	a.mu.Lock()
	p, ok := a.pipelines[id]
	delete(a.pipelines, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroyRenderPipeline(p) })
	}
}

// CreateBindGroup implements gpucore.GPUAdapter.
func (a *HALAdapter) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	a.mu.Lock()
	layout, ok := a.layouts[desc.Layout]
	if !ok {
		a.mu.Unlock()
		return gpucore.InvalidID, fmt.Errorf("gpu: bind group %q layout: %w", desc.Label, gpucore.ErrInvalidID)
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		res, err := a.resource(e)
		if err != nil {
			a.mu.Unlock()
			return gpucore.InvalidID, fmt.Errorf("gpu: bind group %q binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[i] = gputypes.BindGroupEntry{Binding: e.Binding, Resource: res}
	}
	a.mu.Unlock()

	raw, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{Label: desc.Label, Layout: layout, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gpu: create bind group %q: %w", desc.Label, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := gpucore.BindGroupID(a.id())
	a.groups[id] = raw
	return id, nil
}

// resource resolves one bind group entry. Caller holds mu.
func (a *HALAdapter) resource(e gpucore.BindGroupEntry) (gputypes.BindingResource, error) {
	switch {
	case e.Buffer != gpucore.InvalidID:
		b, ok := a.buffers[e.Buffer]
		if !ok {
			return nil, gpucore.ErrInvalidID
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		return gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: size}, nil
	case e.Texture != gpucore.InvalidID:
		t, ok := a.textures[e.Texture]
		if !ok {
			return nil, gpucore.ErrInvalidID
		}
		return gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}, nil
	case e.Sampler != gpucore.InvalidID:
		s, ok := a.samplers[e.Sampler]
		if !ok {
			return nil, gpucore.ErrInvalidID
		}
		return gputypes.SamplerBinding{Sampler: s.NativeHandle()}, nil
	default:
		return nil, gpucore.ErrInvalidID
	}
}

// DestroyBindGroup implements gpucore.GPUAdapter.
func (a *HALAdapter) DestroyBindGroup(id gpucore.BindGroupID) {
	a.mu.Lock()
	g, ok := a.groups[id]
	delete(a.groups, id)
	a.mu.Unlock()
	if ok {
		a.retire(func() { a.device.DestroyBindGroup(g) })
	}
}

// Destroy waits for the device, releases every tracked resource and, when
// the adapter opened the device itself, the device and instance.
func (a *HALAdapter) Destroy() {
	if err := a.WaitIdle(); err != nil {
		slogger().Warn("gpu: wait idle on destroy", "err", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.pending {
		a.release(s)
	}
	a.pending = nil
	a.freeRetired(func(retired) bool { return true })
	for id, g := range a.groups {
		a.device.DestroyBindGroup(g)
		delete(a.groups, id)
	}
	for id, p := range a.pipelines {
		a.device.DestroyRenderPipeline(p)
		delete(a.pipelines, id)
	}
	for id, l := range a.pipelineLayouts {
		a.device.DestroyPipelineLayout(l)
		delete(a.pipelineLayouts, id)
	}
	for id, l := range a.layouts {
		a.device.DestroyBindGroupLayout(l)
		delete(a.layouts, id)
	}
	for id, m := range a.modules {
		a.device.DestroyShaderModule(m)
		delete(a.modules, id)
	}
	for id, s := range a.samplers {
		a.device.DestroySampler(s)
		delete(a.samplers, id)
	}
	for id, t := range a.textures {
		if !t.external {
			a.device.DestroyTextureView(t.view)
			a.device.DestroyTexture(t.raw)
		}
		delete(a.textures, id)
	}
	for id, b := range a.buffers {
		a.device.DestroyBuffer(b.raw)
		delete(a.buffers, id)
	}

	if a.owned {
		a.device.Destroy()
		if a.instance != nil {
			a.instance.Destroy()
		}
		a.owned = false
		a.instance = nil
	}
}
