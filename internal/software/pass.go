package software

import (
	"errors"
	"fmt"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/parallel"
)

// ErrNoPipeline is returned by End when a draw was recorded without a pipeline.
var ErrNoPipeline = errors.New("software: draw without pipeline")

type draw struct {
	pipeline gpucore.RenderPipelineID
	groups   [maxBindGroups]gpucore.BindGroupID
	vertices uint32
	count    uint32
}

// maxBindGroups matches the default WebGPU limit raised to the largest
// layout used by the composition layer.
const maxBindGroups = 8

type recordedPass struct {
	desc  gpucore.RenderPassDesc
	draws []draw
}

// passEncoder records one render pass.
type passEncoder struct {
	adapter  *Adapter
	pass     *recordedPass
	pipeline gpucore.RenderPipelineID
	groups   [maxBindGroups]gpucore.BindGroupID
	err      error
	ended    bool
}

// BeginRenderPass implements gpucore.GPUAdapter.
func (a *Adapter) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPassEncoder, error) {
	n := len(desc.ColorAttachments)
	if n == 0 || n > gpucore.MaxColorTargets {
		return nil, fmt.Errorf("software: pass %q: %d color attachments", desc.Label, n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open != nil {
		return nil, fmt.Errorf("software: begin pass %q: %w", desc.Label, gpucore.ErrPassOpen)
	}
	var w, h int
	for i, att := range desc.ColorAttachments {
		t, ok := a.textures[att.Texture]
		if !ok {
			return nil, fmt.Errorf("software: pass %q: attachment %d: %w", desc.Label, i, gpucore.ErrInvalidID)
		}
		if t.usage&gpucore.TextureUsageRenderAttachment == 0 {
			return nil, fmt.Errorf("software: pass %q: texture %q is not a render attachment", desc.Label, t.label)
		}
		if i == 0 {
			w, h = t.width, t.height
		} else if t.width != w || t.height != h {
			return nil, fmt.Errorf("software: pass %q: attachment sizes differ", desc.Label)
		}
	}
	rp := &recordedPass{desc: *desc}
	rp.desc.ColorAttachments = append([]gpucore.ColorAttachment(nil), desc.ColorAttachments...)
	a.open = &passEncoder{adapter: a, pass: rp}
	return a.open, nil
}

// SetPipeline implements gpucore.RenderPassEncoder.
func (e *passEncoder) SetPipeline(p gpucore.RenderPipelineID) {
	e.pipeline = p
}

// SetBindGroup implements gpucore.RenderPassEncoder.
func (e *passEncoder) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if index >= maxBindGroups {
		e.err = fmt.Errorf("software: bind group index %d out of range", index)
		return
	}
	e.groups[index] = group
}

// Draw implements gpucore.RenderPassEncoder.
func (e *passEncoder) Draw(vertexCount, instanceCount uint32) {
	if e.pipeline == gpucore.InvalidID {
		e.err = ErrNoPipeline
		return
	}
	e.pass.draws = append(e.pass.draws, draw{
		pipeline: e.pipeline,
		groups:   e.groups,
		vertices: vertexCount,
		count:    instanceCount,
	})
}

// End implements gpucore.RenderPassEncoder. A pass that recorded an error is
// discarded.
func (e *passEncoder) End() error {
	a := e.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	if e.ended {
		return fmt.Errorf("software: pass %q already ended", e.pass.desc.Label)
	}
	e.ended = true
	if a.open == e {
		a.open = nil
	}
	if e.err != nil {
		return fmt.Errorf("software: pass %q: %w", e.pass.desc.Label, e.err)
	}
	a.pending = append(a.pending, e.pass)
	return nil
}

// Submit implements gpucore.GPUAdapter. Pending passes execute in the order
// they ended. Execution stops at the first failing pass; later passes are
// dropped.
func (a *Adapter) Submit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open != nil {
		return fmt.Errorf("software: submit: %w", gpucore.ErrPassOpen)
	}
	passes := a.pending
	a.pending = nil
	if len(passes) == 0 {
		return nil
	}
	a.stats.Submits++
	for _, rp := range passes {
		if err := a.execute(rp); err != nil {
			slogger().Warn("software: pass failed", "label", rp.desc.Label, "err", err)
			return err
		}
		a.stats.Passes++
		a.passLog = append(a.passLog, rp.desc.Label)
	}
	return nil
}

// execute runs one recorded pass. Callers hold mu.
func (a *Adapter) execute(rp *recordedPass) error {
	targets := make([]*texture, len(rp.desc.ColorAttachments))
	for i, att := range rp.desc.ColorAttachments {
		t, ok := a.textures[att.Texture]
		if !ok {
			return fmt.Errorf("software: pass %q: attachment %d: %w", rp.desc.Label, i, gpucore.ErrInvalidID)
		}
		targets[i] = t
	}
	for i, att := range rp.desc.ColorAttachments {
		if att.Load == gpucore.LoadOpClear {
			targets[i].clear(att.Clear)
		}
	}
	for _, d := range rp.draws {
		if err := a.executeDraw(rp, d, targets); err != nil {
			return err
		}
		a.stats.Draws++
	}
	return nil
}

func (a *Adapter) executeDraw(rp *recordedPass, d draw, targets []*texture) error {
	p, ok := a.pipelines[d.pipeline]
	if !ok {
		return fmt.Errorf("software: pass %q: pipeline %d: %w", rp.desc.Label, d.pipeline, gpucore.ErrInvalidID)
	}
	if len(p.targets) != len(targets) {
		return fmt.Errorf("software: pass %q: pipeline %q has %d targets, pass has %d",
			rp.desc.Label, p.label, len(p.targets), len(targets))
	}
	for i, t := range p.targets {
		if t.Format != targets[i].format {
			return fmt.Errorf("software: pass %q: target %d format mismatch", rp.desc.Label, i)
		}
	}
	b, err := a.bind(rp.desc.Label, p, d.groups)
	if err != nil {
		return err
	}
	// Only full-screen quads are drawn; anything else produces no fragments.
	if d.vertices < gpucore.FullScreenVertices || d.count == 0 {
		return nil
	}

	w, h := targets[0].width, targets[0].height
	parallel.ForRows(a.pool, h, func(band parallel.Band) {
		f := gpucore.Fragment{Bindings: b}
		for y := band.Y0; y < band.Y1; y++ {
			for x := 0; x < w; x++ {
				f.X = float32(x) + 0.5
				f.Y = float32(y) + 0.5
				f.Out = [gpucore.MaxColorTargets]gpucore.Color{}
				p.fragment(&f)
				for i, t := range targets {
					out := f.Out[i]
					if p.targets[i].Blend == gpucore.BlendPremultiplied {
						out = blendPremultiplied(out, t.load(x, y))
					}
					t.store(x, y, out)
				}
			}
		}
	})
	return nil
}

// binder resolves the bind groups of one draw for CPU fragment functions.
type binder struct {
	buffers  map[[2]uint32][]byte
	textures map[[2]uint32]*texture
}

// bind resolves every group the pipeline layout declares. A destroyed or
// unset group fails the draw. Callers hold mu.
func (a *Adapter) bind(label string, p *pipeline, groups [maxBindGroups]gpucore.BindGroupID) (*binder, error) {
	b := &binder{
		buffers:  make(map[[2]uint32][]byte),
		textures: make(map[[2]uint32]*texture),
	}
	for gi, layoutID := range p.groups {
		g, ok := a.groups[groups[gi]]
		if !ok {
			return nil, fmt.Errorf("software: pass %q: group %d: bind group %d: %w",
				label, gi, groups[gi], gpucore.ErrInvalidID)
		}
		if g.layout != layoutID {
			return nil, fmt.Errorf("software: pass %q: group %d: bind group %q has incompatible layout",
				label, gi, g.label)
		}
		layout := a.layouts[layoutID]
		if layout == nil {
			return nil, fmt.Errorf("software: pass %q: group %d: layout: %w", label, gi, gpucore.ErrInvalidID)
		}
		for binding, e := range g.entries {
			key := [2]uint32{uint32(gi), binding}
			switch le := layout.entries[binding]; {
			case le.Type.IsBuffer():
				buf, ok := a.buffers[e.Buffer]
				if !ok {
					return nil, fmt.Errorf("software: pass %q: group %d binding %d: buffer: %w",
						label, gi, binding, gpucore.ErrInvalidID)
				}
				data := buf.data[min(e.Offset, uint64(len(buf.data))):]
				if e.Size > 0 && e.Size < uint64(len(data)) {
					data = data[:e.Size]
				}
				b.buffers[key] = data
			case le.Type.IsTexture():
				t, ok := a.textures[e.Texture]
				if !ok {
					return nil, fmt.Errorf("software: pass %q: group %d binding %d: texture: %w",
						label, gi, binding, gpucore.ErrInvalidID)
				}
				b.textures[key] = t
			case le.Type.IsSampler():
				if _, ok := a.samplers[e.Sampler]; !ok {
					return nil, fmt.Errorf("software: pass %q: group %d binding %d: sampler: %w",
						label, gi, binding, gpucore.ErrInvalidID)
				}
			}
		}
	}
	return b, nil
}

// Buffer implements gpucore.Bindings.
func (b *binder) Buffer(group, binding uint32) []byte {
	return b.buffers[[2]uint32{group, binding}]
}

// Load implements gpucore.Bindings.
func (b *binder) Load(group, binding uint32, x, y int) gpucore.Color {
	t := b.textures[[2]uint32{group, binding}]
	if t == nil {
		return gpucore.Color{}
	}
	return t.load(x, y)
}

// TextureSize implements gpucore.Bindings.
func (b *binder) TextureSize(group, binding uint32) (int, int) {
	t := b.textures[[2]uint32{group, binding}]
	if t == nil {
		return 0, 0
	}
	return t.width, t.height
}
