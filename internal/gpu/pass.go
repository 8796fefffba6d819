package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glass/gpucore"
)

// passEncoder records one render pass into its own command encoder.
type passEncoder struct {
	a       *HALAdapter
	label   string
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	err     error
	ended   bool
}

// BeginRenderPass implements gpucore.GPUAdapter.
func (a *HALAdapter) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPassEncoder, error) {
	n := len(desc.ColorAttachments)
	if n == 0 || n > gpucore.MaxColorTargets {
		return nil, fmt.Errorf("gpu: pass %q has %d attachments: %w", desc.Label, n, gpucore.ErrUnsupported)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return nil, fmt.Errorf("gpu: begin %q: %w", desc.Label, gpucore.ErrPassOpen)
	}
	attachments := make([]hal.RenderPassColorAttachment, n)
	for i, c := range desc.ColorAttachments {
		t, ok := a.textures[c.Texture]
		if !ok {
			return nil, fmt.Errorf("gpu: pass %q attachment %d: %w", desc.Label, i, gpucore.ErrInvalidID)
		}
		attachments[i] = hal.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     loadOp(c.Load),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor(c.Clear),
		}
	}

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: desc.Label})
	if err != nil {
		return nil, fmt.Errorf("gpu: create encoder %q: %w", desc.Label, err)
	}
	if err := encoder.BeginEncoding(desc.Label); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("gpu: begin encoding %q: %w", desc.Label, err)
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{Label: desc.Label, ColorAttachments: attachments})
	a.open = true
	return &passEncoder{a: a, label: desc.Label, encoder: encoder, pass: pass}, nil
}

func (p *passEncoder) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *passEncoder) SetPipeline(id gpucore.RenderPipelineID) {
	p.a.mu.Lock()
	raw, ok := p.a.pipelines[id]
	p.a.mu.Unlock()
	if !ok {
		p.fail(fmt.Errorf("pipeline %d: %w", id, gpucore.ErrInvalidID))
		return
	}
	p.pass.SetPipeline(raw)
}

func (p *passEncoder) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	p.a.mu.Lock()
	raw, ok := p.a.groups[id]
	p.a.mu.Unlock()
	if !ok {
		p.fail(fmt.Errorf("bind group %d at %d: %w", id, index, gpucore.ErrInvalidID))
		return
	}
	p.pass.SetBindGroup(index, raw, nil)
}

func (p *passEncoder) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *passEncoder) End() error {
	if p.ended {
		return errors.New("gpu: render pass already ended")
	}
	p.ended = true
	p.pass.End()

	a := p.a
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = false
	if p.err != nil {
		p.encoder.DiscardEncoding()
		p.encoder.Destroy()
		return fmt.Errorf("gpu: pass %q: %w", p.label, p.err)
	}
	cmd, err := p.encoder.EndEncoding()
	if err != nil {
		p.encoder.Destroy()
		return fmt.Errorf("gpu: end encoding %q: %w", p.label, err)
	}
	a.pending = append(a.pending, submission{cmd: cmd, encoder: p.encoder})
	return nil
}

// Submit implements gpucore.GPUAdapter. Ended passes are submitted in one
// batch, in recording order.
func (a *HALAdapter) Submit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return fmt.Errorf("gpu: submit: %w", gpucore.ErrPassOpen)
	}
	if len(a.pending) == 0 {
		// Passes discarded by End left nothing new on the queue.
		a.bindRetired(a.submitted)
		a.reclaim(a.queue.PollCompleted())
		return nil
	}
	return a.submitLocked()
}

// submitLocked submits pending. Caller holds mu.
func (a *HALAdapter) submitLocked() error {
	cmds := make([]hal.CommandBuffer, len(a.pending))
	for i, s := range a.pending {
		cmds[i] = s.cmd
	}
	index, err := a.queue.Submit(cmds)
	if err != nil {
		for _, s := range a.pending {
			a.release(s)
		}
		a.pending = nil
		// Nothing recorded since the last submit reached the queue.
		a.bindRetired(a.submitted)
		a.reclaim(a.queue.PollCompleted())
		return fmt.Errorf("gpu: submit: %w", err)
	}
	a.submitted = index
	a.bindRetired(index)
	for _, s := range a.pending {
		s.index = index
		a.inflight = append(a.inflight, s)
	}
	slogger().Debug("gpu: submitted", "passes", len(a.pending), "index", index)
	a.pending = nil
	a.reclaim(a.queue.PollCompleted())
	return nil
}

// reclaim frees command buffers whose submission has completed.
// Caller holds mu.
func (a *HALAdapter) reclaim(completed uint64) {
	kept := a.inflight[:0]
	for _, s := range a.inflight {
		if s.index <= completed {
			a.release(s)
			continue
		}
		kept = append(kept, s)
	}
	clear(a.inflight[len(kept):])
	a.inflight = kept
	a.freeRetired(func(r retired) bool { return !r.unsubmitted && r.index <= completed })
}

// retired is a resource destroyed by the caller while work that may
// reference it is recorded or executing.
type retired struct {
	// index is the submission that must complete before free runs.
	index uint64

	// unsubmitted marks resources released while a pass was open or
	// pending; their index is set by the next Submit.
	unsubmitted bool

	free func()
}

// retire runs free now when no recorded or submitted work can reference
// the resource, otherwise once that work has completed.
func (a *HALAdapter) retire(free func()) {
	a.mu.Lock()
	if !a.open && len(a.pending) == 0 && len(a.inflight) == 0 {
		a.mu.Unlock()
		free()
		return
	}
	a.retired = append(a.retired, retired{
		index:       a.submitted,
		unsubmitted: a.open || len(a.pending) > 0,
		free:        free,
	})
	a.mu.Unlock()
}

// bindRetired assigns index to resources waiting for a submission.
// Caller holds mu.
func (a *HALAdapter) bindRetired(index uint64) {
	for i := range a.retired {
		if a.retired[i].unsubmitted {
			a.retired[i].index = index
			a.retired[i].unsubmitted = false
		}
	}
}

// freeRetired frees the retired resources selected by done.
// Caller holds mu.
func (a *HALAdapter) freeRetired(done func(retired) bool) {
	kept := a.retired[:0]
	for _, r := range a.retired {
		if done(r) {
			r.free()
			continue
		}
		kept = append(kept, r)
	}
	clear(a.retired[len(kept):])
	a.retired = kept
}

func (a *HALAdapter) release(s submission) {
	a.device.FreeCommandBuffer(s.cmd)
	s.encoder.Destroy()
}

// WaitIdle implements gpucore.GPUAdapter.
func (a *HALAdapter) WaitIdle() error {
	if err := a.device.WaitIdle(); err != nil {
		return fmt.Errorf("gpu: wait idle: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.inflight {
		a.release(s)
	}
	a.inflight = nil
	a.freeRetired(func(r retired) bool { return !r.unsubmitted })
	return nil
}

// Retired returns the number of destroyed resources whose release waits
// for the GPU.
func (a *HALAdapter) Retired() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.retired)
}

// InFlight returns the number of submitted command buffers not yet freed.
func (a *HALAdapter) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inflight)
}
