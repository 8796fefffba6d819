// Package system owns the per-frame uniforms shared by every pass: the
// viewport size and the cursor position.
package system

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/glass/gpucore"
)

// ErrNotInitialized is returned by writes before Init.
var ErrNotInitialized = errors.New("system: not initialized")

// Bindings of the system bind group.
const (
	BindingViewport = 0
	BindingCursor   = 1
)

const uniformSize = 8

// Outside is the cursor position written when the cursor leaves the window.
var Outside = float32(math.Inf(1))

// Group is the system bind group and its uniform buffers.
type Group struct {
	adapter  gpucore.GPUAdapter
	viewport gpucore.BufferID
	cursor   gpucore.BufferID
	layout   gpucore.BindGroupLayoutID
	group    gpucore.BindGroupID

	width, height int
	cursorX       float32
	cursorY       float32
}

// New returns an uninitialized group.
func New() *Group {
	return &Group{cursorX: Outside, cursorY: Outside}
}

// Init creates the uniforms and the bind group and writes the initial
// viewport. The cursor starts outside the window.
func (g *Group) Init(adapter gpucore.GPUAdapter, width, height int) error {
	if g.adapter != nil {
		return fmt.Errorf("system: already initialized")
	}
	var err error
	if g.viewport, err = createUniform(adapter, "viewport"); err != nil {
		return err
	}
	if g.cursor, err = createUniform(adapter, "cursor"); err != nil {
		adapter.DestroyBuffer(g.viewport)
		return err
	}
	g.layout, err = adapter.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "system",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: BindingViewport, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageVertexFragment},
			{Binding: BindingCursor, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageVertexFragment},
		},
	})
	if err != nil {
		adapter.DestroyBuffer(g.viewport)
		adapter.DestroyBuffer(g.cursor)
		return fmt.Errorf("system: create layout: %w", err)
	}
	g.group, err = adapter.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "system",
		Layout: g.layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: BindingViewport, Buffer: g.viewport},
			{Binding: BindingCursor, Buffer: g.cursor},
		},
	})
	if err != nil {
		adapter.DestroyBindGroupLayout(g.layout)
		adapter.DestroyBuffer(g.viewport)
		adapter.DestroyBuffer(g.cursor)
		return fmt.Errorf("system: create bind group: %w", err)
	}
	g.adapter = adapter
	if err := g.Resize(width, height); err != nil {
		return err
	}
	return g.writeCursor()
}

func createUniform(adapter gpucore.GPUAdapter, label string) (gpucore.BufferID, error) {
	id, err := adapter.CreateBuffer(&gpucore.BufferDesc{
		Label: label,
		Size:  uniformSize,
		Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("system: create %s uniform: %w", label, err)
	}
	return id, nil
}

// Layout returns the bind group layout.
func (g *Group) Layout() gpucore.BindGroupLayoutID { return g.layout }

// BindGroup returns the bind group.
func (g *Group) BindGroup() gpucore.BindGroupID { return g.group }

// Size returns the last viewport size.
func (g *Group) Size() (width, height int) { return g.width, g.height }

// Cursor returns the last cursor position; both components are +Inf when
// the cursor is outside.
func (g *Group) Cursor() (x, y float32) { return g.cursorX, g.cursorY }

// Resize writes the viewport uniform.
func (g *Group) Resize(width, height int) error {
	if g.adapter == nil {
		return ErrNotInitialized
	}
	g.width, g.height = width, height
	return g.write(g.viewport, float32(width), float32(height))
}

// CursorMove writes the cursor uniform.
func (g *Group) CursorMove(x, y float32) error {
	g.cursorX, g.cursorY = x, y
	if g.adapter == nil {
		return ErrNotInitialized
	}
	return g.writeCursor()
}

// CursorLeave moves the cursor outside the window.
func (g *Group) CursorLeave() error {
	return g.CursorMove(Outside, Outside)
}

func (g *Group) writeCursor() error {
	return g.write(g.cursor, g.cursorX, g.cursorY)
}

func (g *Group) write(buf gpucore.BufferID, x, y float32) error {
	var b [uniformSize]byte
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(y))
	if err := g.adapter.WriteBuffer(buf, 0, b[:]); err != nil {
		return fmt.Errorf("system: write uniform: %w", err)
	}
	return nil
}

// Destroy releases the bind group, layout and uniforms.
func (g *Group) Destroy() {
	if g.adapter == nil {
		return
	}
	g.adapter.DestroyBindGroup(g.group)
	g.adapter.DestroyBindGroupLayout(g.layout)
	g.adapter.DestroyBuffer(g.viewport)
	g.adapter.DestroyBuffer(g.cursor)
	g.adapter = nil
}

// Uniforms decodes the system group for CPU fragment functions.
type Uniforms struct {
	Viewport [2]float32
	Cursor   [2]float32
}

// ReadUniforms reads the system group bound at index group.
func ReadUniforms(b gpucore.Bindings, group uint32) Uniforms {
	var u Uniforms
	if v := b.Buffer(group, BindingViewport); len(v) >= uniformSize {
		u.Viewport = [2]float32{f32(v), f32(v[4:])}
	}
	if c := b.Buffer(group, BindingCursor); len(c) >= uniformSize {
		u.Cursor = [2]float32{f32(c), f32(c[4:])}
	}
	return u
}

func f32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }

// WGSL declares the system bindings for a shader that binds the group at
// index group.
func WGSL(group uint32) string {
	return fmt.Sprintf(`struct Viewport {
    size: vec2<f32>,
}

struct Cursor {
    position: vec2<f32>,
}

@group(%[1]d) @binding(0) var<uniform> viewport: Viewport;
@group(%[1]d) @binding(1) var<uniform> cursor: Cursor;
`, group)
}
