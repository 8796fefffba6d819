package gpucore

import "errors"

// Errors returned by adapter implementations.
var (
	// ErrInvalidID is returned when an ID does not name a live resource.
	ErrInvalidID = errors.New("gpucore: invalid resource id")

	// ErrUnsupported is returned when a descriptor requests something the
	// adapter cannot provide, such as a shader without a usable variant.
	ErrUnsupported = errors.New("gpucore: unsupported")

	// ErrPassOpen is returned when a pass is begun or work is submitted while
	// another render pass is still recording.
	ErrPassOpen = errors.New("gpucore: render pass still open")
)

// GPUAdapter abstracts over different GPU backend implementations.
//
// It is the resource-creation and queue-submission service consumed by the
// scene: the shape store, the derived-texture stages and the composition
// layer are written once against it. Implementations are the HAL adapter
// (gogpu/wgpu) and the CPU adapter used for tests and headless rendering.
//
// Ordering contract:
//   - WriteBuffer and WriteTexture are visible to every pass submitted after them.
//   - Submitted passes execute in submission order.
//   - No fence is needed between a generation pass and a later pass that
//     samples its outputs.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and are never reused
type GPUAdapter interface {
	// Name returns a short backend name for logs ("hal", "software").
	Name() string

	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer. Contents are zeroed.
	CreateBuffer(desc *BufferDesc) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at the given byte offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer reads data from a buffer.
	// This may cause a GPU-CPU synchronization stall.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Texture Management ===

	// CreateTexture creates a 2D texture and its default view.
	CreateTexture(desc *TextureDesc) (TextureID, error)

	// DestroyTexture releases a texture and its view.
	DestroyTexture(id TextureID)

	// WriteTexture replaces the full contents of a texture.
	// Data is tightly packed rows in the texture format.
	WriteTexture(id TextureID, data []byte) error

	// ReadTexture reads the full contents of a texture as tightly packed rows.
	// This may cause a GPU-CPU synchronization stall.
	ReadTexture(id TextureID) ([]byte, error)

	// CreateSampler creates a clamp-to-edge sampler.
	CreateSampler(desc *SamplerDesc) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// === Pipeline Management ===

	// CreateShaderModule creates a shader module.
	CreateShaderModule(desc *ShaderModuleDesc) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout creates a pipeline layout from bind group layouts
	// in group index order.
	CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateRenderPipeline creates a render pipeline.
	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipelineID, error)

	// DestroyRenderPipeline releases a render pipeline.
	DestroyRenderPipeline(id RenderPipelineID)

	// CreateBindGroup creates a bind group.
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Command Recording and Execution ===

	// BeginRenderPass begins recording a render pass.
	// The encoder must be ended with RenderPassEncoder.End().
	BeginRenderPass(desc *RenderPassDesc) (RenderPassEncoder, error)

	// Submit submits all ended passes for execution, in recording order.
	Submit() error

	// WaitIdle waits for all GPU operations to complete.
	// Use sparingly as this causes a full GPU-CPU synchronization.
	WaitIdle() error

	// Destroy releases every resource still owned by the adapter.
	Destroy()
}

// RenderPassEncoder records render commands.
//
// Usage:
//  1. Obtain encoder from GPUAdapter.BeginRenderPass()
//  2. Set pipeline and bind groups
//  3. Draw
//  4. Call End() to finish recording
//  5. Call GPUAdapter.Submit() to execute
//
// The encoder is single-use and cannot be reused after End().
type RenderPassEncoder interface {
	// SetPipeline sets the active render pipeline.
	SetPipeline(pipeline RenderPipelineID)

	// SetBindGroup sets a bind group at the specified index.
	// Index must be less than the number of bind group layouts in the pipeline.
	SetBindGroup(index uint32, group BindGroupID)

	// Draw draws non-indexed primitives. Full-screen passes draw 6 vertices.
	Draw(vertexCount, instanceCount uint32)

	// End finishes the render pass.
	// After this call, the encoder cannot be used again.
	End() error
}

// FullScreenVertices is the vertex count of the two-triangle full-screen quad
// emitted by every vs_main in this module.
const FullScreenVertices = 6

// FullScreenVertexWGSL is the vs_main shared by every full-screen pass.
// It emits two triangles covering clip space; the fragment position is the
// pixel center.
const FullScreenVertexWGSL = `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vertex_index: u32) -> VertexOutput {
    var corners = array<vec2<f32>, 6>(
        vec2<f32>(-1.0, -1.0),
        vec2<f32>(1.0, -1.0),
        vec2<f32>(-1.0, 1.0),
        vec2<f32>(-1.0, 1.0),
        vec2<f32>(1.0, -1.0),
        vec2<f32>(1.0, 1.0),
    );
    var out: VertexOutput;
    out.position = vec4<f32>(corners[vertex_index], 0.0, 1.0);
    return out;
}
`
