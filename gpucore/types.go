package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture and its default view.
type TextureID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// RenderPipelineID is an opaque handle to a render pipeline.
type RenderPipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// MaxColorTargets is the maximum number of color attachments per render pass.
const MaxColorTargets = 4

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 7
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA, normalized unsigned integer in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatBGRA8UnormSRGB is 8-bit BGRA, normalized unsigned integer in sRGB color space.
	TextureFormatBGRA8UnormSRGB

	// TextureFormatR32Float is 32-bit red channel only, floating point.
	TextureFormatR32Float
)

// BytesPerPixel returns the texel size of the format, or 0 if unknown.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSRGB,
		TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSRGB,
		TextureFormatR32Float:
		return 4
	default:
		return 0
	}
}

// Filterable reports whether the format can be sampled with a linear filter.
// 32-bit float formats require the float32-filterable feature, which the
// derived-texture pipeline does not request.
func (f TextureFormat) Filterable() bool {
	return f != TextureFormatR32Float
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageTextureBinding indicates the texture can be bound as a sampled texture.
	TextureUsageTextureBinding TextureUsage = 1 << 2

	// TextureUsageRenderAttachment indicates the texture can be used as a render target.
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// ShaderStage is a bitmask of shader stages a binding is visible to.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 1 << 0
	ShaderStageFragment ShaderStage = 1 << 1

	// ShaderStageVertexFragment is the common visibility for scene data.
	ShaderStageVertexFragment = ShaderStageVertex | ShaderStageFragment
)

// BindingType specifies the type of a shader binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer

	// BindingTypeSampledTexture is a filterable float texture binding.
	BindingTypeSampledTexture

	// BindingTypeUnfilterableTexture is a float texture that may only be
	// read with textureLoad or a non-filtering sampler.
	BindingTypeUnfilterableTexture

	// BindingTypeFilteringSampler is a linear texture sampler binding.
	BindingTypeFilteringSampler

	// BindingTypeNonFilteringSampler is a nearest texture sampler binding.
	BindingTypeNonFilteringSampler
)

// IsBuffer reports whether the binding type refers to a buffer.
func (t BindingType) IsBuffer() bool {
	return t == BindingTypeUniformBuffer || t == BindingTypeReadOnlyStorageBuffer
}

// IsTexture reports whether the binding type refers to a texture view.
func (t BindingType) IsTexture() bool {
	return t == BindingTypeSampledTexture || t == BindingTypeUnfilterableTexture
}

// IsSampler reports whether the binding type refers to a sampler.
func (t BindingType) IsSampler() bool {
	return t == BindingTypeFilteringSampler || t == BindingTypeNonFilteringSampler
}

// FilterMode selects texel filtering for a sampler.
type FilterMode uint32

// Filter modes.
const (
	FilterNearest FilterMode = iota + 1
	FilterLinear
)

// LoadOp specifies what happens to a color attachment at pass start.
type LoadOp uint32

// Load operations.
const (
	// LoadOpClear clears the attachment to the pass clear color.
	LoadOpClear LoadOp = iota + 1

	// LoadOpLoad keeps the previous attachment contents.
	LoadOpLoad
)

// BlendMode selects how fragment output combines with the target.
type BlendMode uint32

// Blend modes.
const (
	// BlendReplace writes the fragment output unchanged.
	BlendReplace BlendMode = iota

	// BlendPremultiplied composites premultiplied output over the target.
	BlendPremultiplied
)

// Color is a linear RGBA color or a generic four-component shader value.
type Color struct {
	R, G, B, A float32
}

// Transparent is the zero color.
var Transparent = Color{}

// BufferDesc describes a GPU buffer.
type BufferDesc struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage is a bitmask of BufferUsage flags.
	Usage BufferUsage
}

// TextureDesc describes a 2D texture with a single mip level.
type TextureDesc struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the texture dimensions in pixels.
	Width, Height int

	// Format is the texel format.
	Format TextureFormat

	// Usage is a bitmask of TextureUsage flags.
	Usage TextureUsage
}

// SamplerDesc describes a clamp-to-edge texture sampler.
type SamplerDesc struct {
	// Label is an optional debug label.
	Label string

	// Filter is used for magnification, minification and mipmaps.
	Filter FilterMode
}

// FragmentFunc is the CPU variant of a fragment shader. It is invoked once
// per target pixel by adapters that execute passes on the CPU.
type FragmentFunc func(f *Fragment)

// Fragment carries the inputs and outputs of one CPU fragment invocation.
type Fragment struct {
	// X and Y are the pixel center in framebuffer coordinates.
	X, Y float32

	// Bindings gives access to the bind groups set on the pass.
	Bindings Bindings

	// Out holds one value per color target. Adapters reset it before each
	// invocation.
	Out [MaxColorTargets]Color
}

// Bindings exposes bound resources to CPU fragment functions.
type Bindings interface {
	// Buffer returns the contents of the buffer bound at (group, binding).
	Buffer(group, binding uint32) []byte

	// Load fetches a texel of the texture bound at (group, binding).
	// Coordinates are clamped to the texture edge.
	Load(group, binding uint32, x, y int) Color

	// TextureSize returns the dimensions of the texture bound at (group, binding).
	TextureSize(group, binding uint32) (width, height int)
}

// ShaderModuleDesc describes a shader module.
//
// WGSL is consumed by GPU adapters. Fragment is consumed by CPU adapters and
// must compute the same per-pixel result as the WGSL fragment entry point.
type ShaderModuleDesc struct {
	// Label is an optional debug label.
	Label string

	// WGSL is the shader source.
	WGSL string

	// Fragment is the CPU fragment variant.
	Fragment FragmentFunc
}

// ColorTarget describes one color output of a render pipeline.
type ColorTarget struct {
	// Format must match the attachment format used in the pass.
	Format TextureFormat

	// Blend selects how output combines with the attachment.
	Blend BlendMode
}

// RenderPipelineDesc describes a full-screen render pipeline.
type RenderPipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the pipeline layout.
	Layout PipelineLayoutID

	// Module contains both vertex and fragment entry points.
	Module ShaderModuleID

	// VertexEntry is the name of the vertex entry point.
	VertexEntry string

	// FragmentEntry is the name of the fragment entry point.
	FragmentEntry string

	// Targets are the color outputs, in location order.
	Targets []ColorTarget
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries defines the bindings in this layout.
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Type is the type of resource bound at this index.
	Type BindingType

	// Visibility is the set of shader stages that can access the binding.
	Visibility ShaderStage
}

// BindGroupEntry describes a single binding in a bind group.
// Exactly one of Buffer, Texture and Sampler is set.
type BindGroupEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Buffer is the buffer to bind (for buffer bindings).
	Buffer BufferID

	// Offset is the offset into the buffer.
	Offset uint64

	// Size is the size of the buffer range to bind.
	// Use 0 to bind the entire buffer from offset.
	Size uint64

	// Texture is the texture to bind (for texture bindings).
	Texture TextureID

	// Sampler is the sampler to bind (for sampler bindings).
	Sampler SamplerID
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the bind group layout.
	Layout BindGroupLayoutID

	// Entries are the resource bindings.
	Entries []BindGroupEntry
}

// ColorAttachment describes one color target of a render pass.
type ColorAttachment struct {
	// Texture is the render target.
	Texture TextureID

	// Load selects clear or load at pass start.
	Load LoadOp

	// Clear is the clear value used with LoadOpClear.
	Clear Color
}

// RenderPassDesc describes a render pass.
type RenderPassDesc struct {
	// Label is an optional debug label.
	Label string

	// ColorAttachments are the color render targets, at most MaxColorTargets.
	ColorAttachments []ColorAttachment
}
