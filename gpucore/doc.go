// Package gpucore provides the GPU abstraction shared by the glass scene.
//
// This package defines the [GPUAdapter] interface, an opaque-ID resource and
// queue-submission service. The scene's shape store, derived-texture stages
// and composition layer are written once against it, and thin adapters
// translate to concrete backends:
//
//	               +------------------+
//	               |   glass.Scene    |
//	               | store / derive / |
//	               |     compose      |
//	               +--------+---------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|   hal adapter   |          | software adapter|
//	|  (hal.Device)   |          |  (CPU shaders)  |
//	+--------+--------+          +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	+-----------------+
//
// # Shaders
//
// A [ShaderModuleDesc] carries two variants of the same program: WGSL source
// for GPU adapters and a [FragmentFunc] for CPU adapters. Both must produce
// identical per-pixel results, which lets tests assert exact texel values
// without a GPU.
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [TextureID], etc.).
// Adapters are responsible for tracking the mapping between IDs and actual
// GPU resources. IDs are never reused, so a stale bind group ID held across
// a resize fails loudly instead of aliasing a new group.
package gpucore
