// Package gpu implements gpucore.GPUAdapter on top of gogpu/wgpu hal.
//
// A [HALAdapter] wraps a hal.Device and hal.Queue pair. The pair is either
// opened by the adapter itself ([Open]) or borrowed from a host window
// through a provider that exposes HalDevice() and HalQueue() ([FromProvider]).
// Borrowed devices are never destroyed by the adapter.
//
// Resources are tracked in ID-keyed maps. Command buffers are kept alive
// until the queue reports their submission index as completed.
//
// Readback (ReadBuffer, ReadTexture) stalls: it submits a copy into a
// mappable staging buffer and waits for the device to go idle.
package gpu
