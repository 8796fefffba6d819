package gpu

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glass/gpucore"
)

// copyPitch is the row alignment of texture to buffer copies.
const copyPitch = 256

// ReadBuffer implements gpucore.GPUAdapter. Buffers created with
// BufferUsageMapRead are mapped directly; others are copied to a staging
// buffer first.
func (a *HALAdapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, err := a.buffer(id)
	if err != nil {
		return nil, err
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("gpu: read [%d, %d) past buffer size %d", offset, offset+size, b.size)
	}
	if err := a.Submit(); err != nil {
		return nil, err
	}
	if b.usage&gpucore.BufferUsageMapRead != 0 {
		if err := a.WaitIdle(); err != nil {
			return nil, err
		}
		return a.mapRead(b.raw, offset, size)
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	err = a.encodeCopy("buffer readback", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{{SrcOffset: offset, Size: size}})
	})
	if err != nil {
		return nil, err
	}
	return a.mapRead(staging, 0, size)
}

// ReadTexture implements gpucore.GPUAdapter.
func (a *HALAdapter) ReadTexture(id gpucore.TextureID) ([]byte, error) {
	t, err := a.texture(id)
	if err != nil {
		return nil, err
	}
	if t.external {
		return nil, fmt.Errorf("gpu: read texture %d: %w", id, ErrExternalTexture)
	}
	if t.desc.Usage&gpucore.TextureUsageCopySrc == 0 {
		return nil, fmt.Errorf("gpu: read texture %q without CopySrc usage: %w", t.desc.Label, gpucore.ErrUnsupported)
	}
	if err := a.Submit(); err != nil {
		return nil, err
	}

	w, h := uint32(t.desc.Width), uint32(t.desc.Height)
	row := w * uint32(t.desc.Format.BytesPerPixel())
	pitch := (row + copyPitch - 1) / copyPitch * copyPitch
	size := uint64(pitch) * uint64(h)

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "texture readback staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	err = a.encodeCopy("texture readback", func(enc hal.CommandEncoder) {
		if t.desc.Usage&gpucore.TextureUsageRenderAttachment != 0 {
			enc.TransitionTextures([]hal.TextureBarrier{{
				Texture: t.raw,
				Usage: hal.TextureUsageTransition{
					OldUsage: gputypes.TextureUsageRenderAttachment,
					NewUsage: gputypes.TextureUsageCopySrc,
				},
			}})
		}
		enc.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: pitch, RowsPerImage: h},
			TextureBase:  hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
			Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		return nil, err
	}

	padded, err := a.mapRead(staging, 0, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, int(row)*int(h))
	for y := range int(h) {
		copy(out[y*int(row):(y+1)*int(row)], padded[y*int(pitch):])
	}
	return out, nil
}

// encodeCopy records a single copy command buffer, submits it and waits
// for the device to go idle.
func (a *HALAdapter) encodeCopy(label string, record func(hal.CommandEncoder)) error {
	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("gpu: create encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		encoder.Destroy()
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	record(encoder)
	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.Destroy()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}

	a.mu.Lock()
	a.pending = append(a.pending, submission{cmd: cmd, encoder: encoder})
	err = a.submitLocked()
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return a.WaitIdle()
}

// mapRead copies size bytes at offset out of a mappable buffer.
func (a *HALAdapter) mapRead(raw hal.Buffer, offset, size uint64) ([]byte, error) {
	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	m, err := a.device.MapBuffer(raw, offset, size)
	if err != nil {
		return nil, fmt.Errorf("gpu: map buffer: %w", err)
	}
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	if err := a.device.UnmapBuffer(raw); err != nil {
		return nil, fmt.Errorf("gpu: unmap buffer: %w", err)
	}
	return out, nil
}
