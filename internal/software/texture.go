package software

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/glass/gpucore"
)

// texture is a CPU texture stored as tightly packed rows in its format.
type texture struct {
	label  string
	width  int
	height int
	format gpucore.TextureFormat
	usage  gpucore.TextureUsage
	data   []byte
}

func newTexture(desc *gpucore.TextureDesc) *texture {
	bpp := desc.Format.BytesPerPixel()
	return &texture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		usage:  desc.Usage,
		data:   make([]byte, desc.Width*desc.Height*bpp),
	}
}

// load decodes the texel at (x, y), clamped to the texture edge.
func (t *texture) load(x, y int) gpucore.Color {
	if t.width == 0 || t.height == 0 {
		return gpucore.Color{}
	}
	x = min(max(x, 0), t.width-1)
	y = min(max(y, 0), t.height-1)
	return decodeTexel(t.format, t.data[(y*t.width+x)*4:])
}

// store encodes c into the texel at (x, y). Coordinates must be in range.
func (t *texture) store(x, y int, c gpucore.Color) {
	encodeTexel(t.format, t.data[(y*t.width+x)*4:], c)
}

// clear fills the texture with c.
func (t *texture) clear(c gpucore.Color) {
	if len(t.data) == 0 {
		return
	}
	encodeTexel(t.format, t.data[:4], c)
	for off := 4; off < len(t.data); off *= 2 {
		copy(t.data[off:], t.data[:off])
	}
}

// decodeTexel converts one 4-byte texel to a float color.
// R32Float decodes to (v, 0, 0, 1) as WGSL textureLoad does.
func decodeTexel(f gpucore.TextureFormat, b []byte) gpucore.Color {
	switch f {
	case gpucore.TextureFormatR32Float:
		v := math.Float32frombits(binary.LittleEndian.Uint32(b))
		return gpucore.Color{R: v, A: 1}
	case gpucore.TextureFormatBGRA8Unorm, gpucore.TextureFormatBGRA8UnormSRGB:
		return gpucore.Color{R: unorm(b[2]), G: unorm(b[1]), B: unorm(b[0]), A: unorm(b[3])}
	default:
		return gpucore.Color{R: unorm(b[0]), G: unorm(b[1]), B: unorm(b[2]), A: unorm(b[3])}
	}
}

// encodeTexel converts a float color to one 4-byte texel.
func encodeTexel(f gpucore.TextureFormat, b []byte, c gpucore.Color) {
	switch f {
	case gpucore.TextureFormatR32Float:
		binary.LittleEndian.PutUint32(b, math.Float32bits(c.R))
	case gpucore.TextureFormatBGRA8Unorm, gpucore.TextureFormatBGRA8UnormSRGB:
		b[0], b[1], b[2], b[3] = quantize(c.B), quantize(c.G), quantize(c.R), quantize(c.A)
	default:
		b[0], b[1], b[2], b[3] = quantize(c.R), quantize(c.G), quantize(c.B), quantize(c.A)
	}
}

func unorm(v byte) float32 { return float32(v) / 255 }

// quantize maps [0, 1] to [0, 255] with round-to-nearest. NaN maps to 0.
func quantize(v float32) byte {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// blendPremultiplied composites src over dst, both premultiplied.
func blendPremultiplied(src, dst gpucore.Color) gpucore.Color {
	k := 1 - src.A
	return gpucore.Color{
		R: src.R + dst.R*k,
		G: src.G + dst.G*k,
		B: src.B + dst.B*k,
		A: src.A + dst.A*k,
	}
}
