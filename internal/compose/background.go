package compose

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/glass/gpucore"
)

// Background provides the texture behind the glass. The texture is
// RGBA8Unorm at viewport size and is replaced on every Resize.
type Background interface {
	Texture() gpucore.TextureID
	Resize(width, height int) error
	Destroy()
}

// backgroundTexture owns the current background texture.
type backgroundTexture struct {
	adapter gpucore.GPUAdapter
	label   string
	texture gpucore.TextureID
}

// upload replaces the texture with pix, tightly packed RGBA rows.
func (b *backgroundTexture) upload(width, height int, pix []byte) error {
	b.Destroy()
	id, err := b.adapter.CreateTexture(&gpucore.TextureDesc{
		Label:  b.label,
		Width:  width,
		Height: height,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageTextureBinding | gpucore.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("compose: create %s texture: %w", b.label, err)
	}
	if err := b.adapter.WriteTexture(id, pix); err != nil {
		b.adapter.DestroyTexture(id)
		return fmt.Errorf("compose: upload %s: %w", b.label, err)
	}
	b.texture = id
	return nil
}

// Texture returns the current texture, or InvalidID before the first Resize.
func (b *backgroundTexture) Texture() gpucore.TextureID { return b.texture }

// Destroy releases the texture.
func (b *backgroundTexture) Destroy() {
	if b.texture != gpucore.InvalidID {
		b.adapter.DestroyTexture(b.texture)
		b.texture = gpucore.InvalidID
	}
}

// ImageBackground stretches an image over the viewport.
type ImageBackground struct {
	backgroundTexture
	src    image.Image
	scaler draw.Scaler
}

// NewImageBackground returns a background showing img. The image is
// resampled with Catmull-Rom on every resize.
func NewImageBackground(adapter gpucore.GPUAdapter, img image.Image) *ImageBackground {
	return &ImageBackground{
		backgroundTexture: backgroundTexture{adapter: adapter, label: "background image"},
		src:               img,
		scaler:            draw.CatmullRom,
	}
}

// Resize implements Background.
func (b *ImageBackground) Resize(width, height int) error {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if b.src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), b.src, b.src.Bounds().Min, draw.Src)
	} else {
		b.scaler.Scale(dst, dst.Bounds(), b.src, b.src.Bounds(), draw.Src, nil)
	}
	return b.upload(width, height, dst.Pix)
}

// SolidBackground fills the viewport with one color.
type SolidBackground struct {
	backgroundTexture
	color color.Color
}

// NewSolidBackground returns a background filled with c.
func NewSolidBackground(adapter gpucore.GPUAdapter, c color.Color) *SolidBackground {
	return &SolidBackground{
		backgroundTexture: backgroundTexture{adapter: adapter, label: "background"},
		color:             c,
	}
}

// Resize implements Background.
func (b *SolidBackground) Resize(width, height int) error {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(b.color), image.Point{}, draw.Src)
	return b.upload(width, height, dst.Pix)
}
