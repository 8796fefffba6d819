package glass

import (
	"image"
	"image/color"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glass/internal/compose"
)

// SceneOption configures a Scene during creation.
//
// Example:
//
//	scene := glass.NewScene(adapter,
//		glass.WithStrictTransitions(true),
//		glass.WithBackgroundImage(img),
//	)
type SceneOption func(*sceneOptions)

// ComposeParams tunes the glass shading.
type ComposeParams struct {
	// Refraction is the background displacement in pixels at a vertical rim.
	Refraction float32

	// TintStrength scales each shape's tint alpha.
	TintStrength float32

	// Specular and Shininess shape the highlight.
	Specular  float32
	Shininess float32

	// Glow brightens the glass under the cursor, decaying over GlowFalloff
	// pixels.
	Glow        float32
	GlowFalloff float32
}

// DefaultComposeParams returns the default shading.
func DefaultComposeParams() ComposeParams {
	p := compose.DefaultParams()
	return ComposeParams{
		Refraction:   p.Refraction,
		TintStrength: p.TintStrength,
		Specular:     p.Specular,
		Shininess:    p.Shininess,
		Glow:         p.Glow,
		GlowFalloff:  p.GlowFalloff,
	}
}

func (p ComposeParams) params() compose.Params {
	return compose.Params{
		Refraction:   p.Refraction,
		TintStrength: p.TintStrength,
		Specular:     p.Specular,
		Shininess:    p.Shininess,
		Glow:         p.Glow,
		GlowFalloff:  p.GlowFalloff,
	}
}

// sceneOptions holds optional configuration for Scene creation.
type sceneOptions struct {
	strict          bool
	background      Background
	backgroundImage image.Image
	backgroundColor color.Color
	clear           gputypes.Color
	params          ComposeParams
	format          gputypes.TextureFormat
}

// DefaultBackgroundColor fills the viewport when no background is set.
var DefaultBackgroundColor = color.RGBA{R: 0x1e, G: 0x22, B: 0x2b, A: 0xff}

// defaultSceneOptions returns the default scene options.
func defaultSceneOptions() sceneOptions {
	return sceneOptions{
		backgroundColor: DefaultBackgroundColor,
		clear:           gputypes.Color{A: 1},
		params:          DefaultComposeParams(),
		format:          gputypes.TextureFormatBGRA8Unorm,
	}
}

// WithStrictTransitions makes pointer events with no defined transition
// (such as a release while hovered) return an error wrapping
// ErrUndefinedTransition. By default they are logged and ignored.
func WithStrictTransitions(strict bool) SceneOption {
	return func(o *sceneOptions) {
		o.strict = strict
	}
}

// WithBackground sets the background drawn behind the glass.
// The scene takes ownership and destroys it on Close.
func WithBackground(b Background) SceneOption {
	return func(o *sceneOptions) {
		o.background = b
	}
}

// WithBackgroundImage stretches img over the viewport as the background.
func WithBackgroundImage(img image.Image) SceneOption {
	return func(o *sceneOptions) {
		o.backgroundImage = img
	}
}

// WithBackgroundColor fills the background with c.
func WithBackgroundColor(c color.Color) SceneOption {
	return func(o *sceneOptions) {
		o.backgroundColor = c
	}
}

// WithClearColor sets the color the frame is cleared to before
// composition. Composition covers the whole frame, so it only shows on
// backends that skip the draw.
func WithClearColor(c gputypes.Color) SceneOption {
	return func(o *sceneOptions) {
		o.clear = c
	}
}

// WithComposeParams sets the glass shading parameters.
func WithComposeParams(p ComposeParams) SceneOption {
	return func(o *sceneOptions) {
		o.params = p
	}
}

// WithSurfaceFormat sets the format of the targets passed to Render.
// The default is BGRA8Unorm. Snapshot always returns RGBA.
func WithSurfaceFormat(f gputypes.TextureFormat) SceneOption {
	return func(o *sceneOptions) {
		o.format = f
	}
}
