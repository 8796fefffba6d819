package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/glass"
	"github.com/gogpu/glass/gpucore"
)

// sceneFlags are shared by the commands that build a scene.
type sceneFlags struct {
	width, height int
	backend       string
	background    string
	shapes        []string
}

func (f *sceneFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.width, "width", 512, "viewport width")
	cmd.Flags().IntVar(&f.height, "height", 384, "viewport height")
	cmd.Flags().StringVar(&f.backend, "backend", glass.BackendSoftware, "backend name (see 'glassdemo backends')")
	cmd.Flags().StringVar(&f.background, "background", "", "background image (png, jpeg, bmp, tiff, webp)")
	cmd.Flags().StringArrayVar(&f.shapes, "shape", nil,
		"shape as kind:cx,cy,size...[:rrggbbaa], e.g. circle:100,100,60 or rbox:200,150,80,40,12:3080ffc0")
}

// defaultShapes is the layout used when no --shape is given.
var defaultShapes = []string{
	"circle:150,170,90:ff5a5aa0",
	"box:330,140,70,50:5affa0a0",
	"rbox:320,280,110,50,24:5a8cffa0",
}

// build creates the adapter and an initialized scene.
func (f *sceneFlags) build() (gpucore.GPUAdapter, *glass.Scene, error) {
	var opts []glass.SceneOption
	if f.background != "" {
		img, err := decodeImage(f.background)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, glass.WithBackgroundImage(img))
	}
	shapes := f.shapes
	if len(shapes) == 0 {
		shapes = defaultShapes
	}

	adapter, err := glass.NewAdapterNamed(f.backend)
	if err != nil {
		return nil, nil, err
	}
	scene := glass.NewScene(adapter, opts...)
	for _, s := range shapes {
		if err := insertShape(scene, s); err != nil {
			adapter.Destroy()
			return nil, nil, err
		}
	}
	if err := scene.Init(f.width, f.height); err != nil {
		adapter.Destroy()
		return nil, nil, err
	}
	return adapter, scene, nil
}

func decodeImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// insertShape parses kind:numbers[:color] and inserts the shape.
func insertShape(scene *glass.Scene, def string) error {
	parts := strings.Split(def, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("shape %q: want kind:numbers[:color]", def)
	}
	nums, err := parseFloats(parts[1])
	if err != nil {
		return fmt.Errorf("shape %q: %w", def, err)
	}
	tint := glass.RGBAFromU32(0xffffff80)
	if len(parts) == 3 {
		v, err := strconv.ParseUint(parts[2], 16, 32)
		if err != nil {
			return fmt.Errorf("shape %q: color: %w", def, err)
		}
		tint = glass.RGBAFromU32(uint32(v))
	}

	want := map[string]int{"circle": 3, "box": 4, "rbox": 5}
	n, ok := want[parts[0]]
	if !ok {
		return fmt.Errorf("shape %q: unknown kind %q", def, parts[0])
	}
	if len(nums) != n {
		return fmt.Errorf("shape %q: %s takes %d numbers, got %d", def, parts[0], n, len(nums))
	}
	center := glass.Vec2{X: nums[0], Y: nums[1]}
	switch parts[0] {
	case "circle":
		scene.InsertCircle(glass.Circle{Radius: nums[2]}, center, tint)
	case "box":
		scene.InsertBox(glass.Box{HalfSize: glass.Vec2{X: nums[2], Y: nums[3]}}, center, tint)
	case "rbox":
		scene.InsertRoundedBox(glass.RoundedBox{
			HalfSize:     glass.Vec2{X: nums[2], Y: nums[3]},
			CornerRadius: nums[4],
		}, center, tint)
	}
	return nil
}

func parseFloats(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	out := make([]float32, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parsePoint parses "x,y".
func parsePoint(s string) (glass.Vec2, error) {
	v, err := parseFloats(s)
	if err != nil {
		return glass.Vec2{}, err
	}
	if len(v) != 2 {
		return glass.Vec2{}, fmt.Errorf("point %q: want x,y", s)
	}
	return glass.Vec2{X: v[0], Y: v[1]}, nil
}

func writePNG(path string, scene *glass.Scene) error {
	img, err := scene.Snapshot()
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
