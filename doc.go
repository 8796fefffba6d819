// Package glass renders glass-like shapes over a background and lets the
// user drag them around.
//
// # Overview
//
// A [Scene] holds a columnar store of 2D shapes (circles, boxes, rounded
// boxes), a pointer state machine and a chain of derived textures:
//
//   - the silhouette: per-pixel signed distance to the nearest shape plus
//     that shape's tint, written in one pass with two targets;
//   - the light map: a normal map read from the silhouette, bevelled
//     toward each shape's rim.
//
// The composition pass reads both and draws the background refracted,
// tinted and lit through the glass.
//
// # Quick Start
//
//	adapter, _ := glass.NewAdapter()
//	scene := glass.NewScene(adapter)
//	scene.InsertCircle(glass.Circle{Radius: 64}, glass.Vec2{X: 128, Y: 128}, glass.RGBAFromU32(0xff000080))
//	if err := scene.Init(800, 600); err != nil {
//		log.Fatal(err)
//	}
//	defer scene.Close()
//
//	scene.CursorMove(128, 128)
//	scene.MousePress()
//	scene.CursorMove(140, 120) // the circle follows
//	scene.MouseRelease()
//
//	img, _ := scene.Snapshot()
//
// # Interaction
//
// Pointer events drive an Idle / Hovered / Pressed / Dragging machine.
// While dragging, every cursor move repositions the shape (rounded to whole
// pixels) and regenerates both derived textures before the next frame.
// Overlapping shapes resolve to the lowest index.
//
// # Backends
//
// Scenes run on any gpucore.GPUAdapter. [NewAdapter] picks the wgpu hal
// backend when a device is available and falls back to the CPU adapter,
// which evaluates every pass per pixel and is used for headless rendering
// and tests. [AdapterFromProvider] shares a host window's device.
//
// # Logging
//
// The package is silent by default. See [SetLogger].
package glass
