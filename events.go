package glass

import (
	"github.com/gogpu/gpucontext"
)

// Attach feeds a window's input events to the scene:
//   - mouse moves become CursorMove
//   - primary button press and release become MousePress and MouseRelease,
//     preceded by a CursorMove when the button position differs from the
//     last move
//   - window resizes become Resize
//
// If source also implements gpucontext.PointerEventSource, a pointer
// leaving the window becomes CursorLeave.
//
// Callbacks cannot return errors, so failures are logged and the last one
// is kept for Err.
func (s *Scene) Attach(source gpucontext.EventSource) {
	var last Vec2
	var seen bool
	move := func(x, y float64) {
		p := Vec2{X: float32(x), Y: float32(y)}
		if seen && p == last {
			return
		}
		last, seen = p, true
		s.report("move", s.CursorMove(p.X, p.Y))
	}

	source.OnMouseMove(move)
	source.OnMousePress(func(button gpucontext.MouseButton, x, y float64) {
		if button != gpucontext.MouseButtonLeft {
			return
		}
		move(x, y)
		s.report("press", s.MousePress())
	})
	source.OnMouseRelease(func(button gpucontext.MouseButton, x, y float64) {
		if button != gpucontext.MouseButtonLeft {
			return
		}
		move(x, y)
		s.report("release", s.MouseRelease())
	})
	source.OnResize(func(width, height int) {
		if width <= 0 || height <= 0 {
			// Minimized windows report a zero size.
			return
		}
		s.report("resize", s.Resize(width, height))
	})

	if ps, ok := source.(gpucontext.PointerEventSource); ok {
		ps.OnPointer(func(ev gpucontext.PointerEvent) {
			if ev.Type != gpucontext.PointerLeave {
				return
			}
			seen = false
			s.report("leave", s.CursorLeave())
		})
	}
}

func (s *Scene) report(event string, err error) {
	if err == nil {
		return
	}
	Logger().Error("glass: event failed", "event", event, "err", err)
	s.mu.Lock()
	s.eventErr = err
	s.mu.Unlock()
}
