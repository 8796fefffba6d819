// Package pointer implements the pointer interaction state machine that
// turns cursor events into hover, press and drag states over the shape
// store.
package pointer

import (
	"errors"
	"fmt"

	"github.com/gogpu/glass/internal/shape"
)

// ErrUndefinedTransition is returned for events that have no transition
// from the current state: a press while pressed or dragging, and a release
// while hovered.
var ErrUndefinedTransition = errors.New("pointer: undefined transition")

// Kind names an interaction state.
type Kind uint8

// Interaction states.
const (
	KindIdle Kind = iota
	KindHovered
	KindPressed
	KindDragging
)

// String returns the state name.
func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindHovered:
		return "hovered"
	case KindPressed:
		return "pressed"
	case KindDragging:
		return "dragging"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// State is the interaction state. The zero value is Idle.
type State struct {
	Kind Kind

	// Index is the shape under interaction. Unused when Idle.
	Index shape.Index

	// Offset is the cursor position relative to the shape's bounding box
	// min: the current hover offset when Hovered, the offset at press time
	// when Pressed or Dragging.
	Offset shape.Vec2
}

// Idle returns the idle state.
func Idle() State { return State{} }

// Hovered returns a hovered state.
func Hovered(i shape.Index, local shape.Vec2) State {
	return State{Kind: KindHovered, Index: i, Offset: local}
}

// Pressed returns a pressed state.
func Pressed(i shape.Index, local shape.Vec2) State {
	return State{Kind: KindPressed, Index: i, Offset: local}
}

// Dragging returns a dragging state.
func Dragging(i shape.Index, press shape.Vec2) State {
	return State{Kind: KindDragging, Index: i, Offset: press}
}

// String formats the state for logs.
func (s State) String() string {
	if s.Kind == KindIdle {
		return "idle"
	}
	return fmt.Sprintf("%s(%d, %g,%g)", s.Kind, s.Index, s.Offset.X, s.Offset.Y)
}

// EventKind names a pointer event.
type EventKind uint8

// Pointer events.
const (
	EventMove EventKind = iota
	EventPress
	EventRelease
	EventLeave
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	case EventLeave:
		return "leave"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is a pointer event. Position is set for moves only.
type Event struct {
	Kind     EventKind
	Position shape.Vec2
}

// Move returns a cursor move event.
func Move(p shape.Vec2) Event { return Event{Kind: EventMove, Position: p} }

// Press returns a primary button press event.
func Press() Event { return Event{Kind: EventPress} }

// Release returns a primary button release event.
func Release() Event { return Event{Kind: EventRelease} }

// Leave returns a cursor leave event.
func Leave() Event { return Event{Kind: EventLeave} }

// World is the read-only hit-testing view of the scene.
// *shape.Store implements it.
type World interface {
	HitTest(i shape.Index, p shape.Vec2) (shape.Vec2, bool)
	FindHovered(p shape.Vec2) (shape.Hit, bool)
}

// Effect is a side effect requested by a transition.
type Effect struct {
	// Drag is set when the shape must follow the cursor.
	Drag bool

	Index  shape.Index
	Press  shape.Vec2
	Cursor shape.Vec2
}

// Transition computes the state following s on event e. It does not
// mutate anything: a drag is returned as an Effect for the caller to apply.
//
// Undefined transitions return s unchanged and ErrUndefinedTransition.
func Transition(s State, e Event, w World) (State, Effect, error) {
	switch e.Kind {
	case EventMove:
		return move(s, e.Position, w), dragEffect(s, e.Position), nil

	case EventPress:
		switch s.Kind {
		case KindIdle:
			return s, Effect{}, nil
		case KindHovered:
			return Pressed(s.Index, s.Offset), Effect{}, nil
		}

	case EventRelease:
		switch s.Kind {
		case KindIdle:
			return s, Effect{}, nil
		case KindPressed, KindDragging:
			return Hovered(s.Index, s.Offset), Effect{}, nil
		}

	case EventLeave:
		if s.Kind == KindHovered {
			return Idle(), Effect{}, nil
		}
		return s, Effect{}, nil
	}
	return s, Effect{}, fmt.Errorf("%w: %s while %s", ErrUndefinedTransition, e.Kind, s.Kind)
}

func move(s State, p shape.Vec2, w World) State {
	switch s.Kind {
	case KindHovered:
		if local, ok := w.HitTest(s.Index, p); ok {
			return Hovered(s.Index, local)
		}
	case KindPressed:
		// The shape starts following on the next move.
		return Dragging(s.Index, s.Offset)
	case KindDragging:
		return s
	}
	if hit, ok := w.FindHovered(p); ok {
		return Hovered(hit.Index, hit.Local)
	}
	return Idle()
}

func dragEffect(s State, p shape.Vec2) Effect {
	if s.Kind != KindDragging {
		return Effect{}
	}
	return Effect{Drag: true, Index: s.Index, Press: s.Offset, Cursor: p}
}
