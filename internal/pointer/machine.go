package pointer

import (
	"errors"
	"fmt"

	"github.com/gogpu/glass/internal/shape"
)

// Effector applies drag effects. The scene implements it by moving the
// shape and regenerating the derived textures.
type Effector interface {
	Drag(i shape.Index, press, cursor shape.Vec2) error
}

// Outcome reports what one Apply call did.
type Outcome struct {
	From   State
	To     State
	Effect Effect

	// Undefined is set when the event had no transition and was ignored.
	Undefined bool
}

// Machine owns the interaction state.
type Machine struct {
	state    State
	world    World
	effector Effector
	strict   bool
}

// NewMachine returns an idle machine. With strict set, undefined
// transitions are returned as errors instead of being logged and ignored.
func NewMachine(world World, effector Effector, strict bool) *Machine {
	return &Machine{world: world, effector: effector, strict: strict}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Apply feeds one event to the machine and runs the resulting effect.
//
// If the effect fails the new state is kept and the error is returned.
func (m *Machine) Apply(e Event) (Outcome, error) {
	from := m.state
	m.state = Idle()

	to, effect, err := Transition(from, e, m.world)
	if err != nil {
		m.state = from
		out := Outcome{From: from, To: from, Undefined: errors.Is(err, ErrUndefinedTransition)}
		if m.strict || !out.Undefined {
			return out, err
		}
		slogger().Warn("pointer: event ignored", "event", e.Kind.String(), "state", from.String())
		return out, nil
	}
	m.state = to

	out := Outcome{From: from, To: to, Effect: effect}
	if from.Kind != to.Kind {
		slogger().Debug("pointer: transition", "event", e.Kind.String(), "from", from.String(), "to", to.String())
	}
	if effect.Drag && m.effector != nil {
		if err := m.effector.Drag(effect.Index, effect.Press, effect.Cursor); err != nil {
			return out, fmt.Errorf("pointer: drag shape %d: %w", effect.Index, err)
		}
	}
	return out, nil
}
