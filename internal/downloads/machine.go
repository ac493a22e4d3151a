package downloads

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrActionNotAllowed means the job's state does not permit the action.
	ErrActionNotAllowed = errors.New("action not allowed in current state")
	// ErrUnknownAction means the action name is not recognised.
	ErrUnknownAction = errors.New("unknown action")
)

// Action is a command a user can issue against a job.
type Action string

const (
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionCancel  Action = "cancel"
	ActionRetry   Action = "retry"
	ActionReorder Action = "reorder"
)

var allActions = []Action{ActionPause, ActionResume, ActionCancel, ActionRetry, ActionReorder}

// ParseAction maps a name to an Action.
func ParseAction(name string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range allActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownAction)
}

// ActionSet is a set of actions.
type ActionSet uint8

func bit(a Action) ActionSet {
	for i, known := range allActions {
		if a == known {
			return 1 << i
		}
	}
	return 0
}

// NewActionSet builds a set.
func NewActionSet(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= bit(a)
	}
	return s
}

// Has reports membership.
func (s ActionSet) Has(a Action) bool {
	b := bit(a)
	return b != 0 && s&b != 0
}

// List returns the members in a stable order.
func (s ActionSet) List() []Action {
	var out []Action
	for _, a := range allActions {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s ActionSet) String() string {
	names := make([]string, 0, len(allActions))
	for _, a := range s.List() {
		names = append(names, string(a))
	}
	return "{" + strings.Join(names, ",") + "}"
}

var allowed = map[State]ActionSet{
	StateQueued:   NewActionSet(ActionPause, ActionCancel, ActionReorder),
	StatePaused:   NewActionSet(ActionResume, ActionCancel, ActionReorder),
	StateRunning:  0,
	StateSuccess:  NewActionSet(ActionRetry),
	StateError:    NewActionSet(ActionRetry),
	StateCanceled: NewActionSet(ActionRetry),
}

// AllowedActions is a pure function of the job's state.
func AllowedActions(job Job) ActionSet {
	return allowed[job.State]
}

var transitions = map[State][]State{
	StateQueued:   {StateRunning, StatePaused, StateCanceled},
	StatePaused:   {StateQueued, StateCanceled},
	StateRunning:  {StateSuccess, StateError, StateCanceled},
	StateSuccess:  {StateQueued},
	StateError:    {StateQueued},
	StateCanceled: {StateQueued},
}

// CanTransition reports whether the lifecycle has an edge from -> to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Expect returns the state a job lands in once the server acknowledges
// action. Reorder keeps the state.
func Expect(state State, action Action) State {
	switch action {
	case ActionPause:
		return StatePaused
	case ActionResume, ActionRetry:
		return StateQueued
	case ActionCancel:
		return StateCanceled
	default:
		return state
	}
}

// Check returns ErrActionNotAllowed when job may not take action.
func Check(job Job, action Action) error {
	if bit(action) == 0 {
		return fmt.Errorf("%q: %w", action, ErrUnknownAction)
	}
	if !AllowedActions(job).Has(action) {
		return fmt.Errorf("%s job %s (%s): %w", action, job.ID, job.State, ErrActionNotAllowed)
	}
	return nil
}
