package outreach

import (
	"fmt"

	"go.uber.org/zap"
)

// State is the stage of a single send attempt.
type State string

const (
	StateDraft      State = "draft"
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateSending    State = "sending"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateError      State = "error"
)

var transitions = map[State][]State{
	StateDraft:      {StateValidating},
	StateValidating: {StateGenerating, StateSending},
	StateGenerating: {StateSending},
	StateSending:    {StatePersisting},
	StatePersisting: {StateDone},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

type attempt struct {
	state  State
	logger *zap.Logger
}

func newAttempt(logger *zap.Logger) *attempt {
	return &attempt{state: StateDraft, logger: logger}
}

func (a *attempt) to(next State) {
	if next == StateError && !a.state.Terminal() {
		a.logger.Debug("attempt state", zap.String("from", string(a.state)), zap.String("to", string(next)))
		a.state = next
		return
	}

	for _, allowed := range transitions[a.state] {
		if allowed == next {
			a.logger.Debug("attempt state", zap.String("from", string(a.state)), zap.String("to", string(next)))
			a.state = next
			return
		}
	}

	panic(fmt.Sprintf("outreach: invalid transition %s -> %s", a.state, next))
}

// fail moves the attempt to the error state and passes err through.
func (a *attempt) fail(err error) error {
	a.to(StateError)
	return err
}
