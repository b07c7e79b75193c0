package execution

import "errors"

// State is the lifecycle position of one execution.
type State string

const (
	// StateAwaitingAction waits for the next chosen option.
	StateAwaitingAction State = "awaiting_action"
	// StateResolving rolls and applies the chosen option.
	StateResolving State = "resolving"
	// StateAssessing recomputes progress scores after an action.
	StateAssessing State = "assessing"
	// StateWon is terminal: the final score met the win threshold.
	StateWon State = "won"
	// StateLost is terminal: rounds ran out below the threshold.
	StateLost State = "lost"
	// StateErrored is terminal: an unrecoverable failure mid-turn.
	StateErrored State = "errored"
)

// Terminal reports whether no further actions are accepted.
func (s State) Terminal() bool {
	switch s {
	case StateWon, StateLost, StateErrored:
		return true
	default:
		return false
	}
}

var (
	// ErrTerminal indicates an action against a finished execution.
	ErrTerminal = errors.New("execution is in a terminal state")
	// ErrBusy indicates a turn already in resolution.
	ErrBusy = errors.New("another action is being resolved")
	// ErrNoAttempt indicates a reroll with no prior attempt this turn.
	ErrNoAttempt = errors.New("no attempt to reroll")
)

// permanentError marks failures that must terminate the execution
// instead of being absorbed by a fallback.
type permanentError struct {
	err error
}

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err carries the permanent marker.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
