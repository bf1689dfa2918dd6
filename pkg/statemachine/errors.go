package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition   = errors.New("invalid transition: from, to, or event cannot be empty")
	ErrDuplicateTransition = errors.New("duplicate transition for state and event")
)

// ErrNoTransitionAvailable indicates no transition exists for the given state/event combination.
type ErrNoTransitionAvailable struct {
	StateName string
	EventName string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.StateName, e.EventName)
}

func NewErrNoTransitionAvailable(stateName, eventName string) *ErrNoTransitionAvailable {
	return &ErrNoTransitionAvailable{
		StateName: stateName,
		EventName: eventName,
	}
}

// IsNoTransitionAvailableError reports whether err (or any error it wraps) is an ErrNoTransitionAvailable.
func IsNoTransitionAvailableError(err error) bool {
	var target *ErrNoTransitionAvailable
	return errors.As(err, &target)
}
