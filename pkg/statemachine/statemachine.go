package statemachine

import (
	"fmt"
	"slices"
)

// Transition defines a state change triggered by an event.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// Table is an immutable, concurrency-safe transition table.
// Lookups use a nested map: [fromState][event]toState.
type Table[S ~string, E ~string] struct {
	transitions map[S]map[E]S
	states      map[S]struct{}
}

// NewTable builds a table from the given transitions.
// Every field must be non-empty and each (From, Event) pair may appear only once.
func NewTable[S ~string, E ~string](transitions ...Transition[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{
		transitions: make(map[S]map[E]S),
		states:      make(map[S]struct{}),
	}

	for _, tr := range transitions {
		if tr.From == "" || tr.To == "" || tr.Event == "" {
			return nil, ErrInvalidTransition
		}

		events, ok := t.transitions[tr.From]
		if !ok {
			events = make(map[E]S)
			t.transitions[tr.From] = events
		}
		if _, dup := events[tr.Event]; dup {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateTransition, tr.From, tr.Event)
		}

		events[tr.Event] = tr.To
		t.states[tr.From] = struct{}{}
		t.states[tr.To] = struct{}{}
	}

	return t, nil
}

// MustNewTable is like NewTable but panics on invalid input.
// Intended for package-level lifecycle definitions.
func MustNewTable[S ~string, E ~string](transitions ...Transition[S, E]) *Table[S, E] {
	t, err := NewTable(transitions...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return t
}

// Next returns the state reached from `from` when `event` fires.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	if to, ok := t.transitions[from][event]; ok {
		return to, nil
	}
	return from, NewErrNoTransitionAvailable(string(from), string(event))
}

// Can reports whether `event` may fire in state `from`.
func (t *Table[S, E]) Can(from S, event E) bool {
	_, ok := t.transitions[from][event]
	return ok
}

// Events lists the events accepted in state `from`, sorted.
func (t *Table[S, E]) Events(from S) []E {
	events := make([]E, 0, len(t.transitions[from]))
	for e := range t.transitions[from] {
		events = append(events, e)
	}
	slices.Sort(events)
	return events
}

// Terminal reports whether s is a known state with no outgoing transitions.
func (t *Table[S, E]) Terminal(s S) bool {
	if _, known := t.states[s]; !known {
		return false
	}
	return len(t.transitions[s]) == 0
}
