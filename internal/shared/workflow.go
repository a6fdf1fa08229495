package shared

import "fmt"

// Transitions maps a status to the statuses reachable from it in one step.
type Transitions[S ~string] map[S][]S

// Allows reports whether from -> to is an edge of the graph.
func (t Transitions[S]) Allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns ErrInvalidTransition for edges outside the graph.
func (t Transitions[S]) Check(from, to S) error {
	if t.Allows(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Terminal reports whether no transition leaves s.
func (t Transitions[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}
