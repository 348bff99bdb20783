package job

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownState is returned when a state filter matches no canonical state.
	ErrUnknownState = errors.New("no such job state")

	// ErrAmbiguousState is returned when a state filter prefix matches more than one state.
	ErrAmbiguousState = errors.New("ambiguous job state")
)

// IsNotStarted reports whether the job has not yet begun executing.
// The log endpoint is not meaningful for these states.
func IsNotStarted(s State) bool {
	return s == StatePending || s == StateProvisioned
}

// IsStarted is the negation of IsNotStarted.
func IsStarted(s State) bool {
	return !IsNotStarted(s)
}

// IsDone reports whether the job reached a terminal state and will not run again.
func IsDone(s State) bool {
	switch s {
	case StateStopped, StateCancelled, StateFailed, StateError:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the canonical states.
func (s State) Valid() bool {
	for _, c := range States {
		if s == c {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// ParseState matches a user-supplied state filter against the canonical list.
//
// Matching is case-insensitive. An exact name wins; otherwise the input must be
// a prefix of exactly one canonical state ("stop" -> Stopped, "run" -> Running).
func ParseState(input string) (State, error) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return "", fmt.Errorf("%w: empty state", ErrUnknownState)
	}

	var matches []State
	for _, s := range States {
		name := strings.ToLower(string(s))
		if name == in {
			return s, nil
		}
		if strings.HasPrefix(name, in) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownState, input, joinStates(States))
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %s", ErrAmbiguousState, input, joinStates(matches))
	}
}

func joinStates(states []State) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
