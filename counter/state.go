package counter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ryanhamamura/live/lifecycle"
)

// State is everything a counter widget owns.
type State struct {
	Counter int `json:"counter"`
}

// Action is a user intent that proposes a new State.
type Action int

const (
	Increment Action = iota + 1
	Decrement
)

func (a Action) String() string {
	switch a {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Transition computes the state proposed by a from s. The counter is unbounded
// in both directions. Unknown actions propose s unchanged.
func Transition(s State, a Action) State {
	switch a {
	case Increment:
		s.Counter++
	case Decrement:
		s.Counter--
	}
	return s
}

// AlwaysApply renders every proposal.
func AlwaysApply(current, proposed State) bool { return true }

// NeverApply vetoes every proposal. The stored counter keeps moving while the
// displayed one stays frozen at its last rendered value.
func NeverApply(current, proposed State) bool { return false }

// SkipDecrement vetoes proposals that are exactly one below the current counter.
// A decrement is stored but not shown; the next increment shows the net value,
// so the display appears to skip back to where it was.
func SkipDecrement(current, proposed State) bool {
	return proposed.Counter+1 != current.Counter
}

// ErrUnknownGate is returned by GateByName for names it does not recognize.
var ErrUnknownGate = errors.New("unknown gate")

// GateByName resolves a configured gate name: "always" (or empty), "never" or
// "skip-decrement".
func GateByName(name string) (lifecycle.Gate[State], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "always":
		return AlwaysApply, nil
	case "never":
		return NeverApply, nil
	case "skip-decrement":
		return SkipDecrement, nil
	}
	return nil, fmt.Errorf("counter: %w %q", ErrUnknownGate, name)
}
