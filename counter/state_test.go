package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	testcases := []struct {
		desc     string
		from     int
		action   Action
		expected int
	}{
		{"increment from zero", 0, Increment, 1},
		{"decrement from zero", 0, Decrement, -1},
		{"increment negative", -5, Increment, -4},
		{"decrement positive", 3, Decrement, 2},
		{"unknown action keeps state", 9, Action(0), 9},
	}
	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			got := Transition(State{Counter: tc.from}, tc.action)
			assert.Equal(t, tc.expected, got.Counter)
		})
	}
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	s := State{Counter: 4}
	_ = Transition(s, Increment)
	assert.Equal(t, 4, s.Counter)
}

func TestSkipDecrement(t *testing.T) {
	assert.False(t, SkipDecrement(State{Counter: 3}, State{Counter: 2}))
	assert.True(t, SkipDecrement(State{Counter: 3}, State{Counter: 4}))
	assert.True(t, SkipDecrement(State{Counter: 3}, State{Counter: 1}))
}

func TestGateByName(t *testing.T) {
	for _, name := range []string{"", "always", "ALWAYS", " never ", "skip-decrement"} {
		g, err := GateByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, g, name)
	}

	never, _ := GateByName("never")
	assert.False(t, never(State{}, State{Counter: 1}))

	_, err := GateByName("sometimes")
	assert.ErrorIs(t, err, ErrUnknownGate)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "increment", Increment.String())
	assert.Equal(t, "decrement", Decrement.String())
	assert.Equal(t, "action(7)", Action(7).String())
}
