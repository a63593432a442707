package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_InitialState(t *testing.T) {
	s := NewStatus()
	assert.Equal(t, StatusAlive, s.Load())
}

func TestStatus_MaybeUpdate_Advances(t *testing.T) {
	s := NewStatus()
	ok := s.MaybeUpdate(StatusPendingKillDueToMemoryPressure)
	assert.True(t, ok)
	assert.Equal(t, StatusPendingKillDueToMemoryPressure, s.Load())
}

func TestStatus_MaybeUpdate_NeverGoesBackward(t *testing.T) {
	s := NewStatus()
	s.MaybeUpdate(StatusKilledDueToMemoryPressure)

	ok := s.MaybeUpdate(StatusPendingKillDueToMemoryPressure)
	assert.False(t, ok)
	assert.Equal(t, StatusKilledDueToMemoryPressure, s.Load())
}

func TestStatus_MaybeUpdate_SameStateIsNoOp(t *testing.T) {
	s := NewStatus()
	s.MaybeUpdate(StatusPendingKillDueToMemoryPressure)

	ok := s.MaybeUpdate(StatusPendingKillDueToMemoryPressure)
	assert.False(t, ok)
}

func TestStatusValue_String(t *testing.T) {
	cases := map[StatusValue]string{
		StatusAlive:                          "ALIVE",
		StatusPendingKillDueToMemoryPressure: "PENDING_KILL_DUE_TO_MEMORY_PRESSURE",
		StatusKilledDueToMemoryPressure:      "KILLED_DUE_TO_MEMORY_PRESSURE",
		StatusValue(99):                      "UNKNOWN",
	}
	for value, expected := range cases {
		assert.Equal(t, expected, value.String())
	}
}
