package dqn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScheduleHoldsInitialValue tests that epsilon is held at its
// initial value while the replay memory fills
func TestScheduleHoldsInitialValue(t *testing.T) {
	s := NewSchedule(1.0, 0.1, 0.01, 100, 1000)

	require.Equal(t, 1.0, s.Value(0))
	require.Equal(t, 1.0, s.Value(50))
	require.Equal(t, 1.0, s.Value(100))
}

// TestScheduleAnnealsToFinalValue tests the first linear annealing
// segment
func TestScheduleAnnealsToFinalValue(t *testing.T) {
	s := NewSchedule(1.0, 0.1, 0.01, 100, 1000)

	// Halfway through the segment from step 100 to step 1000
	require.InDelta(t, 0.55, s.Value(550), 1e-12)
	require.InDelta(t, 0.1, s.Value(1000), 1e-12)
}

// TestScheduleAnnealsToTerminalValue tests the second linear annealing
// segment, which is 25 times as long as the first
func TestScheduleAnnealsToTerminalValue(t *testing.T) {
	s := NewSchedule(1.0, 0.1, 0.01, 100, 1000)

	// The second segment runs from step 1000 to step 25000
	require.InDelta(t, 0.055, s.Value(13000), 1e-12)
	require.InDelta(t, 0.01, s.Value(25000), 1e-12)
}

// TestScheduleConstantAfterTerminalFrame tests that epsilon is held
// constant once annealing has finished
func TestScheduleConstantAfterTerminalFrame(t *testing.T) {
	s := NewSchedule(1.0, 0.1, 0.01, 100, 1000)

	require.Equal(t, 0.01, s.Value(25001))
	require.Equal(t, 0.01, s.Value(1_000_000_000))
}

// TestScheduleMonotonicallyDecreasing tests that epsilon never
// increases over the course of training
func TestScheduleMonotonicallyDecreasing(t *testing.T) {
	s := NewSchedule(1.0, 0.1, 0.01, 100, 1000)

	prev := s.Value(0)
	for step := 1; step <= 30000; step += 7 {
		current := s.Value(step)
		require.LessOrEqual(t, current, prev)
		prev = current
	}
}

// TestConfigValidate tests that invalid hyperparameter settings are
// rejected
func TestConfigValidate(t *testing.T) {
	valid, err := DefaultConfig()
	require.NoError(t, err)
	require.NoError(t, valid.Validate())

	invalidBatch := valid
	invalidBatch.BatchSize = 0
	require.Error(t, invalidBatch.Validate())

	invalidStart := valid
	invalidStart.ReplayStartSize = invalidStart.BatchSize - 1
	require.Error(t, invalidStart.Validate())

	invalidTau := valid
	invalidTau.Tau = 0.0
	require.Error(t, invalidTau.Validate())

	invalidDiscount := valid
	invalidDiscount.Discount = 1.5
	require.Error(t, invalidDiscount.Validate())

	invalidAnneal := valid
	invalidAnneal.FinalExplorationFrame = invalidAnneal.ReplayStartSize
	require.Error(t, invalidAnneal.Validate())
}
