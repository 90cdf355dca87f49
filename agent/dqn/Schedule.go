package dqn

// Schedule implements the piecewise linear epsilon annealing schedule
// used for exploration. Epsilon stays at its initial value while the
// replay memory fills, anneals linearly to a final value over the
// first annealing segment, then anneals linearly to a terminal value
// over a second segment that is 25 times as long, after which it is
// held constant.
type Schedule struct {
	init     float64
	final    float64
	terminal float64

	replayStartSize int
	finalFrame      int
	terminalFrame   int
}

// NewSchedule returns a new epsilon annealing Schedule. The first
// annealing segment runs from replayStartSize to finalFrame
// environment steps; the second runs from finalFrame to
// 25 * finalFrame steps.
func NewSchedule(init, final, terminal float64, replayStartSize,
	finalFrame int) *Schedule {
	return &Schedule{
		init:     init,
		final:    final,
		terminal: terminal,

		replayStartSize: replayStartSize,
		finalFrame:      finalFrame,
		terminalFrame:   finalFrame * 25,
	}
}

// Value returns the value of epsilon at the given environment step
func (s *Schedule) Value(step int) float64 {
	switch {
	case step <= s.replayStartSize:
		return s.init

	case step <= s.finalFrame:
		slope := (s.final - s.init) /
			float64(s.finalFrame-s.replayStartSize)
		return s.init + slope*float64(step-s.replayStartSize)

	case step <= s.terminalFrame:
		slope := (s.terminal - s.final) /
			float64(s.terminalFrame-s.finalFrame)
		return s.final + slope*float64(step-s.finalFrame)

	default:
		return s.terminal
	}
}
