package timestep

import (
	"gonum.org/v1/gonum/mat"
)

// Transition packages together a single recorded experience tuple:
// the observation at some step, the action taken there, the reward
// received for taking that action, the observation that followed, and
// whether the following observation ended the episode.
//
// For pixel-based environments the State and NextState fields hold a
// single flattened frame each. Multi-frame state stacks are
// reconstructed by consumers that store Transitions, such as an
// experience replay buffer.
//
// A Transition is immutable once constructed: consumers should copy
// the observation data rather than alias it.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector
	Terminal  bool
}

// NewTransition packages two consecutive timesteps and the action taken
// between them into a Transition. The reward and terminal flag are
// taken from the later step.
func NewTransition(step TimeStep, action int, nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: nextStep.Observation,
		Terminal:  nextStep.Last(),
	}
}
