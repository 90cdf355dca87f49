// Package wrappers provides environment wrappers that modify the
// timesteps an environment produces
package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/goatari/environment"
	ts "github.com/samuelfneumann/goatari/timestep"
	"github.com/samuelfneumann/goatari/utils/floatutils"
)

// ClipReward wraps an environment and clips its rewards to a fixed
// interval. Training on clipped rewards keeps gradient magnitudes
// comparable across games with very different score scales;
// evaluation should be run on the unwrapped environment to report
// true scores.
type ClipReward struct {
	env.Environment

	min, max    float64
	currentStep ts.TimeStep
}

// NewClipReward returns a new ClipReward environment that clips the
// rewards of the wrapped environment to [min, max]
func NewClipReward(e env.Environment, min, max float64) (env.Environment,
	error) {
	if min > max {
		return nil, fmt.Errorf("newClipReward: min (%v) > max (%v)", min,
			max)
	}

	wrapped := &ClipReward{
		Environment: e,
		min:         min,
		max:         max,
	}
	wrapped.currentStep = clip(e.CurrentTimeStep(), min, max)

	return wrapped, nil
}

// Step takes a single environmental step, clipping the reward of the
// resulting timestep
func (c *ClipReward) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	t, done, err := c.Environment.Step(a)
	if err != nil {
		return t, done, err
	}

	t = clip(t, c.min, c.max)
	c.currentStep = t
	return t, done, nil
}

// Reset resets the wrapped environment to the start of a new episode
func (c *ClipReward) Reset() (ts.TimeStep, error) {
	t, err := c.Environment.Reset()
	if err != nil {
		return t, err
	}

	c.currentStep = t
	return t, nil
}

// CurrentTimeStep returns the current timestep with its reward clipped
func (c *ClipReward) CurrentTimeStep() ts.TimeStep {
	return c.currentStep
}

// RewardSpec returns the reward specification of the wrapped
// environment with bounds tightened to the clipping interval
func (c *ClipReward) RewardSpec() env.Spec {
	spec := c.Environment.RewardSpec()
	spec.LowerBound = mat.NewVecDense(1, []float64{c.min})
	spec.UpperBound = mat.NewVecDense(1, []float64{c.max})
	return spec
}

// clip returns t with its reward clipped to [min, max]
func clip(t ts.TimeStep, min, max float64) ts.TimeStep {
	t.Reward = floatutils.Clip(t.Reward, min, max)
	return t
}
