// Package atari provides access to Atari game environments through
// GoGym, the Go bindings for OpenAI Gym.
//
// Environments should be created from the NoFrameskip variants of the
// ALE game IDs (e.g. "BreakoutNoFrameskip-v4"). Emulation itself
// happens inside the ALE; this package only converts raw screens into
// the flattened grayscale frames that the rest of the module works
// with. One observation is a single 84x84 frame with intensities in
// [0, 1]; consumers that need multi-frame state stacks build them
// from consecutive frames.
package atari

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gogym"
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/goatari/environment"
	ts "github.com/samuelfneumann/goatari/timestep"
)

const (
	// Raw ALE screen dimensions
	screenRows = 210
	screenCols = 160

	// FrameWidth is the side length of a preprocessed square frame
	FrameWidth = 84

	// FrameSize is the number of features in one flattened
	// preprocessed frame
	FrameSize = FrameWidth * FrameWidth
)

// Env implements access to an Atari environment using GoGym
type Env struct {
	gogym.Environment

	currentStep ts.TimeStep
	discount    float64
}

// New returns a new Atari environment for the given ALE game ID along
// with the first timestep of the first episode.
func New(game string, discount float64, seed uint64) (env.Environment,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(game)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment: %v", err)
	}
	goGymEnv.Seed(int(seed))

	obs, err := goGymEnv.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not reset "+
			"environment: %v", err)
	}

	frame, err := preprocess(obs)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}

	atariEnv := &Env{
		Environment: goGymEnv,
		discount:    discount,
	}

	t := ts.New(ts.First, 0, discount, frame, 0)
	atariEnv.currentStep = t

	return atariEnv, t, nil
}

// Step takes a single environmental step
func (e *Env) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := e.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	frame, err := preprocess(obs)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: %v", err)
	}

	t := ts.New(ts.Mid, reward, e.discount, frame,
		e.CurrentTimeStep().Number+1)
	if done {
		t.StepType = ts.Last
	}
	e.currentStep = t

	return t, done, nil
}

// Reset resets the environment to the start of a new episode
func (e *Env) Reset() (ts.TimeStep, error) {
	obs, err := e.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	frame, err := preprocess(obs)
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v", err)
	}

	t := ts.New(ts.First, 0, e.discount, frame, 0)
	e.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (e *Env) CurrentTimeStep() ts.TimeStep {
	return e.currentStep
}

// ObservationSpec returns the observation spec of the environment
func (e *Env) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(FrameSize, nil)
	low := mat.NewVecDense(FrameSize, nil)
	high := mat.NewVecDense(FrameSize, ones(FrameSize))

	return env.NewSpec(shape, env.Observation, low, high, env.Continuous)
}

// ActionSpec returns the action specification of the environment.
// Atari actions are a single discrete index enumerated from 0.
func (e *Env) ActionSpec() env.Spec {
	space, ok := e.ActionSpace().(*gogym.DiscreteSpace)
	if !ok {
		panic("actionSpec: Atari environments must have discrete actions")
	}

	low := space.Low()[0]
	high := space.High()[0]
	shape := mat.NewVecDense(low.Len(), nil)

	return env.NewSpec(shape, env.Action, low, high, env.Discrete)
}

// DiscountSpec returns the discount specification of the environment
func (e *Env) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	discount := mat.NewVecDense(1, []float64{e.discount})

	return env.NewSpec(shape, env.Discount, discount, discount,
		env.Continuous)
}

// RewardSpec returns the reward specification of the environment. Raw
// ALE rewards are unbounded game score deltas.
func (e *Env) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{math.Inf(-1)})
	high := mat.NewVecDense(1, []float64{math.Inf(1)})

	return env.NewSpec(shape, env.Reward, low, high, env.Continuous)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (e *Env) Close() error {
	e.Environment.Close()
	return nil
}

// preprocess converts a raw RGB screen into a flattened 84x84
// grayscale frame with intensities in [0, 1]. Observations that are
// already preprocessed (e.g. when gym-side wrappers are active) pass
// through unchanged.
func preprocess(raw *mat.VecDense) (*mat.VecDense, error) {
	if raw.Len() == FrameSize {
		return raw, nil
	}
	if raw.Len() != screenRows*screenCols*3 {
		return nil, fmt.Errorf("preprocess: unexpected screen size "+
			"\n\twant(%v or %v)\n\thave(%v)", screenRows*screenCols*3,
			FrameSize, raw.Len())
	}

	out := make([]float64, FrameSize)
	for r := 0; r < FrameWidth; r++ {
		srcRow := r * screenRows / FrameWidth
		for c := 0; c < FrameWidth; c++ {
			srcCol := c * screenCols / FrameWidth
			base := (srcRow*screenCols + srcCol) * 3

			luminance := 0.299*raw.AtVec(base) +
				0.587*raw.AtVec(base+1) +
				0.114*raw.AtVec(base+2)
			out[r*FrameWidth+c] = luminance / 255.0
		}
	}
	return mat.NewVecDense(FrameSize, out), nil
}

// ones returns a slice of n ones
func ones(n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1.0
	}
	return data
}
