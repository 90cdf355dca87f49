package wrappers

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/goatari/environment"
	ts "github.com/samuelfneumann/goatari/timestep"
)

// fakeEnv is a deterministic environment that emits a fixed sequence
// of rewards
type fakeEnv struct {
	rewards []float64
	step    int
	current ts.TimeStep
}

func newFakeEnv(rewards []float64) *fakeEnv {
	e := &fakeEnv{rewards: rewards}
	e.current = ts.New(ts.First, 0, 1.0, mat.NewVecDense(1, nil), 0)
	return e
}

func (f *fakeEnv) Reset() (ts.TimeStep, error) {
	f.step = 0
	f.current = ts.New(ts.First, 0, 1.0, mat.NewVecDense(1, nil), 0)
	return f.current, nil
}

func (f *fakeEnv) Step(_ *mat.VecDense) (ts.TimeStep, bool, error) {
	reward := f.rewards[f.step]
	f.step++

	stepType := ts.Mid
	if f.step == len(f.rewards) {
		stepType = ts.Last
	}
	f.current = ts.New(stepType, reward, 1.0, mat.NewVecDense(1, nil),
		f.step)
	return f.current, stepType == ts.Last, nil
}

func (f *fakeEnv) CurrentTimeStep() ts.TimeStep {
	return f.current
}

func (f *fakeEnv) ObservationSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(1, nil), env.Observation,
		mat.NewVecDense(1, []float64{0}), mat.NewVecDense(1, []float64{1}),
		env.Continuous)
}

func (f *fakeEnv) ActionSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(1, nil), env.Action,
		mat.NewVecDense(1, []float64{0}), mat.NewVecDense(1, []float64{3}),
		env.Discrete)
}

func (f *fakeEnv) DiscountSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(1, nil), env.Discount,
		mat.NewVecDense(1, []float64{0.99}),
		mat.NewVecDense(1, []float64{0.99}), env.Continuous)
}

func (f *fakeEnv) RewardSpec() env.Spec {
	return env.NewSpec(mat.NewVecDense(1, nil), env.Reward,
		mat.NewVecDense(1, []float64{-10}),
		mat.NewVecDense(1, []float64{10}), env.Continuous)
}

func (f *fakeEnv) Close() error { return nil }

// TestClipRewardClipsToInterval tests that rewards outside the
// clipping interval are clipped while rewards inside pass through
// unchanged
func TestClipRewardClipsToInterval(t *testing.T) {
	wrapped, err := NewClipReward(newFakeEnv([]float64{2.5, -3.0, 0.5}),
		-1.0, 1.0)
	require.NoError(t, err)

	action := mat.NewVecDense(1, nil)

	step, _, err := wrapped.Step(action)
	require.NoError(t, err)
	require.Equal(t, 1.0, step.Reward)

	step, _, err = wrapped.Step(action)
	require.NoError(t, err)
	require.Equal(t, -1.0, step.Reward)

	step, done, err := wrapped.Step(action)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 0.5, step.Reward)

	// The clipped timestep should also be the current timestep
	require.Equal(t, 0.5, wrapped.CurrentTimeStep().Reward)
}

// TestClipRewardTightensRewardSpec tests that the wrapped environment
// reports the clipping interval as its reward bounds
func TestClipRewardTightensRewardSpec(t *testing.T) {
	wrapped, err := NewClipReward(newFakeEnv([]float64{1}), -1.0, 1.0)
	require.NoError(t, err)

	spec := wrapped.RewardSpec()
	require.Equal(t, -1.0, spec.LowerBound.AtVec(0))
	require.Equal(t, 1.0, spec.UpperBound.AtVec(0))
}

// TestClipRewardInvalidInterval tests that a clipping interval with
// min > max is rejected
func TestClipRewardInvalidInterval(t *testing.T) {
	_, err := NewClipReward(newFakeEnv([]float64{1}), 1.0, -1.0)
	require.Error(t, err)
}
