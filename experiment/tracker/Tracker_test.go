package tracker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/goatari/timestep"
)

// episode produces the sequence of timesteps for an episode with the
// given per-step rewards
func episode(rewards []float64) []ts.TimeStep {
	obs := mat.NewVecDense(1, nil)
	steps := []ts.TimeStep{ts.New(ts.First, 0, 1.0, obs, 0)}

	for i, reward := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		steps = append(steps, ts.New(stepType, reward, 1.0, obs, i+1))
	}
	return steps
}

// TestReturnTracksEpisodicReturns tests that returns are accumulated
// per episode and persisted
func TestReturnTracksEpisodicReturns(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	tr := NewReturn(filename)

	for _, rewards := range [][]float64{
		{1.0, 0.0, 2.0},
		{-1.0, -1.0},
	} {
		for _, step := range episode(rewards) {
			tr.Track(step)
		}
	}

	require.NoError(t, tr.Save())

	data, err := LoadData(filename)
	require.NoError(t, err)
	require.Equal(t, []float64{3.0, -2.0}, data)
}

// TestReturnPanicsOnNonSequentialTimesteps tests that tracking
// out-of-order timesteps is caught
func TestReturnPanicsOnNonSequentialTimesteps(t *testing.T) {
	tr := NewReturn(filepath.Join(t.TempDir(), "returns.bin"))

	obs := mat.NewVecDense(1, nil)
	tr.Track(ts.New(ts.First, 0, 1.0, obs, 0))

	require.Panics(t, func() {
		tr.Track(ts.New(ts.Mid, 1.0, 1.0, obs, 5))
	})
}

// TestEpisodeLengthTracksFinishedEpisodes tests that only finished
// episodes contribute a length
func TestEpisodeLengthTracksFinishedEpisodes(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "lengths.bin")
	tr := NewEpisodeLength(filename)

	for _, step := range episode([]float64{0, 0, 0, 0}) {
		tr.Track(step)
	}

	// An unfinished episode should not be recorded
	obs := mat.NewVecDense(1, nil)
	tr.Track(ts.New(ts.First, 0, 1.0, obs, 0))
	tr.Track(ts.New(ts.Mid, 0, 1.0, obs, 1))

	require.NoError(t, tr.Save())

	concrete := tr.(*EpisodeLength)
	require.Equal(t, []int{4}, concrete.episodeLengths)
}
