package checkpointer

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/goatari/timestep"
)

// fakeWeights is a Serializable stand-in for a policy's weights
type fakeWeights struct {
	value float64
}

func (f *fakeWeights) GobEncode() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(f.value)
	return b.Bytes(), err
}

func (f *fakeWeights) GobDecode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(&f.value)
}

// episodeSteps feeds c one episode of n steps with within-episode step
// numbering, the way an experiment loop does between environment resets
func episodeSteps(t *testing.T, c Checkpointer, n int) {
	t.Helper()
	obs := mat.NewVecDense(1, nil)
	for step := 1; step <= n; step++ {
		stepType := ts.Mid
		if step == n {
			stepType = ts.Last
		}
		require.NoError(t, c.Checkpoint(ts.New(stepType, 0, 1.0, obs, step)))
	}
}

// TestNStepCountsStepsAcrossEpisodes tests that the checkpoint cadence
// follows total steps even though timestep numbers restart with every
// episode
func TestNStepCountsStepsAcrossEpisodes(t *testing.T) {
	dir := t.TempDir()
	c := NewNStep(250, &fakeWeights{value: 1.5},
		FilenameEnumerator(0, filepath.Join(dir, "weights"), ".bin"))

	// Every episode is shorter than the interval, so a cadence keyed
	// to the within-episode step number would never fire
	for episode := 0; episode < 4; episode++ {
		episodeSteps(t, c, 100)
	}

	files, err := filepath.Glob(filepath.Join(dir, "weights*.bin"))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

// TestNStepRoundTrip tests that checkpointed weights decode back to
// the saved object
func TestNStepRoundTrip(t *testing.T) {
	dir := t.TempDir()
	saved := &fakeWeights{value: -0.75}
	c := NewNStep(10, saved,
		FilenameEnumerator(0, filepath.Join(dir, "weights"), ".bin"))

	episodeSteps(t, c, 25)

	files, err := filepath.Glob(filepath.Join(dir, "weights*.bin"))
	require.NoError(t, err)
	require.Len(t, files, 2)

	file, err := os.Open(filepath.Join(dir, "weights1.bin"))
	require.NoError(t, err)
	defer file.Close()

	var loaded fakeWeights
	require.NoError(t, gob.NewDecoder(file).Decode(&loaded))
	require.Equal(t, saved.value, loaded.value)
}

// TestNStepWithFileTimer tests checkpointing with timestamped filenames
func TestNStepWithFileTimer(t *testing.T) {
	dir := t.TempDir()
	c := NewNStep(5, &fakeWeights{value: 2.0},
		FileTimer(filepath.Join(dir, "weights"), ".bin"))

	episodeSteps(t, c, 5)

	files, err := filepath.Glob(filepath.Join(dir, "weights-*.bin"))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

// TestFilenameEnumerator tests the counter suffix naming scheme
func TestFilenameEnumerator(t *testing.T) {
	name := FilenameEnumerator(3, "weights", ".bin")
	require.Equal(t, "weights4.bin", name())
	require.Equal(t, "weights5.bin", name())
}

// TestFileTimerNaming tests the timestamped naming scheme
func TestFileTimerNaming(t *testing.T) {
	name := FileTimer("weights", ".bin")()
	require.True(t, strings.HasPrefix(name, "weights-"))
	require.True(t, strings.HasSuffix(name, ".bin"))
}
