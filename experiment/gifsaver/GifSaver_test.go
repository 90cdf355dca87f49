package gifsaver

import (
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewRejectsInvalidDimensions tests input validation of the
// constructor
func TestNewRejectsInvalidDimensions(t *testing.T) {
	_, err := New(0, 84, 1, 4, "out.gif")
	require.Error(t, err)

	_, err = New(84, 84, 0, 4, "out.gif")
	require.Error(t, err)
}

// TestRecordRejectsWrongFrameSize tests that frames of the wrong size
// are rejected
func TestRecordRejectsWrongFrameSize(t *testing.T) {
	saver, err := New(2, 2, 1, 4, "out.gif")
	require.NoError(t, err)

	require.Error(t, saver.Record([]float64{0.0, 1.0}))
}

// TestSaveWritesAnimatedGif tests recording frames and writing them
// to disk
func TestSaveWritesAnimatedGif(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "episode.gif")
	saver, err := New(2, 2, 2, 4, filename)
	require.NoError(t, err)

	require.NoError(t, saver.Record([]float64{0.0, 0.5, 0.5, 1.0}))
	require.NoError(t, saver.Record([]float64{1.0, 0.5, 0.5, 0.0}))
	require.Equal(t, 2, saver.Len())

	require.NoError(t, saver.Save())

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()

	anim, err := gif.DecodeAll(file)
	require.NoError(t, err)
	require.Len(t, anim.Image, 2)

	// Frames are upscaled by the scale factor
	bounds := anim.Image[0].Bounds()
	require.Equal(t, 4, bounds.Dx())
	require.Equal(t, 4, bounds.Dy())
}

// TestSaveWithoutFrames tests that saving an empty recording fails
func TestSaveWithoutFrames(t *testing.T) {
	saver, err := New(2, 2, 1, 4, "out.gif")
	require.NoError(t, err)
	require.Error(t, saver.Save())
}
