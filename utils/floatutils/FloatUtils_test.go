package floatutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClip tests clipping values to an interval
func TestClip(t *testing.T) {
	require.Equal(t, 1.0, Clip(2.5, -1.0, 1.0))
	require.Equal(t, -1.0, Clip(-7.0, -1.0, 1.0))
	require.Equal(t, 0.5, Clip(0.5, -1.0, 1.0))
}

// TestMaxSlice tests finding the maximum value of a slice along with
// all indices at which it occurs
func TestMaxSlice(t *testing.T) {
	max, indices := MaxSlice([]float64{1.0, 3.0, 2.0, 3.0, -1.0})
	require.Equal(t, 3.0, max)
	require.Equal(t, []int{1, 3}, indices)

	// A maximum at index 0 should be reported exactly once
	max, indices = MaxSlice([]float64{5.0, 1.0, 5.0})
	require.Equal(t, 5.0, max)
	require.Equal(t, []int{0, 2}, indices)
}

// TestMean tests averaging a slice
func TestMean(t *testing.T) {
	require.Equal(t, 2.0, Mean([]float64{1.0, 2.0, 3.0}))
	require.Equal(t, -1.5, Mean([]float64{-1.0, -2.0}))
}
