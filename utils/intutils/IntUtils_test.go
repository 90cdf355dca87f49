package intutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMin tests that the minimum of an argument list is returned
func TestMin(t *testing.T) {
	assert.Equal(t, 1, Min(1))
	assert.Equal(t, -3, Min(2, -3, 5))
	assert.Equal(t, 0, Min(0, 1, 0))
}
