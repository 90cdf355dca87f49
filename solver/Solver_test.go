package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAdamJSONRoundTrip tests that an Adam solver survives a trip
// through a JSON configuration file
func TestAdamJSONRoundTrip(t *testing.T) {
	original, err := NewAdam(1e-4, 1e-6, 0.9, 0.999, 32)
	require.NoError(t, err)
	require.NotNil(t, original.Solver)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, Adam, decoded.Type)
	require.Equal(t, original.Config, decoded.Config)
	require.NotNil(t, decoded.Solver)
}

// TestRMSPropJSONRoundTrip tests that an RMSProp solver with gradient
// clipping survives a trip through a JSON configuration file
func TestRMSPropJSONRoundTrip(t *testing.T) {
	original, err := NewRMSProp(1e-4, 1e-6, 0.001, 0.95, 32, 1.0)
	require.NoError(t, err)
	require.NotNil(t, original.Solver)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, RMSProp, decoded.Type)
	require.Equal(t, original.Config, decoded.Config)
	require.NotNil(t, decoded.Solver)
}

// TestVanillaUnmarshalFromDocument tests unmarshalling a solver from a
// handwritten configuration document
func TestVanillaUnmarshalFromDocument(t *testing.T) {
	data := []byte(
		`{"Type":"Vanilla","Config":{"StepSize":0.01,"Batch":16,"Clip":-1}}`)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, Vanilla, decoded.Type)
	require.Equal(t, VanillaConfig{StepSize: 0.01, Batch: 16, Clip: -1},
		decoded.Config)
	require.NotNil(t, decoded.Solver)
}

// TestDefaultConstructors tests the default hyperparameter constructors
func TestDefaultConstructors(t *testing.T) {
	adam, err := NewDefaultAdam(1e-4, 32)
	require.NoError(t, err)
	require.Equal(t, Adam, adam.Type)

	rmsprop, err := NewDefaultRMSProp(1e-4, 32)
	require.NoError(t, err)
	require.Equal(t, RMSProp, rmsprop.Type)
}

// TestNewRMSPropRejectsNonDefaultEta tests that unsupported eta values
// are rejected at construction
func TestNewRMSPropRejectsNonDefaultEta(t *testing.T) {
	_, err := NewRMSProp(1e-4, 1e-6, 0.01, 0.95, 32, -1.0)
	require.Error(t, err)
}
