package initwfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestJSONRoundTrip tests that every initializer type survives a trip
// through a JSON configuration file
func TestJSONRoundTrip(t *testing.T) {
	initializers := []struct {
		construct func() (*InitWFn, error)
		wantType  Type
	}{
		{func() (*InitWFn, error) { return NewGlorotU(1.0) }, GlorotU},
		{func() (*InitWFn, error) { return NewGlorotN(1.0) }, GlorotN},
		{func() (*InitWFn, error) { return NewHeU(1.414) }, HeU},
		{func() (*InitWFn, error) { return NewHeN(1.414) }, HeN},
		{func() (*InitWFn, error) { return NewZeroes() }, Zeroes},
		{func() (*InitWFn, error) { return NewOnes() }, Ones},
		{func() (*InitWFn, error) { return NewConstant(0.25) }, Constant},
		{func() (*InitWFn, error) { return NewUniform(-0.5, 0.5) }, Uniform},
		{func() (*InitWFn, error) { return NewGaussian(0.0, 0.1) }, Gaussian},
	}

	for _, init := range initializers {
		original, err := init.construct()
		require.NoError(t, err)
		require.Equal(t, init.wantType, original.Type)
		require.NotNil(t, original.InitWFn())

		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded InitWFn
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, original.Type, decoded.Type)
		require.Equal(t, original.Config, decoded.Config)
		require.NotNil(t, decoded.InitWFn())
	}
}

// TestUnmarshalFromDocument tests unmarshalling an initializer from a
// handwritten configuration document
func TestUnmarshalFromDocument(t *testing.T) {
	data := []byte(`{"Type":"HeN","Config":{"Gain":2.0}}`)

	var decoded InitWFn
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, HeN, decoded.Type)
	require.Equal(t, HeNConfig{Gain: 2.0}, decoded.Config)
	require.NotNil(t, decoded.InitWFn())
}
