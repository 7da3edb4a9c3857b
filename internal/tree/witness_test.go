package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeParseFinalWitnessRoundtrip(t *testing.T) {
	items := [][]byte{{0x01, 0x02}, {}, {0x03, 0x04, 0x05}}

	data, err := SerializeFinalWitness(items...)
	require.NoError(t, err)

	parsed, err := ParseFinalWitness(data)
	require.NoError(t, err)
	require.Equal(t, items, parsed)
}

func TestParseFinalWitnessEmpty(t *testing.T) {
	data, err := SerializeFinalWitness()
	require.NoError(t, err)

	parsed, err := ParseFinalWitness(data)
	require.NoError(t, err)
	require.Empty(t, parsed)
}
