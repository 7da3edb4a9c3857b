package arkscript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePreimageRoundtrips(t *testing.T) {
	preimage, hash, err := GeneratePreimage()
	require.NoError(t, err)
	require.Len(t, preimage, 32)

	require.True(t, VerifyPreimage(preimage, hash))
}

func TestGeneratePreimageIsNotDeterministic(t *testing.T) {
	p1, h1, err := GeneratePreimage()
	require.NoError(t, err)
	p2, h2, err := GeneratePreimage()
	require.NoError(t, err)

	require.NotEqual(t, p1, p2)
	require.NotEqual(t, h1, h2)
}

func TestVerifyPreimageRejectsWrongSecret(t *testing.T) {
	_, hash, err := GeneratePreimage()
	require.NoError(t, err)

	require.False(t, VerifyPreimage([]byte("wrong secret"), hash))
	require.False(t, VerifyPreimage(nil, hash))
}
