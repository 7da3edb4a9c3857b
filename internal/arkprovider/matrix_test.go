package arkprovider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMatrixRoundtrip(t *testing.T) {
	nonce := make([]byte, NonceCellSize)
	for i := range nonce {
		nonce[i] = byte(i)
	}

	rows := [][][]byte{
		{nonce, nil},
		{nil, nonce, nonce},
	}

	encoded, err := EncodeMatrix(rows, NonceCellSize)
	require.NoError(t, err)

	decoded, err := DecodeMatrix(encoded, NonceCellSize)
	require.NoError(t, err)
	require.Equal(t, rows, decoded)
}

func TestEncodeMatrixRejectsWrongCellSize(t *testing.T) {
	_, err := EncodeMatrix([][][]byte{{make([]byte, 10)}}, NonceCellSize)
	require.Error(t, err)
}

func TestEncodeDecodeMatrixEmpty(t *testing.T) {
	encoded, err := EncodeMatrix(nil, SigCellSize)
	require.NoError(t, err)

	decoded, err := DecodeMatrix(encoded, SigCellSize)
	require.NoError(t, err)
	require.Empty(t, decoded)
}
