package musig

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func threeCosigners(t *testing.T) (secrets []*btcec.PrivateKey, pubs []*btcec.PublicKey) {
	t.Helper()
	for i := 0; i < 3; i++ {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		secrets = append(secrets, priv)
		pubs = append(pubs, priv.PubKey())
	}
	return
}

func TestSessionStageViolationOnEarlySign(t *testing.T) {
	secrets, pubs := threeCosigners(t)
	msg := chainhash.Hash{1, 2, 3}

	session, err := NewSession(secrets[0], pubs, nil, 1000, [][]*chainhash.Hash{{&msg}})
	require.NoError(t, err)

	_, err = session.Sign()
	require.Error(t, err)
	var violation *SigningStageViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, StageInit, violation.Current)
}

func TestSessionStageViolationOnSkippedNonceSet(t *testing.T) {
	secrets, pubs := threeCosigners(t)
	msg := chainhash.Hash{1, 2, 3}

	session, err := NewSession(secrets[0], pubs, nil, 1000, [][]*chainhash.Hash{{&msg}})
	require.NoError(t, err)

	_, err = session.GetNonces()
	require.NoError(t, err)

	_, err = session.Sign()
	require.Error(t, err)
	var violation *SigningStageViolation
	require.ErrorAs(t, err, &violation)
	require.Equal(t, StageNonceGenerated, violation.Current)
}

func TestSessionLeafRowsAreSkipped(t *testing.T) {
	secrets, pubs := threeCosigners(t)
	msg := chainhash.Hash{9}

	// level 0 has one internal node, level 1 has one leaf (nil message).
	session, err := NewSession(secrets[0], pubs, nil, 1000, [][]*chainhash.Hash{
		{&msg},
		{nil},
	})
	require.NoError(t, err)

	matrix, err := session.GetNonces()
	require.NoError(t, err)
	require.NotNil(t, matrix[0][0])
	require.Nil(t, matrix[1][0])
}

func TestAggregatedPubKeyStableRegardlessOfCosignerOrder(t *testing.T) {
	secrets, pubs := threeCosigners(t)
	msg := chainhash.Hash{1}

	reversed := []*btcec.PublicKey{pubs[2], pubs[0], pubs[1]}

	forward, err := NewSession(secrets[0], pubs, nil, 1000, [][]*chainhash.Hash{{&msg}})
	require.NoError(t, err)
	backward, err := NewSession(secrets[0], reversed, nil, 1000, [][]*chainhash.Hash{{&msg}})
	require.NoError(t, err)

	require.True(t, forward.AggregatedPubKey().IsEqual(backward.AggregatedPubKey()))
}

func TestTweakedPubKeyDiffersFromAggregatedPubKey(t *testing.T) {
	secrets, pubs := threeCosigners(t)
	msg := chainhash.Hash{1}

	session, err := NewSession(secrets[0], pubs, nil, 1000, [][]*chainhash.Hash{{&msg}})
	require.NoError(t, err)

	require.NotNil(t, session.AggregatedPubKey())
	require.NotNil(t, session.TweakedPubKey())
	require.False(t, session.AggregatedPubKey().IsEqual(session.TweakedPubKey()))
}
