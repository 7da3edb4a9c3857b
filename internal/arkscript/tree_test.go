package arkscript

import (
	"testing"

	"github.com/arkwallet/arkwalletd/internal/arkerr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestDefaultVtxoScriptHasTwoLeaves(t *testing.T) {
	owner, server := randXOnly(t), randXOnly(t)

	tree, err := NewDefaultVtxoScript(owner, server, RelativeLocktime{Unit: DelayBlocks, Value: 144})
	require.NoError(t, err)

	require.Len(t, tree.Encode(), 2)

	forfeit, ok := tree.Leaf(LeafForfeit)
	require.True(t, ok)
	require.NotEmpty(t, forfeit.ControlBlock)
	require.Equal(t, txscript.BaseLeafVersion, forfeit.Version)

	exit, ok := tree.Leaf(LeafExit)
	require.True(t, ok)
	require.NotEmpty(t, exit.ControlBlock)

	require.NotEqual(t, forfeit.ControlBlock, exit.ControlBlock)
}

func TestDefaultVtxoScriptOutputScriptShape(t *testing.T) {
	owner, server := randXOnly(t), randXOnly(t)
	tree, err := NewDefaultVtxoScript(owner, server, RelativeLocktime{Unit: DelayBlocks, Value: 144})
	require.NoError(t, err)

	script := tree.OutputScript()
	require.Len(t, script, 34)
	require.Equal(t, byte(txscript.OP_1), script[0])
	require.Equal(t, byte(txscript.OP_DATA_32), script[1])
}

func TestDefaultVtxoScriptUsesUnspendableInternalKey(t *testing.T) {
	owner, server := randXOnly(t), randXOnly(t)
	tree, err := NewDefaultVtxoScript(owner, server, RelativeLocktime{Unit: DelayBlocks, Value: 144})
	require.NoError(t, err)
	require.True(t, tree.InternalKey.IsEqual(UnspendableInternalKey()))
}

func TestBoardingScriptRejectsSecondsDelay(t *testing.T) {
	owner, server := randXOnly(t), randXOnly(t)
	_, err := NewBoardingScript(owner, server, RelativeLocktime{Unit: DelaySeconds, Value: 512}, 800_000)
	require.Error(t, err)
}

func TestBoardingScriptHasTwoLeaves(t *testing.T) {
	owner, server := randXOnly(t), randXOnly(t)
	tree, err := NewBoardingScript(owner, server, RelativeLocktime{Unit: DelayBlocks, Value: 144}, 800_000)
	require.NoError(t, err)
	require.Len(t, tree.Encode(), 2)
}

func newVHTLCParams(t *testing.T) VHTLCParams {
	t.Helper()
	var hash [20]byte
	copy(hash[:], []byte("01234567890123456789"))
	return VHTLCParams{
		PreimageHash:                          hash,
		Sender:                                randXOnly(t),
		Receiver:                              randXOnly(t),
		Server:                                 randXOnly(t),
		RefundLocktime:                        900_000,
		UnilateralClaimDelay:                  RelativeLocktime{Unit: DelayBlocks, Value: 10},
		UnilateralRefundDelay:                 RelativeLocktime{Unit: DelayBlocks, Value: 20},
		UnilateralRefundWithoutReceiverDelay:  RelativeLocktime{Unit: DelayBlocks, Value: 30},
	}
}

func TestVHTLCScriptHasSixLeaves(t *testing.T) {
	tree, err := NewVHTLCScript(newVHTLCParams(t))
	require.NoError(t, err)
	require.Len(t, tree.Encode(), 6)

	for _, name := range []string{
		LeafClaim, LeafRefund, LeafRefundWithoutReceiver,
		LeafUnilateralClaim, LeafUnilateralRefund, LeafUnilateralRefundNoReceiver,
	} {
		leaf, ok := tree.Leaf(name)
		require.Truef(t, ok, "leaf %q missing", name)
		require.NotEmpty(t, leaf.ControlBlock)
	}
}

func TestVHTLCScriptRejectsOutOfOrderDelays(t *testing.T) {
	p := newVHTLCParams(t)
	p.UnilateralRefundDelay, p.UnilateralClaimDelay = p.UnilateralClaimDelay, p.UnilateralRefundDelay

	_, err := NewVHTLCScript(p)
	require.ErrorIs(t, err, ErrConfigDelayOrdering)

	var configErr *arkerr.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestVHTLCScriptRejectsMixedUnits(t *testing.T) {
	p := newVHTLCParams(t)
	p.UnilateralRefundDelay.Unit = DelaySeconds
	p.UnilateralRefundDelay.Value = 512 * 30

	_, err := NewVHTLCScript(p)
	require.ErrorIs(t, err, ErrConfigDelayOrdering)

	var configErr *arkerr.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestUnspendableInternalKeyIsWellFormed(t *testing.T) {
	key := UnspendableInternalKey()
	require.NotNil(t, key)
	require.Len(t, schnorr.SerializePubKey(key), 32)
}
