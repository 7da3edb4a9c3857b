package forfeit

import (
	"strings"
	"testing"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/identity"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func fakeTxid(b byte) string {
	return strings.Repeat(string([]byte{"0123456789abcdef"[b%16]}), 64)
}

func testParams(t *testing.T) (Params, *arkscript.ScriptTree, *identity.PrivateKey) {
	t.Helper()

	ownerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	id := identity.FromPrivateKey(ownerKey)

	serverKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	scriptTree, err := arkscript.NewDefaultVtxoScript(
		id.XOnlyPublicKey(),
		arkscript.XOnlyFromPubKey(serverKey.PubKey()),
		arkscript.RelativeLocktime{Unit: arkscript.DelayBlocks, Value: 144},
	)
	require.NoError(t, err)

	forfeitLeaf, ok := scriptTree.Leaf(arkscript.LeafForfeit)
	require.True(t, ok)

	params := Params{
		ConnectorOutpoint: ark.Outpoint{Txid: fakeTxid(1), Vout: 0},
		ConnectorAmount:   1000,
		ConnectorScript:   []byte{0x51, 0x20},

		VtxoOutpoint: ark.Outpoint{Txid: fakeTxid(2), Vout: 1},
		VtxoAmount:   50_000,
		VtxoScript:   scriptTree.OutputScript(),

		ForfeitLeaf: forfeitLeaf,

		ServerScript: []byte{0x51, 0x20},
		FeeAmount:    300,
	}

	return params, scriptTree, id
}

func TestBuildProducesTwoInputsAndAnchorOutput(t *testing.T) {
	params, _, _ := testParams(t)

	pkt, err := Build(params)
	require.NoError(t, err)

	tx := pkt.UnsignedTx
	require.Len(t, tx.TxIn, 2)
	require.Len(t, tx.TxOut, 2)
	require.True(t, arkscript.IsAnchorScript(tx.TxOut[1].PkScript))
	require.Equal(t, int64(params.VtxoAmount+params.ConnectorAmount-params.FeeAmount), tx.TxOut[0].Value)
}

func TestBuildRejectsFeeExceedingInputs(t *testing.T) {
	params, _, _ := testParams(t)
	params.FeeAmount = params.VtxoAmount + params.ConnectorAmount + 1

	_, err := Build(params)
	require.Error(t, err)
}

func TestSignProducesForfeitLeafWitnessOnVtxoInput(t *testing.T) {
	params, _, id := testParams(t)

	pkt, err := Build(params)
	require.NoError(t, err)

	signed, err := Sign(id, pkt)
	require.NoError(t, err)

	require.Nil(t, signed.Inputs[0].FinalScriptWitness, "connector input is left for the server to sign")

	items, err := tree.ParseFinalWitness(signed.Inputs[1].FinalScriptWitness)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Len(t, items[0], 64)
	require.Equal(t, params.ForfeitLeaf.Script, items[1])
	require.Equal(t, params.ForfeitLeaf.ControlBlock, items[2])
}
