package identity

import (
	"testing"

	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

type singleOutpointFetcher struct {
	value  int64
	script []byte
}

func (f singleOutpointFetcher) FetchPrevOutput(chainhash.Hash, uint32) (int64, []byte, bool) {
	return f.value, f.script, true
}

func TestPrivateKeySignProducesScriptPathWitness(t *testing.T) {
	ownerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	id := FromPrivateKey(ownerKey)

	serverKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	scriptTree, err := arkscript.NewDefaultVtxoScript(id.XOnlyPublicKey(), arkscript.XOnlyFromPubKey(serverKey.PubKey()), arkscript.RelativeLocktime{Unit: arkscript.DelayBlocks, Value: 144})
	require.NoError(t, err)
	leaf, ok := scriptTree.Leaf(arkscript.LeafExit)
	require.True(t, ok)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(900, scriptTree.OutputScript()))

	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	pkt.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 1000, PkScript: scriptTree.OutputScript()}
	pkt.Inputs[0].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: leaf.ControlBlock,
		Script:       leaf.Script,
		LeafVersion:  leaf.Version,
	}}

	fetcher := singleOutpointFetcher{value: 1000, script: scriptTree.OutputScript()}

	signed, err := id.Sign(pkt, []int{0}, fetcher)
	require.NoError(t, err)

	items, err := tree.ParseFinalWitness(signed.Inputs[0].FinalScriptWitness)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Len(t, items[0], 64)
	require.Equal(t, leaf.Script, items[1])
	require.Equal(t, leaf.ControlBlock, items[2])
}

func TestPrivateKeySignRejectsUnannotatedInput(t *testing.T) {
	ownerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	id := FromPrivateKey(ownerKey)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(900, []byte{0x51}))
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	_, err = id.Sign(pkt, []int{0}, singleOutpointFetcher{})
	require.Error(t, err)
}

func TestPrivateKeySignRejectsOutOfRangeIndex(t *testing.T) {
	ownerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	id := FromPrivateKey(ownerKey)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(900, []byte{0x51}))
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	_, err = id.Sign(pkt, []int{5}, singleOutpointFetcher{})
	require.Error(t, err)
}
