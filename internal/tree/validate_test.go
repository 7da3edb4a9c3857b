package tree

import (
	"testing"

	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var sweepTapRoot = make([]byte, 32)

func registeredScript() []byte {
	script := make([]byte, 34)
	script[0] = 0x51
	script[1] = 0x20
	return script
}

// buildInternalNode constructs a node transaction spending (parentHash,
// parentVout) for inputAmount, paying the sweep script minus its
// approximate fee, matching ValidateVtxoTree/ValidateConnectorsTree's
// balance rule.
func buildInternalNode(t *testing.T, parentHash chainhash.Hash, parentVout uint32, inputAmount int64, opts Options) *Node {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&parentHash, parentVout), nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, arkscript.SweepOutputScript(sweepTapRoot)))

	feePerVByte := feePerVByteFromRelayRate(opts.MinRelayFeeRateSatPerKvb)
	fee := int64(approxNodeFee(tx, feePerVByte))
	tx.TxOut[0].Value = inputAmount - fee

	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	return &Node{Txid: tx.TxHash(), Packet: pkt}
}

func buildLeafNode(t *testing.T, parentHash chainhash.Hash, parentVout uint32, outScript []byte) *Node {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&parentHash, parentVout), nil, nil))
	tx.AddTxOut(wire.NewTxOut(500, outScript))
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	return &Node{Txid: tx.TxHash(), Packet: pkt, ParentTxid: parentHash, HasParent: true, IsLeaf: true}
}

func TestValidateVtxoTreeAcceptsBalancedTwoLevelTree(t *testing.T) {
	opts := Options{MinRelayFeeRateSatPerKvb: 1000, RegisteredOutputs: [][]byte{registeredScript()}}

	settlementTx := wire.NewMsgTx(2)
	settlementTx.AddTxOut(wire.NewTxOut(100_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTx.AddTxOut(wire.NewTxOut(5_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTxid := settlementTx.TxHash()

	root := buildInternalNode(t, settlementTxid, 0, 100_000, opts)
	leaf := buildLeafNode(t, root.Txid, 0, registeredScript())

	tr := New([][]*Node{{root}, {leaf}})

	require.NoError(t, ValidateVtxoTree(settlementTx, tr, sweepTapRoot, opts))
}

func TestValidateVtxoTreeRejectsUnregisteredLeafOutput(t *testing.T) {
	opts := Options{MinRelayFeeRateSatPerKvb: 1000, RegisteredOutputs: [][]byte{registeredScript()}}

	settlementTx := wire.NewMsgTx(2)
	settlementTx.AddTxOut(wire.NewTxOut(100_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTxid := settlementTx.TxHash()

	root := buildInternalNode(t, settlementTxid, 0, 100_000, opts)
	other := make([]byte, 34)
	other[0] = 0x51
	other[1] = 0x20
	other[2] = 0xff
	leaf := buildLeafNode(t, root.Txid, 0, other)

	tr := New([][]*Node{{root}, {leaf}})

	err := ValidateVtxoTree(settlementTx, tr, sweepTapRoot, opts)
	require.Error(t, err)
	var invalidErr *InvalidTreeStructure
	require.ErrorAs(t, err, &invalidErr)
}

func TestValidateVtxoTreeRejectsRootWithDeclaredParent(t *testing.T) {
	opts := Options{MinRelayFeeRateSatPerKvb: 1000, RegisteredOutputs: [][]byte{registeredScript()}}

	settlementTx := wire.NewMsgTx(2)
	settlementTx.AddTxOut(wire.NewTxOut(100_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTxid := settlementTx.TxHash()

	root := buildInternalNode(t, settlementTxid, 0, 100_000, opts)
	root.HasParent = true
	root.ParentTxid = chainhash.Hash{0x01}

	tr := New([][]*Node{{root}})

	require.Error(t, ValidateVtxoTree(settlementTx, tr, sweepTapRoot, opts))
}

func TestValidateVtxoTreeRejectsRootNotSpendingSharedOutput(t *testing.T) {
	opts := Options{MinRelayFeeRateSatPerKvb: 1000, RegisteredOutputs: [][]byte{registeredScript()}}

	settlementTx := wire.NewMsgTx(2)
	settlementTx.AddTxOut(wire.NewTxOut(100_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTxid := settlementTx.TxHash()

	root := buildInternalNode(t, settlementTxid, 1, 100_000, opts)

	tr := New([][]*Node{{root}})

	require.Error(t, ValidateVtxoTree(settlementTx, tr, sweepTapRoot, opts))
}

func TestValidateConnectorsTreeRequiresConnectorRootOutput(t *testing.T) {
	opts := Options{MinRelayFeeRateSatPerKvb: 1000, ConnectorLeafScript: registeredScript()}

	settlementTx := wire.NewMsgTx(2)
	settlementTx.AddTxOut(wire.NewTxOut(100_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTxid := settlementTx.TxHash()

	root := buildInternalNode(t, settlementTxid, 1, 5_000, opts)
	tr := New([][]*Node{{root}})

	err := ValidateConnectorsTree(settlementTx, tr, sweepTapRoot, opts)
	require.Error(t, err)
}

func TestValidateConnectorsTreeAcceptsLeafPayingDeclaredScript(t *testing.T) {
	declared := registeredScript()
	opts := Options{MinRelayFeeRateSatPerKvb: 1000, ConnectorLeafScript: declared}

	settlementTx := wire.NewMsgTx(2)
	settlementTx.AddTxOut(wire.NewTxOut(100_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTx.AddTxOut(wire.NewTxOut(5_000, arkscript.SweepOutputScript(sweepTapRoot)))
	settlementTxid := settlementTx.TxHash()

	root := buildInternalNode(t, settlementTxid, 1, 5_000, opts)
	leaf := buildLeafNode(t, root.Txid, 0, declared)

	tr := New([][]*Node{{root}, {leaf}})

	require.NoError(t, ValidateConnectorsTree(settlementTx, tr, sweepTapRoot, opts))
}
