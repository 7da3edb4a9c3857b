package tree

import (
	"bytes"

	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/btcsuite/btcd/wire"
)

// feePerVByteFromRelayRate converts the server's minRelayFeeRate (sats/kvb,
// per spec.md §6) into sats/vB.
func feePerVByteFromRelayRate(minRelayFeeRateSatPerKvb uint64) uint64 {
	return minRelayFeeRateSatPerKvb / 1000
}

// approxNodeFee estimates the fee a tree-node transaction pays, per the open
// question in spec.md §9: the amounts declared in the node's own outputs
// plus the server's minRelayFeeRate. Since tree nodes are not yet witness-
// signed when validated (signing happens after SigningStart), the estimate
// uses the unsigned (stripped) size plus one taproot key-path witness — a
// single 64-byte Schnorr signature, discounted 4x — per spendable input.
func approxNodeFee(tx *wire.MsgTx, feePerVByte uint64) uint64 {
	const keySpendWitnessVBytes = 16 // (1 + 1 + 64) / 4, rounded down
	vsize := uint64(tx.SerializeSizeStripped()) + keySpendWitnessVBytes*uint64(len(tx.TxIn))
	return vsize * feePerVByte
}

// Options configures the fee convention and registered-output set used by
// ValidateVtxoTree/ValidateConnectorsTree.
type Options struct {
	// MinRelayFeeRateSatPerKvb is the server's declared relay fee rate, in
	// sats/kvb, used to approximate each node's expected fee.
	MinRelayFeeRateSatPerKvb uint64

	// RegisteredOutputs is the set of output scripts the caller registered
	// for this settlement (hex-independent; raw scriptPubKey bytes) that
	// every vtxo-tree leaf must pay to.
	RegisteredOutputs [][]byte

	// ConnectorLeafScript is the script every connector leaf output must
	// pay; the caller takes it from the finalization event's connectorScript.
	ConnectorLeafScript []byte
}

func scriptInSet(script []byte, set [][]byte) bool {
	for _, s := range set {
		if bytes.Equal(s, script) {
			return true
		}
	}
	return false
}

// ValidateVtxoTree checks the vtxo tree returned by the server against
// spec.md §4.3 rules 1-4: roots spend the settlement tx's shared output
// (index 0), every internal node's outputs balance against its input minus
// the node's fee (anchor outputs excluded), every internal output pays the
// sweep script, and every leaf output is one of the registered outputs.
func ValidateVtxoTree(settlementTx *wire.MsgTx, t *Tree, sweepTapRoot []byte, opts Options) error {
	if len(settlementTx.TxOut) == 0 {
		return invalid(0, 0, "settlement transaction has no outputs")
	}
	sharedOutput := settlementTx.TxOut[0]
	settlementTxid := settlementTx.TxHash()

	feePerVByte := feePerVByteFromRelayRate(opts.MinRelayFeeRateSatPerKvb)
	sweepScript := arkscript.SweepOutputScript(sweepTapRoot)

	for _, root := range t.Levels[0] {
		if root.HasParent {
			return invalid(0, root.LevelIndex, "root node must not declare a parent")
		}
		in := root.Packet.UnsignedTx.TxIn[0]
		if in.PreviousOutPoint.Hash != settlementTxid || in.PreviousOutPoint.Index != 0 {
			return invalid(0, root.LevelIndex, "root input does not reference the settlement transaction's shared output")
		}
	}

	return t.Walk(func(n *Node) error {
		tx := n.Packet.UnsignedTx

		if n.Level > 0 {
			parent, ok := t.Parent(n)
			if !ok {
				return invalid(n.Level, n.LevelIndex, "parent node %s not found in previous level", n.ParentTxid)
			}
			if parent.Level != n.Level-1 {
				return invalid(n.Level, n.LevelIndex, "parent node is not in the immediately preceding level")
			}
			in := tx.TxIn[0]
			if in.PreviousOutPoint.Hash != parent.Txid {
				return invalid(n.Level, n.LevelIndex, "input does not reference declared parent %s", n.ParentTxid)
			}
			if int(in.PreviousOutPoint.Index) >= len(parent.Packet.UnsignedTx.TxOut) {
				return invalid(n.Level, n.LevelIndex, "input references out-of-range parent output %d", in.PreviousOutPoint.Index)
			}
		}

		if n.IsLeaf {
			if len(tx.TxOut) == 0 {
				return invalid(n.Level, n.LevelIndex, "leaf node has no outputs")
			}
			for i, out := range tx.TxOut {
				if arkscript.IsAnchorScript(out.PkScript) {
					continue
				}
				if !scriptInSet(out.PkScript, opts.RegisteredOutputs) {
					return invalid(n.Level, n.LevelIndex, "leaf output %d does not match any registered output", i)
				}
			}
			return nil
		}

		var inputAmount int64
		if n.Level == 0 {
			inputAmount = sharedOutput.Value
		} else {
			parent, _ := t.Parent(n)
			idx := tx.TxIn[0].PreviousOutPoint.Index
			inputAmount = parent.Packet.UnsignedTx.TxOut[idx].Value
		}

		var outputTotal int64
		for i, out := range tx.TxOut {
			if arkscript.IsAnchorScript(out.PkScript) {
				if out.Value != 0 {
					return invalid(n.Level, n.LevelIndex, "anchor output %d must carry 0 value, got %d", i, out.Value)
				}
				continue
			}
			if !bytes.Equal(out.PkScript, sweepScript) {
				return invalid(n.Level, n.LevelIndex, "internal output %d does not pay the sweep script", i)
			}
			outputTotal += out.Value
		}

		fee := int64(approxNodeFee(tx, feePerVByte))
		if outputTotal+fee != inputAmount {
			return invalid(n.Level, n.LevelIndex, "outputs (%d) + fee (%d) != input (%d)", outputTotal, fee, inputAmount)
		}
		return nil
	})
}

// ValidateConnectorsTree applies rules 1-3 of spec.md §4.3 using the
// connector root as the settlement transaction's second output (index 1),
// and additionally requires every leaf to pay the server's declared
// connector script.
func ValidateConnectorsTree(settlementTx *wire.MsgTx, t *Tree, sweepTapRoot []byte, opts Options) error {
	if len(settlementTx.TxOut) < 2 {
		return invalid(0, 0, "settlement transaction has no connector root output")
	}
	connectorRoot := settlementTx.TxOut[1]
	settlementTxid := settlementTx.TxHash()

	feePerVByte := feePerVByteFromRelayRate(opts.MinRelayFeeRateSatPerKvb)
	sweepScript := arkscript.SweepOutputScript(sweepTapRoot)

	for _, root := range t.Levels[0] {
		if root.HasParent {
			return invalid(0, root.LevelIndex, "root node must not declare a parent")
		}
		in := root.Packet.UnsignedTx.TxIn[0]
		if in.PreviousOutPoint.Hash != settlementTxid || in.PreviousOutPoint.Index != 1 {
			return invalid(0, root.LevelIndex, "root input does not reference the settlement transaction's connector output")
		}
	}

	return t.Walk(func(n *Node) error {
		tx := n.Packet.UnsignedTx

		if n.Level > 0 {
			parent, ok := t.Parent(n)
			if !ok {
				return invalid(n.Level, n.LevelIndex, "parent node %s not found in previous level", n.ParentTxid)
			}
			in := tx.TxIn[0]
			if in.PreviousOutPoint.Hash != parent.Txid {
				return invalid(n.Level, n.LevelIndex, "input does not reference declared parent %s", n.ParentTxid)
			}
		}

		if n.IsLeaf {
			for i, out := range tx.TxOut {
				if arkscript.IsAnchorScript(out.PkScript) {
					continue
				}
				if !bytes.Equal(out.PkScript, opts.ConnectorLeafScript) {
					return invalid(n.Level, n.LevelIndex, "connector leaf output %d is not spendable by the server's declared script", i)
				}
			}
			return nil
		}

		var inputAmount int64
		if n.Level == 0 {
			inputAmount = connectorRoot.Value
		} else {
			parent, _ := t.Parent(n)
			idx := tx.TxIn[0].PreviousOutPoint.Index
			inputAmount = parent.Packet.UnsignedTx.TxOut[idx].Value
		}

		var outputTotal int64
		for i, out := range tx.TxOut {
			if arkscript.IsAnchorScript(out.PkScript) {
				if out.Value != 0 {
					return invalid(n.Level, n.LevelIndex, "anchor output %d must carry 0 value, got %d", i, out.Value)
				}
				continue
			}
			if !bytes.Equal(out.PkScript, sweepScript) {
				return invalid(n.Level, n.LevelIndex, "internal output %d does not pay the sweep script", i)
			}
			outputTotal += out.Value
		}

		fee := int64(approxNodeFee(tx, feePerVByte))
		if outputTotal+fee != inputAmount {
			return invalid(n.Level, n.LevelIndex, "outputs (%d) + fee (%d) != input (%d)", outputTotal, fee, inputAmount)
		}
		return nil
	})
}
