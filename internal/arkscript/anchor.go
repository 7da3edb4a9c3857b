package arkscript

import (
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// AnchorScript is the well-known Pay-to-Anchor (P2A) output script used as
// the second output of a forfeit transaction and recognised as the
// fee-exempt output in vtxo-tree node validation: `OP_1 0x02 0x4e73`.
var AnchorScript = []byte{0x51, 0x02, 0x4e, 0x73}

// IsAnchorScript reports whether script is the canonical P2A anchor.
func IsAnchorScript(script []byte) bool {
	if len(script) != len(AnchorScript) {
		return false
	}
	for i := range script {
		if script[i] != AnchorScript[i] {
			return false
		}
	}
	return true
}

// SweepOutputScript returns the Taproot output script every vtxo-tree
// internal node output must share: the unspendable internal key tweaked
// with sweepTapRoot as the tree's single leaf hash.
func SweepOutputScript(sweepTapRoot []byte) []byte {
	outputKey := txscript.ComputeTaprootOutputKey(UnspendableInternalKey(), sweepTapRoot)
	xOnly := schnorr.SerializePubKey(outputKey)
	script := make([]byte, 34)
	script[0] = txscript.OP_1
	script[1] = txscript.OP_DATA_32
	copy(script[2:], xOnly)
	return script
}
