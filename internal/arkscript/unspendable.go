// Package arkscript builds and recognises the Bitcoin scripts the Ark
// protocol uses: CSV delay, CLTV lock, N-of-N multisig, HTLC gates, and the
// composite Taproot trees assembled from them for vtxos, boarding UTXOs, and
// VHTLCs.
package arkscript

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
)

// unspendableXHex is the well-known NUMS point's x-coordinate: the
// generator's x-coordinate run through a hash-to-curve, so nobody holds its
// discrete log. It is the BIP-341 internal key for every Ark Taproot
// output, so only script paths (never a key path) can ever spend.
const unspendableXHex = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

var unspendableKey *btcec.PublicKey

func init() {
	x, err := hex.DecodeString(unspendableXHex)
	if err != nil || len(x) != 32 {
		panic("arkscript: malformed unspendable key constant")
	}
	key, err := btcec.ParsePubKey(append([]byte{0x02}, x...))
	if err != nil {
		panic("arkscript: unspendable key constant is not on-curve: " + err.Error())
	}
	unspendableKey = key
}

// UnspendableInternalKey returns the BIP-341 NUMS point used as the internal
// key for every Ark Taproot tree.
func UnspendableInternalKey() *btcec.PublicKey {
	return unspendableKey
}
