package arkscript

import (
	"fmt"

	"github.com/arkwallet/arkwalletd/pkg/helpers"
	"github.com/btcsuite/btcd/btcutil"
)

// GeneratePreimage creates a fresh 32-byte VHTLC secret and its HASH160,
// the hash a claim leaf's OP_HASH160 ... OP_EQUALVERIFY checks against
// (spec.md §3's PreimageHash).
func GeneratePreimage() (preimage []byte, hash [20]byte, err error) {
	preimage, err = helpers.GenerateSecureRandom(32)
	if err != nil {
		return nil, hash, fmt.Errorf("arkscript: generating preimage: %w", err)
	}
	copy(hash[:], btcutil.Hash160(preimage))
	return preimage, hash, nil
}

// VerifyPreimage reports whether preimage hashes to want, in constant
// time so a claim attempt can't be timed to leak the correct secret.
func VerifyPreimage(preimage []byte, want [20]byte) bool {
	if len(preimage) == 0 {
		return false
	}
	return helpers.ConstantTimeCompare(btcutil.Hash160(preimage), want[:])
}
