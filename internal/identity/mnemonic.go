package identity

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// arkDerivationPath is this wallet's single BIP-44-shaped derivation path:
// m/86'/0'/0'/0/0, the standard Taproot (BIP-86) single-key slot, since an
// Ark identity needs exactly one signing key rather than a full HD tree.
var arkDerivationPath = [5]uint32{
	hdkeychain.HardenedKeyStart + 86,
	hdkeychain.HardenedKeyStart + 0,
	hdkeychain.HardenedKeyStart + 0,
	0,
	0,
}

// GenerateMnemonic generates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("identity: generating entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// FromMnemonic derives a single-key Identity from a BIP-39 mnemonic and
// optional passphrase.
func FromMnemonic(mnemonic, passphrase string) (*PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("identity: invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, passphrase)

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("identity: deriving master key: %w", err)
	}

	derived := master
	for _, step := range arkDerivationPath {
		derived, err = derived.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("identity: deriving key: %w", err)
		}
	}

	ecPriv, err := derived.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("identity: extracting private key: %w", err)
	}

	return FromPrivateKey(ecPriv), nil
}
