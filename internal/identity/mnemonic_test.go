package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

func TestGenerateMnemonicIsValid(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)
	require.Len(t, strings.Fields(mnemonic), 24)
	require.True(t, bip39.IsMnemonicValid(mnemonic))
}

func TestFromMnemonicIsDeterministic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)

	first, err := FromMnemonic(mnemonic, "")
	require.NoError(t, err)
	second, err := FromMnemonic(mnemonic, "")
	require.NoError(t, err)

	require.Equal(t, first.XOnlyPublicKey(), second.XOnlyPublicKey())
}

func TestFromMnemonicPassphraseChangesKey(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)

	plain, err := FromMnemonic(mnemonic, "")
	require.NoError(t, err)
	withPass, err := FromMnemonic(mnemonic, "extra-secret")
	require.NoError(t, err)

	require.NotEqual(t, plain.XOnlyPublicKey(), withPass.XOnlyPublicKey())
}

func TestFromMnemonicRejectsInvalidMnemonic(t *testing.T) {
	_, err := FromMnemonic("not a valid mnemonic at all", "")
	require.Error(t, err)
}
