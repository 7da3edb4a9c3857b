package arkscript

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func randXOnly(t *testing.T) XOnlyPubKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return XOnlyFromPubKey(priv.PubKey())
}

func TestMultisigScriptOrdering(t *testing.T) {
	a, b, c := randXOnly(t), randXOnly(t), randXOnly(t)

	script, err := MultisigScript(a, b, c)
	require.NoError(t, err)

	disasm, err := txscript.DisasmString(script)
	require.NoError(t, err)
	require.Contains(t, disasm, "OP_CHECKSIGVERIFY OP_CHECKSIGVERIFY OP_CHECKSIG")
}

func TestMultisigScriptRequiresAKey(t *testing.T) {
	_, err := MultisigScript()
	require.Error(t, err)
}

func TestCSVMultisigScriptEmbedsDelay(t *testing.T) {
	owner := randXOnly(t)
	script, err := CSVMultisigScript(RelativeLocktime{Unit: DelayBlocks, Value: 144}, owner)
	require.NoError(t, err)

	disasm, err := txscript.DisasmString(script)
	require.NoError(t, err)
	require.Contains(t, disasm, "OP_CHECKSEQUENCEVERIFY")
	require.Contains(t, disasm, "OP_CHECKSIG")
}

func TestCLTVMultisigScriptEmbedsLocktime(t *testing.T) {
	owner := randXOnly(t)
	script, err := CLTVMultisigScript(900_000, owner)
	require.NoError(t, err)

	disasm, err := txscript.DisasmString(script)
	require.NoError(t, err)
	require.Contains(t, disasm, "OP_CHECKLOCKTIMEVERIFY")
}

func TestHTLCGateMultisigScript(t *testing.T) {
	receiver, server := randXOnly(t), randXOnly(t)
	var hash [20]byte
	copy(hash[:], []byte("01234567890123456789"))

	script, err := HTLCGateMultisigScript(hash, receiver, server)
	require.NoError(t, err)

	disasm, err := txscript.DisasmString(script)
	require.NoError(t, err)
	require.Contains(t, disasm, "OP_HASH160")
	require.Contains(t, disasm, "OP_EQUALVERIFY")
}
