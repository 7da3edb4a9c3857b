package arkscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// TapLeafVersion is the leaf version every Ark tapscript leaf is tagged
// with.
const TapLeafVersion = txscript.BaseLeafVersion // 0xc0

// XOnlyPubKey is a BIP-340 x-only public key: 32 bytes, no parity byte.
type XOnlyPubKey [32]byte

// Bytes returns the 32-byte serialization.
func (k XOnlyPubKey) Bytes() []byte { return k[:] }

// MultisigScript builds `<pk_1> OP_CHECKSIGVERIFY ... <pk_{n-1}>
// OP_CHECKSIGVERIFY <pk_n> OP_CHECKSIG`, an N-of-N script requiring every
// listed key to sign, in the order given.
func MultisigScript(pubKeys ...XOnlyPubKey) ([]byte, error) {
	if len(pubKeys) == 0 {
		return nil, fmt.Errorf("arkscript: multisig script needs at least one key")
	}

	builder := txscript.NewScriptBuilder()
	for i, pk := range pubKeys {
		builder.AddData(pk.Bytes())
		if i == len(pubKeys)-1 {
			builder.AddOp(txscript.OP_CHECKSIG)
		} else {
			builder.AddOp(txscript.OP_CHECKSIGVERIFY)
		}
	}
	return builder.Script()
}

// CSVMultisigScript builds `<delay> OP_CHECKSEQUENCEVERIFY OP_DROP
// <multisig...>` — spendable only once the relative delay has elapsed,
// under an N-of-N multisig.
func CSVMultisigScript(delay RelativeLocktime, pubKeys ...XOnlyPubKey) ([]byte, error) {
	seq, err := delay.Encode()
	if err != nil {
		return nil, err
	}

	multisig, err := MultisigScript(pubKeys...)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(seq))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	script, err := builder.Script()
	if err != nil {
		return nil, err
	}
	return append(script, multisig...), nil
}

// CLTVMultisigScript builds `<locktime> OP_CHECKLOCKTIMEVERIFY OP_DROP
// <multisig...>` — spendable only once the absolute locktime has passed,
// under an N-of-N multisig.
func CLTVMultisigScript(locktime uint32, pubKeys ...XOnlyPubKey) ([]byte, error) {
	multisig, err := MultisigScript(pubKeys...)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(locktime))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	script, err := builder.Script()
	if err != nil {
		return nil, err
	}
	return append(script, multisig...), nil
}

// HTLCGateMultisigScript builds `OP_HASH160 <preimageHash:20>
// OP_EQUALVERIFY <multisig...>` — the preimage gate shared by every VHTLC
// claim-side leaf.
func HTLCGateMultisigScript(preimageHash [20]byte, pubKeys ...XOnlyPubKey) ([]byte, error) {
	multisig, err := MultisigScript(pubKeys...)
	if err != nil {
		return nil, err
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(preimageHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	script, err := builder.Script()
	if err != nil {
		return nil, err
	}
	return append(script, multisig...), nil
}

// XOnlyFromPubKey converts a full public key to its x-only (BIP-340) form.
func XOnlyFromPubKey(pub *btcec.PublicKey) XOnlyPubKey {
	var out XOnlyPubKey
	copy(out[:], schnorr.SerializePubKey(pub))
	return out
}
