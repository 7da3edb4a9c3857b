// Package identity abstracts over a key holder: Schnorr signing for
// script-path spends, the x-only public key that names the holder in
// Ark scripts, and a MuSig2 tree-signing session factory for settlement
// participation (spec.md §4.7).
package identity

import (
	"fmt"

	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/musig"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Identity is the key-holder contract every settlement participant and
// every tapscript spend (forfeit, exit, VHTLC) signs through.
type Identity interface {
	// XOnlyPublicKey returns the holder's BIP-340 public key.
	XOnlyPublicKey() arkscript.XOnlyPubKey

	// Sign finalises Schnorr signatures for the given input indexes of p,
	// each under the single leaf script already annotated on that input
	// (p.Inputs[i].TaprootLeafScript), using prevouts to compute the
	// BIP-341 script-path sighash.
	Sign(p *psbt.Packet, inputIndexes []int, prevouts tree.PrevOutputFetcher) (*psbt.Packet, error)

	// NewSignerSession builds a fresh MuSig2 tree signing session scoped to
	// one settlement, keyed to this identity's cosigner secret.
	NewSignerSession(cosigners []*btcec.PublicKey, sweepTapRoot []byte, sharedOutputAmount uint64, nodeMessages [][]*chainhash.Hash) (*musig.Session, error)
}

// PrivateKey is the single-key Identity implementation: a wallet holding
// one secp256k1 key, used both as the script-path signing key and as the
// MuSig2 cosigner secret.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// FromPrivateKey wraps an existing secp256k1 private key as an Identity.
func FromPrivateKey(key *btcec.PrivateKey) *PrivateKey {
	return &PrivateKey{key: key}
}

func (p *PrivateKey) XOnlyPublicKey() arkscript.XOnlyPubKey {
	return arkscript.XOnlyFromPubKey(p.key.PubKey())
}

func (p *PrivateKey) Sign(pkt *psbt.Packet, inputIndexes []int, prevouts tree.PrevOutputFetcher) (*psbt.Packet, error) {
	tx := pkt.UnsignedTx
	fetcher := newFetcher(tx, prevouts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for _, idx := range inputIndexes {
		if idx < 0 || idx >= len(pkt.Inputs) {
			return nil, fmt.Errorf("identity: input index %d out of range", idx)
		}
		in := &pkt.Inputs[idx]
		if len(in.TaprootLeafScript) == 0 {
			return nil, fmt.Errorf("identity: input %d has no annotated leaf script to sign under", idx)
		}
		leaf := in.TaprootLeafScript[0]

		leafHash := txscript.NewBaseTapLeaf(leaf.Script).TapHash()
		sighash, err := txscript.CalcTapscriptSignaturehash(
			sigHashes, txscript.SigHashDefault, tx, idx, fetcher, leafHash,
		)
		if err != nil {
			return nil, fmt.Errorf("identity: computing sighash for input %d: %w", idx, err)
		}

		sig, err := schnorr.Sign(p.key, sighash)
		if err != nil {
			return nil, fmt.Errorf("identity: signing input %d: %w", idx, err)
		}

		witness, err := tree.SerializeFinalWitness(sig.Serialize(), leaf.Script, leaf.ControlBlock)
		if err != nil {
			return nil, fmt.Errorf("identity: serializing witness for input %d: %w", idx, err)
		}
		in.FinalScriptWitness = witness
	}

	return pkt, nil
}

func (p *PrivateKey) NewSignerSession(cosigners []*btcec.PublicKey, sweepTapRoot []byte, sharedOutputAmount uint64, nodeMessages [][]*chainhash.Hash) (*musig.Session, error) {
	return musig.NewSession(p.key, cosigners, sweepTapRoot, sharedOutputAmount, nodeMessages)
}

// fetcher adapts a tree.PrevOutputFetcher to txscript.PrevOutputFetcher for
// every input of tx, falling back to nothing for inputs the caller's
// fetcher doesn't recognise (which CalcTapscriptSignaturehash never reaches
// for SIGHASH_DEFAULT's single-input-sighash mode, but NewTxSigHashes scans
// every input up front for the prevout-aggregate hashes).
type fetcher struct {
	tx       *wire.MsgTx
	prevouts tree.PrevOutputFetcher
}

func newFetcher(tx *wire.MsgTx, prevouts tree.PrevOutputFetcher) *fetcher {
	return &fetcher{tx: tx, prevouts: prevouts}
}

func (f *fetcher) FetchPrevOutput(op wire.OutPoint) *wire.TxOut {
	value, script, ok := f.prevouts.FetchPrevOutput(op.Hash, op.Index)
	if !ok {
		return &wire.TxOut{}
	}
	return &wire.TxOut{Value: value, PkScript: script}
}
