package tree

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// sighashDefault computes the BIP-341 key-path sighash (SIGHASH_DEFAULT)
// over a node transaction's single input, the message every cosigner signs
// over during the tree signing session.
func sighashDefault(p *psbt.Packet, prevouts PrevOutputFetcher) (*chainhash.Hash, error) {
	tx := p.UnsignedTx
	if len(tx.TxIn) != 1 {
		return nil, fmt.Errorf("tree: node transaction %s has %d inputs, want 1", tx.TxHash(), len(tx.TxIn))
	}

	fetcher := &nodeInputFetcher{fetcher: prevouts}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	hash, err := txscript.CalcTaprootSignatureHash(
		sigHashes, txscript.SigHashDefault, tx, 0, fetcher,
	)
	if err != nil {
		return nil, err
	}

	var out chainhash.Hash
	copy(out[:], hash)
	return &out, nil
}

// nodeInputFetcher adapts PrevOutputFetcher to txscript.PrevOutputFetcher
// for the single input every tree node spends.
type nodeInputFetcher struct {
	fetcher PrevOutputFetcher
}

func (f *nodeInputFetcher) FetchPrevOutput(op wire.OutPoint) *wire.TxOut {
	value, script, ok := f.fetcher.FetchPrevOutput(op.Hash, op.Index)
	if !ok {
		return &wire.TxOut{}
	}
	return &wire.TxOut{Value: value, PkScript: script}
}
