// Package forfeit builds and signs the forfeit transaction: the two-input
// transaction that authorises the Ark server to redeem its connector
// output in exchange for one of the client's vtxos (spec.md §4.5).
package forfeit

import (
	"fmt"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/identity"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// txVersion is the forfeit transaction's nVersion, per spec.md §4.5.
const txVersion = 3

// sequenceFinal is the default, non-locktime-bearing sequence.
const sequenceFinal = wire.MaxTxInSequenceNum

// sequenceLocktimeEnabled is the sequence input 1 carries when an absolute
// locktime is set, enabling nLockTime enforcement per BIP-65/68 semantics.
const sequenceLocktimeEnabled = wire.MaxTxInSequenceNum - 1

// Params describes one forfeit transaction, spec.md §4.5.
type Params struct {
	ConnectorOutpoint ark.Outpoint
	ConnectorAmount   uint64
	ConnectorScript   []byte

	VtxoOutpoint ark.Outpoint
	VtxoAmount   uint64
	VtxoScript   []byte

	// ForfeitLeaf is the vtxo's forfeit tapscript leaf, used to annotate
	// input 1 so Identity.Sign knows which script path to sign under.
	ForfeitLeaf arkscript.TapscriptLeaf

	ServerScript []byte
	FeeAmount    uint64

	// Locktime is optional; zero means none.
	Locktime uint32
}

// Build assembles the unsigned forfeit PSBT of spec.md §4.5: input 0 is the
// connector (left for the server to sign), input 1 is the vtxo (annotated
// with its forfeit leaf so the caller's Identity can sign it), output 0
// pays the server, output 1 is the canonical P2A ephemeral anchor.
func Build(p Params) (*psbt.Packet, error) {
	if p.VtxoAmount+p.ConnectorAmount < p.FeeAmount {
		return nil, fmt.Errorf("forfeit: fee %d exceeds connector+vtxo amount %d", p.FeeAmount, p.VtxoAmount+p.ConnectorAmount)
	}

	tx := wire.NewMsgTx(txVersion)
	if p.Locktime != 0 {
		tx.LockTime = p.Locktime
	}

	connectorTxid, err := chainhash.NewHashFromStr(p.ConnectorOutpoint.Txid)
	if err != nil {
		return nil, fmt.Errorf("forfeit: parsing connector txid: %w", err)
	}
	vtxoTxid, err := chainhash.NewHashFromStr(p.VtxoOutpoint.Txid)
	if err != nil {
		return nil, fmt.Errorf("forfeit: parsing vtxo txid: %w", err)
	}

	connectorIn := wire.NewTxIn(wire.NewOutPoint(connectorTxid, p.ConnectorOutpoint.Vout), nil, nil)
	connectorIn.Sequence = sequenceFinal
	tx.AddTxIn(connectorIn)

	vtxoIn := wire.NewTxIn(wire.NewOutPoint(vtxoTxid, p.VtxoOutpoint.Vout), nil, nil)
	vtxoIn.Sequence = sequenceFinal
	if p.Locktime != 0 {
		vtxoIn.Sequence = sequenceLocktimeEnabled
	}
	tx.AddTxIn(vtxoIn)

	serverOutputAmount := p.VtxoAmount + p.ConnectorAmount - p.FeeAmount
	tx.AddTxOut(wire.NewTxOut(int64(serverOutputAmount), p.ServerScript))
	tx.AddTxOut(wire.NewTxOut(0, arkscript.AnchorScript))

	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("forfeit: building psbt: %w", err)
	}

	pkt.Inputs[0].WitnessUtxo = &wire.TxOut{Value: int64(p.ConnectorAmount), PkScript: p.ConnectorScript}

	pkt.Inputs[1].WitnessUtxo = &wire.TxOut{Value: int64(p.VtxoAmount), PkScript: p.VtxoScript}
	pkt.Inputs[1].SighashType = txscript.SigHashDefault
	pkt.Inputs[1].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: p.ForfeitLeaf.ControlBlock,
		Script:       p.ForfeitLeaf.Script,
		LeafVersion:  p.ForfeitLeaf.Version,
	}}

	return pkt, nil
}

// Sign signs input 1 (the vtxo input) under its forfeit leaf; input 0 (the
// connector) is left untouched for the server to sign.
func Sign(id identity.Identity, pkt *psbt.Packet) (*psbt.Packet, error) {
	return id.Sign(pkt, []int{1}, psbtPrevOutFetcher{pkt})
}

// psbtPrevOutFetcher resolves prevouts for a forfeit PSBT's own two inputs
// from their WitnessUtxo annotations, satisfying tree.PrevOutputFetcher.
type psbtPrevOutFetcher struct {
	pkt *psbt.Packet
}

func (f psbtPrevOutFetcher) FetchPrevOutput(txid chainhash.Hash, vout uint32) (int64, []byte, bool) {
	for i, in := range f.pkt.UnsignedTx.TxIn {
		if in.PreviousOutPoint.Hash == txid && in.PreviousOutPoint.Index == vout {
			utxo := f.pkt.Inputs[i].WitnessUtxo
			if utxo == nil {
				return 0, nil, false
			}
			return utxo.Value, utxo.PkScript, true
		}
	}
	return 0, nil, false
}

var _ tree.PrevOutputFetcher = psbtPrevOutFetcher{}
