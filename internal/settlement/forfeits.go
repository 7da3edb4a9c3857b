package settlement

import (
	"fmt"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/forfeit"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// forfeitFeeVBytes approximates the weight-unit accounting of spec.md
// §4.6: a key-spend input, a tapscript input, and a P2WPKH output.
const forfeitFeeVBytes = 57 + 70 + 31

func estimateForfeitFee(feeRateSatPerKvb uint64) uint64 {
	feeRateSatPerVByte := feeRateSatPerKvb / 1000
	if feeRateSatPerVByte == 0 {
		feeRateSatPerVByte = 1
	}
	return forfeitFeeVBytes * feeRateSatPerVByte
}

// buildForfeits builds, signs, and encodes one forfeit transaction per
// vtxo input, and co-signs the settlement PSBT for each boarding input
// found inside it by (txid, vout), per spec.md §4.6's forfeit selection
// rule. It returns the base64-encoded forfeit transactions and, if any
// boarding input was signed, the mutated settlement packet.
func (e *Engine) buildForfeits(params Params, connectorsTree *tree.Tree, settlementTx *psbt.Packet, feeRateSatPerKvb uint64) ([]string, *psbt.Packet, error) {
	connectorLeaves := connectorsTree.Leaves()

	var (
		forfeitTxs       []string
		connectorCursor  int
		touchedSettlement bool
	)

	fee := estimateForfeitFee(feeRateSatPerKvb)

	for _, in := range params.Inputs {
		switch {
		case in.IsNote():
			continue

		case in.Vtxo != nil:
			if connectorCursor >= len(connectorLeaves) {
				return nil, nil, fmt.Errorf("no connector available for vtxo %s", in.Vtxo.Outpoint)
			}
			connectorLeaf := connectorLeaves[connectorCursor]
			connectorCursor++

			connectorOutpoint, connectorAmount, connectorScript, err := connectorOutputOf(connectorLeaf)
			if err != nil {
				return nil, nil, err
			}

			forfeitLeaf, err := ForfeitLeaf(in.Vtxo.Tapscripts)
			if err != nil {
				return nil, nil, fmt.Errorf("rebuilding forfeit leaf for vtxo %s: %w", in.Vtxo.Outpoint, err)
			}

			pkt, err := forfeit.Build(forfeit.Params{
				ConnectorOutpoint: connectorOutpoint,
				ConnectorAmount:   connectorAmount,
				ConnectorScript:   connectorScript,
				VtxoOutpoint:      in.Vtxo.Outpoint,
				VtxoAmount:        in.Vtxo.Value,
				VtxoScript:        in.Vtxo.Script,
				ForfeitLeaf:       forfeitLeaf,
				ServerScript:      params.ServerForfeitScript,
				FeeAmount:         fee,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("building forfeit for vtxo %s: %w", in.Vtxo.Outpoint, err)
			}

			signed, err := forfeit.Sign(e.identity, pkt)
			if err != nil {
				return nil, nil, fmt.Errorf("signing forfeit for vtxo %s: %w", in.Vtxo.Outpoint, err)
			}

			b64, err := signed.B64Encode()
			if err != nil {
				return nil, nil, fmt.Errorf("encoding forfeit for vtxo %s: %w", in.Vtxo.Outpoint, err)
			}
			forfeitTxs = append(forfeitTxs, b64)

		case in.Boarding != nil:
			idx, err := findSettlementInput(settlementTx, in.Boarding.Outpoint)
			if err != nil {
				return nil, nil, err
			}

			forfeitLeaf, err := ForfeitLeaf(in.Boarding.Tapscripts)
			if err != nil {
				return nil, nil, fmt.Errorf("rebuilding forfeit leaf for boarding utxo %s: %w", in.Boarding.Outpoint, err)
			}

			settlementTx.Inputs[idx].WitnessUtxo = &wire.TxOut{Value: int64(in.Boarding.Value), PkScript: in.Boarding.Script}
			settlementTx.Inputs[idx].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
				ControlBlock: forfeitLeaf.ControlBlock,
				Script:       forfeitLeaf.Script,
				LeafVersion:  forfeitLeaf.Version,
			}}

			fetcher := settlementPrevOutFetcher{pkt: settlementTx}
			if _, err := e.identity.Sign(settlementTx, []int{idx}, fetcher); err != nil {
				return nil, nil, fmt.Errorf("signing boarding input %s: %w", in.Boarding.Outpoint, err)
			}
			touchedSettlement = true
		}
	}

	if !touchedSettlement {
		return forfeitTxs, nil, nil
	}
	return forfeitTxs, settlementTx, nil
}

func connectorOutputOf(leaf *tree.Node) (ark.Outpoint, uint64, []byte, error) {
	tx := leaf.Packet.UnsignedTx
	for i, out := range tx.TxOut {
		if arkscript.IsAnchorScript(out.PkScript) {
			continue
		}
		return ark.Outpoint{Txid: leaf.Txid.String(), Vout: uint32(i)}, uint64(out.Value), out.PkScript, nil
	}
	return ark.Outpoint{}, 0, nil, fmt.Errorf("connector leaf %s has no spendable output", leaf.Txid)
}

func findSettlementInput(pkt *psbt.Packet, outpoint ark.Outpoint) (int, error) {
	txid, err := chainhash.NewHashFromStr(outpoint.Txid)
	if err != nil {
		return 0, fmt.Errorf("parsing outpoint %s: %w", outpoint, err)
	}
	for i, in := range pkt.UnsignedTx.TxIn {
		if in.PreviousOutPoint.Hash == *txid && in.PreviousOutPoint.Index == outpoint.Vout {
			return i, nil
		}
	}
	return 0, fmt.Errorf("settlement transaction has no input for boarding outpoint %s", outpoint)
}

// settlementPrevOutFetcher resolves prevouts for the settlement PSBT's own
// inputs from their WitnessUtxo annotations, satisfying
// tree.PrevOutputFetcher for boarding-input signing.
type settlementPrevOutFetcher struct {
	pkt *psbt.Packet
}

func (f settlementPrevOutFetcher) FetchPrevOutput(txid chainhash.Hash, vout uint32) (int64, []byte, bool) {
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

var _ tree.PrevOutputFetcher = settlementPrevOutFetcher{}
