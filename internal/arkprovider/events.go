package arkprovider

import (
	"encoding/json"
	"fmt"
)

// TreeNodeWire is one node of a vtxo/connectors tree as the server sends
// it: a flat, level-tagged list the client groups into internal/tree.Tree.
type TreeNodeWire struct {
	Txid       string `json:"txid"`
	Psbt       string `json:"psbt"` // base64
	ParentTxid string `json:"parentTxid,omitempty"`
	Level      int    `json:"level"`
	LevelIndex int    `json:"levelIndex"`
	IsLeaf     bool   `json:"isLeaf"`
}

// BatchStartedData announces a new round with its request id.
type BatchStartedData struct {
	RoundID string `json:"roundId"`
}

// RoundSigningData is the SigningStart trigger of spec.md §4.6: the
// unsigned settlement transaction, the vtxo tree to sign, the cosigner set,
// and the sweep tapscript root every internal node output is tweaked with.
type RoundSigningData struct {
	UnsignedSettlementTx string         `json:"unsignedRoundTx"` // base64 psbt
	CosignersPublicKeys  []string       `json:"cosignersPubkeys"`
	VtxoTree             []TreeNodeWire `json:"vtxoTree"`
	SweepTapTreeRoot     string         `json:"sweepTapTreeRoot"` // hex
	SharedOutputAmount   uint64         `json:"sharedOutputAmount"`
	MinRelayFeeRate      uint64         `json:"minRelayFeeRate"` // sats/kvb
}

// RoundSigningNoncesGeneratedData is the SigningNoncesGenerated trigger:
// the server's per-node aggregated nonce matrix.
type RoundSigningNoncesGeneratedData struct {
	TreeNonces []byte `json:"treeNonces"`
}

// RoundFinalizationData is the Finalization trigger: the connectors tree
// and the settlement PSBT, now carrying the boarding-input slots the
// engine must co-sign.
type RoundFinalizationData struct {
	ConnectorsTree    []TreeNodeWire `json:"connectorsTree"`
	ConnectorScript   string         `json:"connectorScript"` // hex scriptPubKey
	SettlementTx      string         `json:"roundTx"`         // base64 psbt
	MinRelayFeeRate   uint64         `json:"minRelayFeeRate"`
}

// RoundFinalizedData is the Finalized trigger: the broadcast round txid.
type RoundFinalizedData struct {
	RoundTxid string `json:"roundTxid"`
}

// RoundFailedData is the Failed trigger.
type RoundFailedData struct {
	Reason string `json:"reason"`
}

// BatchTreeData carries an incremental vtxo-tree update, independent of
// RoundSigningData's embedded copy. The engine does not act on this event:
// it builds the vtxo tree from RoundSigningData's embedded copy only.
type BatchTreeData struct {
	Tree []TreeNodeWire `json:"tree"`
}

// BatchTreeSignatureData carries one cosigner's partial signature for one
// tree node, used by servers that distribute signatures incrementally
// rather than only in the final matrix.
type BatchTreeSignatureData struct {
	Txid      string `json:"txid"`
	Signature string `json:"signature"` // hex
}

// Event is the tagged union of spec.md §6: exactly one field is non-nil.
type Event struct {
	BatchStarted               *BatchStartedData
	RoundSigning                *RoundSigningData
	RoundSigningNoncesGenerated *RoundSigningNoncesGeneratedData
	RoundFinalization           *RoundFinalizationData
	RoundFinalized              *RoundFinalizedData
	RoundFailed                 *RoundFailedData
	BatchTree                   *BatchTreeData
	BatchTreeSignature          *BatchTreeSignatureData
}

type eventEnvelope struct {
	Result struct {
		BatchStarted                *BatchStartedData                `json:"batchStarted,omitempty"`
		RoundSigning                *RoundSigningData                `json:"roundSigning,omitempty"`
		RoundSigningNoncesGenerated *RoundSigningNoncesGeneratedData `json:"roundSigningNoncesGenerated,omitempty"`
		RoundFinalization           *RoundFinalizationData           `json:"roundFinalization,omitempty"`
		RoundFinalized              *RoundFinalizedData              `json:"roundFinalized,omitempty"`
		RoundFailed                 *RoundFailedData                 `json:"roundFailed,omitempty"`
		BatchTree                   *BatchTreeData                   `json:"batchTree,omitempty"`
		BatchTreeSignature          *BatchTreeSignatureData          `json:"batchTreeSignature,omitempty"`
	} `json:"result"`
}

// ParseEventLine decodes one newline-delimited JSON record of the event
// stream (GET /v1/events) into an Event.
func ParseEventLine(line []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("arkprovider: decoding event line: %w", err)
	}

	e := &Event{
		BatchStarted:                env.Result.BatchStarted,
		RoundSigning:                env.Result.RoundSigning,
		RoundSigningNoncesGenerated: env.Result.RoundSigningNoncesGenerated,
		RoundFinalization:           env.Result.RoundFinalization,
		RoundFinalized:              env.Result.RoundFinalized,
		RoundFailed:                 env.Result.RoundFailed,
		BatchTree:                   env.Result.BatchTree,
		BatchTreeSignature:          env.Result.BatchTreeSignature,
	}

	if e.countSet() == 0 {
		return nil, fmt.Errorf("arkprovider: event line carries no recognised event type")
	}
	return e, nil
}

func (e *Event) countSet() int {
	n := 0
	for _, set := range []bool{
		e.BatchStarted != nil,
		e.RoundSigning != nil,
		e.RoundSigningNoncesGenerated != nil,
		e.RoundFinalization != nil,
		e.RoundFinalized != nil,
		e.RoundFailed != nil,
		e.BatchTree != nil,
		e.BatchTreeSignature != nil,
	} {
		if set {
			n++
		}
	}
	return n
}
