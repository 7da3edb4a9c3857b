// Package arkprovider defines the narrow external-collaborator interfaces
// of spec.md §4.8/§6 — the Ark server RPC, the chain indexer, and on-chain
// broadcast — plus an HTTP/JSON implementation of each and the wire codec
// for the nonce/partial-signature matrix of spec.md §6.
package arkprovider

import (
	"context"

	"github.com/arkwallet/arkwalletd/internal/ark"
)

// Info is the server's GetInfo response: network parameters, fee policy,
// and the server's forfeit address.
type Info struct {
	Network           string
	ServerPubKey      string
	ForfeitAddress    string
	MinRelayFeeRate   uint64 // sats/kvb
	UnilateralExitDelaySeconds uint32
	BoardingExitDelaySeconds   uint32
	RoundInterval     uint32
}

// RegisterInputsResult is the response to registerInputsForNextRound.
type RegisterInputsResult struct {
	RequestID string
}

// ArkClient is the Ark server RPC contract of spec.md §4.8/§6.
type ArkClient interface {
	GetInfo(ctx context.Context) (*Info, error)

	// SubmitVirtualTx submits an out-of-round (redeem) virtual transaction,
	// spec.md §6's POST /v1/redeem-tx.
	SubmitVirtualTx(ctx context.Context, psbtB64 string) (txid string, err error)

	RegisterInputsForNextRound(ctx context.Context, inputs []RegisterInput) (*RegisterInputsResult, error)

	RegisterOutputsForNextRound(ctx context.Context, requestID string, outputs []ark.SettlementOutput, cosignerPubKeys []string, signAll bool) error

	SubmitTreeNonces(ctx context.Context, requestID string, cosignerPubKey string, nonces NonceMatrix) error

	SubmitTreeSignatures(ctx context.Context, requestID string, cosignerPubKey string, sigs SignatureMatrix) error

	SubmitSignedForfeitTxs(ctx context.Context, requestID string, forfeitTxsB64 []string, settlementPsbtB64 string) error

	Ping(ctx context.Context, requestID string) error

	// GetEventStream begins the server's settlement event stream; it
	// returns a channel of decoded events and a channel of terminal
	// errors (the stream itself reconnects until ctx is cancelled, per
	// spec.md §7's retry-exception for the event stream).
	GetEventStream(ctx context.Context) (<-chan Event, <-chan error)

	// GetVtxos lists the known vtxos for an Ark address (GET
	// /v1/vtxos/{address}).
	GetVtxos(ctx context.Context, address string) ([]ark.Vtxo, error)
}

// RegisterInput is one input registered for the next round: either an
// opaque note or a spendable vtxo/boarding outpoint with its tapscripts.
type RegisterInput struct {
	Note       string
	Outpoint   ark.Outpoint
	Tapscripts []string
}

// Coin is a plain on-chain UTXO as returned by the chain indexer.
type Coin struct {
	Outpoint     ark.Outpoint
	Value        uint64
	Script       []byte
	Confirmed    bool
	BlockHeight  uint32
}

// ChainIndexer is the out-of-scope chain indexer contract of spec.md §4.8.
type ChainIndexer interface {
	GetCoins(ctx context.Context, address string) ([]Coin, error)
}

// Broadcaster is the out-of-scope on-chain broadcast contract of spec.md
// §4.8.
type Broadcaster interface {
	BroadcastTransaction(ctx context.Context, txHex string) (txid string, err error)
}
