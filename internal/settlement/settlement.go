// Package settlement drives one Ark round from registration through
// finalization: the REGISTERING -> NONCES -> SIGNATURES -> FORFEITING ->
// DONE/FATAL state machine of spec.md §4.6.
package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkprovider"
	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/identity"
	"github.com/arkwallet/arkwalletd/internal/musig"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/arkwallet/arkwalletd/pkg/helpers"
	"github.com/arkwallet/arkwalletd/pkg/logging"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// State is one node of spec.md §4.6's state machine.
type State int

const (
	StateIdle State = iota
	StateRegistering
	StateNonces
	StateSignatures
	StateForfeiting
	StateDone
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRegistering:
		return "registering"
	case StateNonces:
		return "nonces"
	case StateSignatures:
		return "signatures"
	case StateForfeiting:
		return "forfeiting"
	case StateDone:
		return "done"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Params describes one settlement request: the caller's spendable inputs
// and the outputs it wants funded.
type Params struct {
	Inputs  []ark.SettlementInput
	Outputs []ark.SettlementOutput

	// ServerForfeitScript is the output script every forfeit transaction
	// pays its seized value to (resolved by the caller from GetInfo's
	// forfeit address before registration begins).
	ServerForfeitScript []byte
}

// Result is the outcome of a completed settlement.
type Result struct {
	RoundTxid         string
	ForfeitsSubmitted int
	SettlementSigned  bool
}

// Engine runs a single settlement. A second settlement must use a fresh
// Engine, per spec.md §5.
type Engine struct {
	client   arkprovider.ArkClient
	identity identity.Identity
	log      *logging.Logger

	mu        sync.Mutex
	state     State
	observers []func(State)

	requestID string
	session   *musig.Session
}

// OnStateChange registers fn to be called whenever the engine transitions
// to a new state, in registration order. fn runs synchronously on
// the goroutine driving the engine, so it must not block.
func (e *Engine) OnStateChange(fn func(State)) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// New builds an Engine scoped to one settlement.
func New(client arkprovider.ArkClient, id identity.Identity, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Component("settlement")
	}
	return &Engine{client: client, identity: id, log: log, state: StateIdle}
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	observers := append([]func(State){}, e.observers...)
	e.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// driveState carries everything accumulated across events within one Run,
// since a settlement's later stages depend on data learned in earlier
// ones (the vtxo tree, the sweep tap root, the settlement tx).
type driveState struct {
	params Params

	settlementTx *psbt.Packet
	sweepTapRoot []byte

	result *Result

	// stopPing cancels the keep-alive ping loop. Spec §4.6 runs it only
	// from REGISTERING until the first state-advancing event, so
	// handleRoundSigning calls it the moment the round leaves
	// REGISTERING rather than waiting for Run to return.
	stopPing context.CancelFunc
}

// Run drives the settlement to completion or failure. It returns
// (*Result, nil) on success, or (nil, err) on any fatal error — including
// ctx cancellation, which is reported as ark.ErrCancelled.
func (e *Engine) Run(ctx context.Context, params Params) (*Result, error) {
	for _, out := range params.Outputs {
		if out.Amount == 0 {
			return nil, ark.ErrAmountNonPositive
		}
		if helpers.IsDust(out.Amount) {
			return nil, ark.ErrAmountBelowDust
		}
	}

	e.setState(StateRegistering)

	registerInputs := make([]arkprovider.RegisterInput, len(params.Inputs))
	for i, in := range params.Inputs {
		if in.IsNote() {
			registerInputs[i] = arkprovider.RegisterInput{Note: *in.Note}
			continue
		}
		registerInputs[i] = arkprovider.RegisterInput{
			Outpoint:   in.OutpointOf(),
			Tapscripts: tapscriptsOf(in),
		}
	}

	regResult, err := e.client.RegisterInputsForNextRound(ctx, registerInputs)
	if err != nil {
		e.setState(StateFatal)
		return nil, fmt.Errorf("settlement: registering inputs: %w", err)
	}
	e.requestID = regResult.RequestID

	myKeyHex := helpers.BytesToHex(e.identity.XOnlyPublicKey().Bytes())

	if err := e.client.RegisterOutputsForNextRound(ctx, e.requestID, params.Outputs, []string{myKeyHex}, false); err != nil {
		e.setState(StateFatal)
		return nil, fmt.Errorf("settlement: registering outputs: %w", err)
	}

	pingCtx, stopPing := context.WithCancel(ctx)
	pingDone := e.startPingLoop(pingCtx)
	defer func() {
		stopPing()
		<-pingDone
	}()

	events, errs := e.client.GetEventStream(ctx)

	ds := &driveState{params: params, stopPing: stopPing}
	result, err := e.drive(ctx, ds, events, errs, myKeyHex)
	if err != nil {
		e.setState(StateFatal)
		// Drop the last reference to the MuSig2 session immediately: its
		// secnonces are one-shot per spec.md §5, and musig2.Session.Sign
		// only clears them on a completed signature, not on abandonment.
		e.session = nil
		if ctx.Err() != nil {
			return nil, ark.ErrCancelled
		}
		return nil, err
	}

	e.setState(StateDone)
	return result, nil
}

// drive consumes the event stream strictly in order, advancing the state
// machine one event at a time; out-of-order events are dropped with a
// warning, duplicates are idempotent no-ops.
func (e *Engine) drive(ctx context.Context, ds *driveState, events <-chan arkprovider.Event, errs <-chan error, myKeyHex string) (*Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				continue
			}
			return nil, fmt.Errorf("settlement: event stream: %w", err)

		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("settlement: event stream closed unexpectedly")
			}

			result, done, err := e.handleEvent(ctx, ds, ev, myKeyHex)
			if err != nil {
				return nil, err
			}
			if done {
				return result, nil
			}
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ds *driveState, ev arkprovider.Event, myKeyHex string) (*Result, bool, error) {
	switch {
	case ev.RoundFailed != nil:
		return nil, false, &ark.SettlementFailed{Reason: ev.RoundFailed.Reason}

	case ev.RoundSigning != nil:
		if e.State() != StateRegistering {
			e.log.Warn("dropping out-of-order roundSigning event", "state", e.State().String())
			return nil, false, nil
		}
		if err := e.handleRoundSigning(ctx, ds, ev.RoundSigning, myKeyHex); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case ev.RoundSigningNoncesGenerated != nil:
		if e.State() != StateNonces {
			e.log.Warn("dropping out-of-order roundSigningNoncesGenerated event", "state", e.State().String())
			return nil, false, nil
		}
		if err := e.handleNoncesGenerated(ctx, ev.RoundSigningNoncesGenerated, myKeyHex); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case ev.RoundFinalization != nil:
		if e.State() != StateSignatures {
			e.log.Warn("dropping out-of-order roundFinalization event", "state", e.State().String())
			return nil, false, nil
		}
		result, err := e.handleFinalization(ctx, ds, ev.RoundFinalization)
		if err != nil {
			return nil, false, err
		}
		ds.result = result
		return nil, false, nil

	case ev.RoundFinalized != nil:
		if e.State() != StateForfeiting {
			e.log.Warn("dropping out-of-order roundFinalized event", "state", e.State().String())
			return nil, false, nil
		}
		if ds.result == nil {
			return nil, false, fmt.Errorf("settlement: roundFinalized arrived before finalization completed")
		}
		ds.result.RoundTxid = ev.RoundFinalized.RoundTxid
		return ds.result, true, nil

	default:
		// batchStarted / batchTree / batchTreeSignature: informational,
		// no state transition required.
		return nil, false, nil
	}
}

func (e *Engine) handleRoundSigning(ctx context.Context, ds *driveState, data *arkprovider.RoundSigningData, myKeyHex string) error {
	settlementTx, err := decodeB64Psbt(data.UnsignedSettlementTx)
	if err != nil {
		return fmt.Errorf("settlement: decoding settlement psbt: %w", err)
	}
	ds.settlementTx = settlementTx

	t, err := buildTree(data.VtxoTree)
	if err != nil {
		return fmt.Errorf("settlement: building vtxo tree: %w", err)
	}

	sweepTapRoot, err := hex.DecodeString(data.SweepTapTreeRoot)
	if err != nil {
		return fmt.Errorf("settlement: decoding sweep tap root: %w", err)
	}
	ds.sweepTapRoot = sweepTapRoot

	opts := tree.Options{
		MinRelayFeeRateSatPerKvb: data.MinRelayFeeRate,
		RegisteredOutputs:        outputScripts(ds.params.Outputs),
	}
	if err := tree.ValidateVtxoTree(settlementTx.UnsignedTx, t, sweepTapRoot, opts); err != nil {
		return fmt.Errorf("settlement: invalid vtxo tree: %w", err)
	}

	cosigners, err := parseCosignerKeys(data.CosignersPublicKeys)
	if err != nil {
		return fmt.Errorf("settlement: parsing cosigner keys: %w", err)
	}

	fetcher := newTreeSettlementFetcher(t, settlementTx.UnsignedTx, 0)
	nodeMessages, err := t.NodeMessages(fetcher)
	if err != nil {
		return fmt.Errorf("settlement: computing node sighashes: %w", err)
	}

	session, err := e.identity.NewSignerSession(cosigners, sweepTapRoot, data.SharedOutputAmount, nodeMessages)
	if err != nil {
		return fmt.Errorf("settlement: starting signer session: %w", err)
	}
	e.session = session

	nonces, err := session.GetNonces()
	if err != nil {
		return fmt.Errorf("settlement: generating nonces: %w", err)
	}

	if err := e.client.SubmitTreeNonces(ctx, e.requestID, myKeyHex, nonces2bytes(nonces)); err != nil {
		return fmt.Errorf("settlement: submitting nonces: %w", err)
	}
	e.setState(StateNonces)

	// The round has advanced past REGISTERING; the keep-alive has done
	// its job. stopPing is a context.CancelFunc, safe to call more than
	// once, so Run's deferred teardown remains a no-op safety net.
	if ds.stopPing != nil {
		ds.stopPing()
	}
	return nil
}

func (e *Engine) handleNoncesGenerated(ctx context.Context, data *arkprovider.RoundSigningNoncesGeneratedData, myKeyHex string) error {
	rows, err := arkprovider.DecodeMatrix(data.TreeNonces, arkprovider.NonceCellSize)
	if err != nil {
		return fmt.Errorf("settlement: decoding aggregated nonces: %w", err)
	}
	matrix, err := bytes2nonces(rows)
	if err != nil {
		return fmt.Errorf("settlement: %w", err)
	}
	if err := e.session.SetAggregatedNonces(matrix); err != nil {
		return fmt.Errorf("settlement: setting aggregated nonces: %w", err)
	}

	sigs, err := e.session.Sign()
	if err != nil {
		return fmt.Errorf("settlement: signing tree: %w", err)
	}

	if err := e.client.SubmitTreeSignatures(ctx, e.requestID, myKeyHex, sigs2bytes(sigs)); err != nil {
		return fmt.Errorf("settlement: submitting signatures: %w", err)
	}
	e.setState(StateSignatures)
	return nil
}

func (e *Engine) handleFinalization(ctx context.Context, ds *driveState, data *arkprovider.RoundFinalizationData) (*Result, error) {
	connectorsTree, err := buildTree(data.ConnectorsTree)
	if err != nil {
		return nil, fmt.Errorf("settlement: building connectors tree: %w", err)
	}

	connectorScript, err := hex.DecodeString(data.ConnectorScript)
	if err != nil {
		return nil, fmt.Errorf("settlement: decoding connector script: %w", err)
	}

	opts := tree.Options{
		MinRelayFeeRateSatPerKvb: data.MinRelayFeeRate,
		RegisteredOutputs:        outputScripts(ds.params.Outputs),
		ConnectorLeafScript:      connectorScript,
	}
	if err := tree.ValidateConnectorsTree(ds.settlementTx.UnsignedTx, connectorsTree, ds.sweepTapRoot, opts); err != nil {
		return nil, fmt.Errorf("settlement: invalid connectors tree: %w", err)
	}

	finalSettlementTx := ds.settlementTx
	if data.SettlementTx != "" {
		parsed, err := decodeB64Psbt(data.SettlementTx)
		if err != nil {
			return nil, fmt.Errorf("settlement: decoding finalization settlement psbt: %w", err)
		}
		finalSettlementTx = parsed
	}

	forfeitTxs, signedSettlement, err := e.buildForfeits(ds.params, connectorsTree, finalSettlementTx, data.MinRelayFeeRate)
	if err != nil {
		return nil, fmt.Errorf("settlement: building forfeits: %w", err)
	}

	var settlementB64 string
	signed := false
	if signedSettlement != nil {
		b64, err := signedSettlement.B64Encode()
		if err != nil {
			return nil, fmt.Errorf("settlement: encoding signed settlement tx: %w", err)
		}
		settlementB64 = b64
		signed = true
	}

	if err := e.client.SubmitSignedForfeitTxs(ctx, e.requestID, forfeitTxs, settlementB64); err != nil {
		return nil, fmt.Errorf("settlement: submitting forfeits: %w", err)
	}
	e.setState(StateForfeiting)

	return &Result{ForfeitsSubmitted: len(forfeitTxs), SettlementSigned: signed}, nil
}

func tapscriptsOf(in ark.SettlementInput) []string {
	if in.Vtxo != nil {
		return in.Vtxo.Tapscripts
	}
	if in.Boarding != nil {
		return in.Boarding.Tapscripts
	}
	return nil
}

func outputScripts(outputs []ark.SettlementOutput) [][]byte {
	scripts := make([][]byte, len(outputs))
	for i, o := range outputs {
		scripts[i] = o.Script
	}
	return scripts
}

func parseCosignerKeys(hexKeys []string) ([]*btcec.PublicKey, error) {
	keys := make([]*btcec.PublicKey, len(hexKeys))
	for i, h := range hexKeys {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("parsing cosigner key %d: %w", i, err)
		}
		pk, err := btcec.ParsePubKey(b)
		if err != nil {
			return nil, fmt.Errorf("parsing cosigner key %d: %w", i, err)
		}
		keys[i] = pk
	}
	return keys, nil
}

// ForfeitLeaf rebuilds a spendable input's forfeit leaf, used by
// buildForfeits; exported indirection point so tests can construct inputs
// without a live script tree.
var ForfeitLeaf = arkscript.ForfeitLeafFromTapscripts

func nonces2bytes(rows [][]*[musig2.PubNonceSize]byte) [][][]byte {
	out := make([][][]byte, len(rows))
	for i, row := range rows {
		out[i] = make([][]byte, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			out[i][j] = cell[:]
		}
	}
	return out
}

func bytes2nonces(rows [][][]byte) ([][]*[musig2.PubNonceSize]byte, error) {
	out := make([][]*[musig2.PubNonceSize]byte, len(rows))
	for i, row := range rows {
		out[i] = make([]*[musig2.PubNonceSize]byte, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			if len(cell) != musig2.PubNonceSize {
				return nil, fmt.Errorf("nonce cell (%d,%d) has %d bytes, want %d", i, j, len(cell), musig2.PubNonceSize)
			}
			var arr [musig2.PubNonceSize]byte
			copy(arr[:], cell)
			out[i][j] = &arr
		}
	}
	return out, nil
}

func sigs2bytes(rows [][]*musig2.PartialSignature) [][][]byte {
	out := make([][][]byte, len(rows))
	for i, row := range rows {
		out[i] = make([][]byte, len(row))
		for j, sig := range row {
			if sig == nil {
				continue
			}
			buf := make([]byte, 32)
			sig.S.PutBytesUnchecked(buf)
			out[i][j] = buf
		}
	}
	return out
}
