package arkscript

import (
	"encoding/hex"
	"fmt"

	"github.com/arkwallet/arkwalletd/internal/arkerr"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// TapscriptLeaf is the `{ script, version, merkle path, control block }`
// descriptor the protocol hands the signer for one spending path.
type TapscriptLeaf struct {
	Script       []byte
	Version      txscript.TapLeafVersion
	MerklePath   [][32]byte
	ControlBlock []byte
}

// ScriptHex returns the leaf script as lowercase hex, matching the wire
// format's tapscript-as-hex convention.
func (l TapscriptLeaf) ScriptHex() string { return hex.EncodeToString(l.Script) }

// ScriptTree is a named set of tapscript leaves assembled into one Taproot
// output under the unspendable internal key.
type ScriptTree struct {
	InternalKey *btcec.PublicKey
	OutputKey   *btcec.PublicKey
	leaves      map[string]txscript.TapLeaf
	indexed     *txscript.IndexedTapScriptTree
	order       []string
}

// newScriptTree assembles named leaves (in iteration order, which also
// becomes the Taproot tree's leaf order) into one tree and computes the
// tweaked output key.
func newScriptTree(names []string, scripts map[string][]byte) (*ScriptTree, error) {
	internalKey := UnspendableInternalKey()

	leaves := make(map[string]txscript.TapLeaf, len(names))
	ordered := make([]txscript.TapLeaf, 0, len(names))
	for _, name := range names {
		s, ok := scripts[name]
		if !ok {
			return nil, fmt.Errorf("arkscript: missing script for leaf %q", name)
		}
		leaf := txscript.NewBaseTapLeaf(s)
		leaves[name] = leaf
		ordered = append(ordered, leaf)
	}

	indexed := txscript.AssembleTaprootScriptTree(ordered...)
	merkleRoot := indexed.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, merkleRoot[:])

	return &ScriptTree{
		InternalKey: internalKey,
		OutputKey:   outputKey,
		leaves:      leaves,
		indexed:     indexed,
		order:       names,
	}, nil
}

// OutputScript returns the 34-byte Taproot payment script `0x51 0x20
// <tweaked x-only pubkey>`.
func (t *ScriptTree) OutputScript() []byte {
	xOnly := schnorr.SerializePubKey(t.OutputKey)
	script := make([]byte, 34)
	script[0] = txscript.OP_1
	script[1] = txscript.OP_DATA_32
	copy(script[2:], xOnly)
	return script
}

// Leaf returns the tapscript leaf descriptor for a named spending path
// (e.g. "forfeit", "exit", "claim"), or false if that path isn't part of
// this tree.
func (t *ScriptTree) Leaf(name string) (TapscriptLeaf, bool) {
	leaf, ok := t.leaves[name]
	if !ok {
		return TapscriptLeaf{}, false
	}

	idx, ok := t.indexed.LeafProofIndex[leaf.TapHash()]
	if !ok {
		return TapscriptLeaf{}, false
	}
	proof := t.indexed.LeafMerkleProofs[idx]

	ctrlBlock := proof.ToControlBlock(t.InternalKey)
	ctrlBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return TapscriptLeaf{}, false
	}

	path := make([][32]byte, len(proof.InclusionProof)/32)
	for i := range path {
		copy(path[i][:], proof.InclusionProof[i*32:(i+1)*32])
	}

	return TapscriptLeaf{
		Script:       leaf.Script,
		Version:      leaf.LeafVersion,
		MerklePath:   path,
		ControlBlock: ctrlBytes,
	}, true
}

// Encode returns the canonical hex list of leaves, in tree order, the way
// the wire format transmits a vtxo's tapscript set.
func (t *ScriptTree) Encode() []string {
	out := make([]string, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, hex.EncodeToString(t.leaves[name].Script))
	}
	return out
}

// ForfeitLeafFromTapscripts rebuilds the forfeit tapscript leaf descriptor
// from a vtxo or boarding UTXO's declared hex tapscript set, without
// needing the leaf names: both NewDefaultVtxoScript and NewBoardingScript
// place the forfeit leaf first, so the first script in declaration order
// is always the forfeit path.
func ForfeitLeafFromTapscripts(tapscripts []string) (TapscriptLeaf, error) {
	if len(tapscripts) == 0 {
		return TapscriptLeaf{}, fmt.Errorf("arkscript: no tapscripts to rebuild a forfeit leaf from")
	}

	leaves := make([]txscript.TapLeaf, len(tapscripts))
	for i, s := range tapscripts {
		script, err := hex.DecodeString(s)
		if err != nil {
			return TapscriptLeaf{}, fmt.Errorf("arkscript: decoding tapscript %d: %w", i, err)
		}
		leaves[i] = txscript.NewBaseTapLeaf(script)
	}

	internalKey := UnspendableInternalKey()
	indexed := txscript.AssembleTaprootScriptTree(leaves...)

	forfeit := leaves[0]
	idx, ok := indexed.LeafProofIndex[forfeit.TapHash()]
	if !ok {
		return TapscriptLeaf{}, fmt.Errorf("arkscript: forfeit leaf missing from assembled tree")
	}
	proof := indexed.LeafMerkleProofs[idx]

	ctrlBlock := proof.ToControlBlock(internalKey)
	ctrlBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return TapscriptLeaf{}, fmt.Errorf("arkscript: serializing control block: %w", err)
	}

	path := make([][32]byte, len(proof.InclusionProof)/32)
	for i := range path {
		copy(path[i][:], proof.InclusionProof[i*32:(i+1)*32])
	}

	return TapscriptLeaf{
		Script:       forfeit.Script,
		Version:      forfeit.LeafVersion,
		MerklePath:   path,
		ControlBlock: ctrlBytes,
	}, nil
}

// DefaultVtxoLeaves names the two spending paths of a default vtxo.
const (
	LeafForfeit = "forfeit"
	LeafExit    = "exit"
)

// NewDefaultVtxoScript builds the two-leaf tree of a plain vtxo: a forfeit
// path co-signed by owner and server, and a CSV exit path the owner alone
// can use once the unilateral exit delay has elapsed.
func NewDefaultVtxoScript(owner, server XOnlyPubKey, unilateralExitDelay RelativeLocktime) (*ScriptTree, error) {
	forfeit, err := MultisigScript(owner, server)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building forfeit leaf: %w", err)
	}
	exit, err := CSVMultisigScript(unilateralExitDelay, owner)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building exit leaf: %w", err)
	}
	return newScriptTree([]string{LeafForfeit, LeafExit}, map[string][]byte{
		LeafForfeit: forfeit,
		LeafExit:    exit,
	})
}

// NewBoardingScript builds the two-leaf tree of a boarding UTXO: a forfeit
// path and a CLTV exit path unlockable at fundingHeight+boardingExitDelay.
func NewBoardingScript(owner, server XOnlyPubKey, boardingExitDelay RelativeLocktime, fundingHeight uint32) (*ScriptTree, error) {
	if boardingExitDelay.Unit != DelayBlocks {
		return nil, fmt.Errorf("arkscript: boarding exit delay must be block-denominated")
	}
	forfeit, err := MultisigScript(owner, server)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building forfeit leaf: %w", err)
	}
	exit, err := CLTVMultisigScript(fundingHeight+boardingExitDelay.Value, owner)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building exit leaf: %w", err)
	}
	return newScriptTree([]string{LeafForfeit, LeafExit}, map[string][]byte{
		LeafForfeit: forfeit,
		LeafExit:    exit,
	})
}

// VHTLC leaf names, in the order spec.md §4.1 lists them.
const (
	LeafClaim                     = "claim"
	LeafRefund                    = "refund"
	LeafRefundWithoutReceiver     = "refundWithoutReceiver"
	LeafUnilateralClaim           = "unilateralClaim"
	LeafUnilateralRefund          = "unilateralRefund"
	LeafUnilateralRefundNoReceiver = "unilateralRefundWithoutReceiver"
)

// VHTLCParams mirrors the VHTLC parameter set of spec.md §3.
type VHTLCParams struct {
	PreimageHash [20]byte
	Sender       XOnlyPubKey
	Receiver     XOnlyPubKey
	Server       XOnlyPubKey

	RefundLocktime uint32

	UnilateralClaimDelay              RelativeLocktime
	UnilateralRefundDelay             RelativeLocktime
	UnilateralRefundWithoutReceiverDelay RelativeLocktime
}

// Validate enforces the delay-ordering invariant of spec.md §3: claim must
// always out-prioritise refund, which must out-prioritise the
// no-receiver refund, so the receiver always gets first chance to claim.
func (p VHTLCParams) Validate() error {
	claim, err := p.UnilateralClaimDelay.Encode()
	if err != nil {
		return fmt.Errorf("arkscript: %w", err)
	}
	refund, err := p.UnilateralRefundDelay.Encode()
	if err != nil {
		return fmt.Errorf("arkscript: %w", err)
	}
	noReceiver, err := p.UnilateralRefundWithoutReceiverDelay.Encode()
	if err != nil {
		return fmt.Errorf("arkscript: %w", err)
	}

	if p.UnilateralClaimDelay.Unit != p.UnilateralRefundDelay.Unit || p.UnilateralRefundDelay.Unit != p.UnilateralRefundWithoutReceiverDelay.Unit {
		return &arkerr.ConfigError{
			Reason: "vhtlc delays must share one unit to be comparable",
			Err:    ErrConfigDelayOrdering,
		}
	}
	if !(claim < refund && refund < noReceiver) {
		return &arkerr.ConfigError{
			Reason: fmt.Sprintf("unilateralClaimDelay (%d) must be < unilateralRefundDelay (%d) must be < unilateralRefundWithoutReceiverDelay (%d)",
				claim, refund, noReceiver),
			Err: ErrConfigDelayOrdering,
		}
	}
	return nil
}

// NewVHTLCScript builds the six-leaf VHTLC tree of spec.md §4.1.
func NewVHTLCScript(p VHTLCParams) (*ScriptTree, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	claimGate, err := HTLCGateMultisigScript(p.PreimageHash, p.Receiver, p.Server)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building claim leaf: %w", err)
	}
	refund, err := MultisigScript(p.Sender, p.Receiver, p.Server)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building refund leaf: %w", err)
	}
	refundNoReceiver, err := CLTVMultisigScript(p.RefundLocktime, p.Sender, p.Server)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building refundWithoutReceiver leaf: %w", err)
	}

	unilateralClaimGate, err := HTLCGateMultisigScript(p.PreimageHash, p.Receiver)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building unilateralClaim gate: %w", err)
	}
	unilateralClaim, err := csvPrefixed(p.UnilateralClaimDelay, unilateralClaimGate)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building unilateralClaim leaf: %w", err)
	}

	unilateralRefund, err := CSVMultisigScript(p.UnilateralRefundDelay, p.Sender, p.Receiver)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building unilateralRefund leaf: %w", err)
	}

	unilateralRefundNoReceiver, err := CSVMultisigScript(p.UnilateralRefundWithoutReceiverDelay, p.Sender)
	if err != nil {
		return nil, fmt.Errorf("arkscript: building unilateralRefundWithoutReceiver leaf: %w", err)
	}

	names := []string{
		LeafClaim, LeafRefund, LeafRefundWithoutReceiver,
		LeafUnilateralClaim, LeafUnilateralRefund, LeafUnilateralRefundNoReceiver,
	}
	scripts := map[string][]byte{
		LeafClaim:                     claimGate,
		LeafRefund:                    refund,
		LeafRefundWithoutReceiver:     refundNoReceiver,
		LeafUnilateralClaim:           unilateralClaim,
		LeafUnilateralRefund:          unilateralRefund,
		LeafUnilateralRefundNoReceiver: unilateralRefundNoReceiver,
	}
	return newScriptTree(names, scripts)
}

// csvPrefixed prepends a CSV delay gate to an already-built script, used for
// the unilateralClaim leaf which is CSV(delay) AND HTLC-gate AND
// multisig(receiver) rather than CSV(delay) AND multisig(...) alone.
func csvPrefixed(delay RelativeLocktime, rest []byte) ([]byte, error) {
	seq, err := delay.Encode()
	if err != nil {
		return nil, err
	}
	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(seq))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	prefix, err := builder.Script()
	if err != nil {
		return nil, err
	}
	return append(prefix, rest...), nil
}
