package identity

import (
	"fmt"

	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcutil/psbt"
)

// VHTLCClaimant wraps an Identity for the VHTLC claim path (spec.md §4.7):
// it signs exactly like the wrapped identity, then injects the preimage as
// the leading witness element on input 0, producing the condition-witness
// ordering `[preimage, sig, script, control block]`. All other methods
// delegate unchanged.
type VHTLCClaimant struct {
	Identity
	Preimage []byte
}

// NewVHTLCClaimant builds a claim-path identity wrapping inner, injecting
// preimage on input 0 after every Sign call.
func NewVHTLCClaimant(inner Identity, preimage []byte) *VHTLCClaimant {
	return &VHTLCClaimant{Identity: inner, Preimage: preimage}
}

// NewVHTLCClaimantVerified is NewVHTLCClaimant with an up-front check that
// preimage actually opens the VHTLC's HASH160 gate, so a caller who passes
// a wrong secret fails fast with a clear error instead of producing an
// invalid witness that a relay or the server rejects later.
func NewVHTLCClaimantVerified(inner Identity, preimage []byte, hash [20]byte) (*VHTLCClaimant, error) {
	if !arkscript.VerifyPreimage(preimage, hash) {
		return nil, fmt.Errorf("identity: preimage does not match the VHTLC's hash")
	}
	return NewVHTLCClaimant(inner, preimage), nil
}

func (c *VHTLCClaimant) Sign(p *psbt.Packet, inputIndexes []int, prevouts tree.PrevOutputFetcher) (*psbt.Packet, error) {
	signed, err := c.Identity.Sign(p, inputIndexes, prevouts)
	if err != nil {
		return nil, err
	}

	hasInput0 := false
	for _, idx := range inputIndexes {
		if idx == 0 {
			hasInput0 = true
		}
	}
	if !hasInput0 {
		return signed, nil
	}

	items, err := tree.ParseFinalWitness(signed.Inputs[0].FinalScriptWitness)
	if err != nil {
		return nil, fmt.Errorf("identity: parsing input 0 witness to inject preimage: %w", err)
	}
	if len(items) != 3 {
		return nil, fmt.Errorf("identity: expected a 3-item claim-leaf witness before preimage injection, got %d", len(items))
	}

	withPreimage := append([][]byte{c.Preimage}, items...)
	witness, err := tree.SerializeFinalWitness(withPreimage...)
	if err != nil {
		return nil, fmt.Errorf("identity: re-serializing input 0 witness with preimage: %w", err)
	}
	signed.Inputs[0].FinalScriptWitness = witness

	return signed, nil
}

// compile-time interface checks.
var (
	_ Identity = (*PrivateKey)(nil)
	_ Identity = (*VHTLCClaimant)(nil)
)
