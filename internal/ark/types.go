// Package ark holds the protocol's core domain types: outpoints, vtxos,
// boarding UTXOs, and the tagged settlement-input variant, shared by every
// other package that speaks the Ark wire protocol.
package ark

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/arkwallet/arkwalletd/internal/arkscript"
)

// Outpoint is a `(txid, vout)` pair, the txid given as big-endian hex per
// spec.md §3.
type Outpoint struct {
	Txid string
	Vout uint32
}

func (o Outpoint) String() string { return fmt.Sprintf("%s:%d", o.Txid, o.Vout) }

// ParseOutpoint parses the wire's `txid:vout` outpoint encoding.
func ParseOutpoint(s string) (Outpoint, error) {
	txid, voutStr, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("ark: malformed outpoint %q, want txid:vout", s)
	}
	vout, err := strconv.ParseUint(voutStr, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("ark: malformed outpoint %q: %w", s, err)
	}
	return Outpoint{Txid: txid, Vout: uint32(vout)}, nil
}

// VtxoStatus is a vtxo's virtual status, spec.md §3.
type VtxoStatus string

const (
	StatusPending VtxoStatus = "pending"
	StatusSettled VtxoStatus = "settled"
	StatusSwept   VtxoStatus = "swept"
	StatusSpent   VtxoStatus = "spent"
)

// Vtxo is a virtual UTXO as returned by the Ark server / chain indexer.
type Vtxo struct {
	Outpoint Outpoint
	Value    uint64

	// Script is the 34-byte Taproot output script this vtxo pays to.
	Script []byte

	// Tapscripts is the hex-encoded leaf script set this vtxo's output
	// script is derived from (arkscript.ScriptTree.Encode()'s output).
	Tapscripts []string

	Status VtxoStatus

	BatchTxid   string
	HasBatch    bool
	BatchExpiry uint64
	HasExpiry   bool
}

// VerifyScript checks the invariant of spec.md §3: the vtxo's output script
// must equal the Taproot payment derived from its declared tapscript set
// under the unspendable internal key.
func (v Vtxo) VerifyScript(tree *arkscript.ScriptTree) error {
	want := tree.OutputScript()
	got := v.Script
	if len(want) != len(got) {
		return fmt.Errorf("ark: vtxo script length mismatch: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("ark: vtxo output script does not match its declared tapscript tree")
		}
	}
	declared := tree.Encode()
	if len(declared) != len(v.Tapscripts) {
		return fmt.Errorf("ark: vtxo declares %d tapscripts, tree has %d", len(v.Tapscripts), len(declared))
	}
	for i, leaf := range declared {
		if leaf != v.Tapscripts[i] {
			return fmt.Errorf("ark: vtxo tapscript %d does not match its script tree", i)
		}
	}
	return nil
}

// BoardingUTXO is an on-chain coin awaiting conversion into a vtxo, spec.md
// §3: identical shape to a Vtxo, always carrying a forfeit path and an
// absolute-timelock exit path.
type BoardingUTXO struct {
	Outpoint   Outpoint
	Value      uint64
	Script     []byte
	Tapscripts []string
}

// SettlementInput is the tagged variant of spec.md §9 DESIGN NOTES: either
// an opaque Arkade note (forwarded as-is, no forfeit) or a spendable vtxo
// or boarding UTXO.
type SettlementInput struct {
	Note *string

	Vtxo     *Vtxo
	Boarding *BoardingUTXO
}

// IsNote reports whether this input is an opaque note string.
func (s SettlementInput) IsNote() bool { return s.Note != nil }

// OutpointOf returns the outpoint of a spendable input; panics if this input
// is a note (callers must check IsNote first).
func (s SettlementInput) OutpointOf() Outpoint {
	if s.Vtxo != nil {
		return s.Vtxo.Outpoint
	}
	if s.Boarding != nil {
		return s.Boarding.Outpoint
	}
	panic("ark: SettlementInput.OutpointOf called on a note input")
}

// NewNoteInput builds a note-shaped settlement input.
func NewNoteInput(note string) SettlementInput { return SettlementInput{Note: &note} }

// NewVtxoInput builds a vtxo-shaped settlement input.
func NewVtxoInput(v Vtxo) SettlementInput { return SettlementInput{Vtxo: &v} }

// NewBoardingInput builds a boarding-UTXO-shaped settlement input.
func NewBoardingInput(b BoardingUTXO) SettlementInput { return SettlementInput{Boarding: &b} }

// SettlementOutput is one output the caller registers for a settlement: an
// Ark address (vtxo output script) or an on-chain address, paired with an
// amount.
type SettlementOutput struct {
	Script []byte
	Amount uint64
}

// ParseXOnly decodes a 32-byte x-only public key from hex.
func ParseXOnly(s string) (arkscript.XOnlyPubKey, error) {
	var out arkscript.XOnlyPubKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("ark: decoding x-only pubkey: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("ark: x-only pubkey must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
