// Package arkaddr encodes and decodes Ark addresses: a bech32m payload
// carrying the server's x-only pubkey and the vtxo's tweaked Taproot output
// key, the way an on-chain wallet would carry a witness program.
package arkaddr

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/txscript"
)

// HRP values the client recognises, per network.
const (
	HRPMainnet = "ark"
	HRPTestnet = "tark"
)

// ErrPayloadLength is returned when a decoded address payload isn't exactly
// 64 bytes (server x-only pubkey || tweaked x-only pubkey).
var ErrPayloadLength = errors.New("arkaddr: payload must be 64 bytes")

// ErrHRPMismatch is returned when the decoded hrp doesn't match the one the
// caller expected for its network.
var ErrHRPMismatch = errors.New("arkaddr: hrp mismatch")

// Address is a decoded Ark address.
type Address struct {
	HRP          string
	ServerPubKey [32]byte
	TweakedKey   [32]byte
}

// Encode bech32m-encodes an address for the given hrp.
func Encode(hrp string, serverPubKey, tweakedKey [32]byte) (string, error) {
	payload := make([]byte, 0, 64)
	payload = append(payload, serverPubKey[:]...)
	payload = append(payload, tweakedKey[:]...)

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("arkaddr: converting payload to 5-bit groups: %w", err)
	}
	return bech32.EncodeM(hrp, converted)
}

// Decode parses a bech32m Ark address, verifying checksum, hrp, and payload
// length before returning the decoded fields.
func Decode(address string, wantHRP string) (*Address, error) {
	hrp, data, err := bech32.DecodeNoLimit(address)
	if err != nil {
		return nil, fmt.Errorf("arkaddr: %w", err)
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrHRPMismatch, hrp, wantHRP)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("arkaddr: converting payload from 5-bit groups: %w", err)
	}
	if len(payload) != 64 {
		return nil, fmt.Errorf("%w: got %d", ErrPayloadLength, len(payload))
	}

	addr := &Address{HRP: hrp}
	copy(addr.ServerPubKey[:], payload[:32])
	copy(addr.TweakedKey[:], payload[32:])
	return addr, nil
}

// OutputScript reconstructs the 34-byte Taproot payment script `0x51 0x20
// <tweaked_xonly>` this address pays to.
func (a *Address) OutputScript() []byte {
	script := make([]byte, 34)
	script[0] = txscript.OP_1
	script[1] = txscript.OP_DATA_32
	copy(script[2:], a.TweakedKey[:])
	return script
}
