// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexToBytes converts a hex string (with or without 0x prefix) to bytes.
// The Ark wire protocol emits lowercase hex without a prefix, but inputs
// copy-pasted from explorers commonly carry one, so both are accepted.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// BytesToHex converts bytes to a lowercase hex string with no prefix,
// matching the wire format pubkeys/hashes/signatures use on the wire.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// FixedBytesToHex converts bytes to hex and verifies the expected length,
// for fields like x-only pubkeys (32 bytes) and preimage hashes (20 bytes).
func FixedBytesToHex(b []byte, want int) (string, error) {
	if len(b) != want {
		return "", fmt.Errorf("expected %d bytes, got %d", want, len(b))
	}
	return hex.EncodeToString(b), nil
}

// HexToFixedBytes decodes hex and verifies the decoded length.
func HexToFixedBytes(s string, want int) ([]byte, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != want {
		return nil, fmt.Errorf("expected %d bytes, got %d", want, len(b))
	}
	return b, nil
}

// PadLeft pads a byte slice with zeros on the left to reach the specified length.
func PadLeft(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	result := make([]byte, length)
	copy(result[length-len(b):], b)
	return result
}

// PadRight pads a byte slice with zeros on the right to reach the specified length.
func PadRight(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	result := make([]byte, length)
	copy(result, b)
	return result
}
