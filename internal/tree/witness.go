package tree

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
)

// SerializeFinalWitness encodes a script-path witness stack into the
// BIP-174 `final_scriptwitness` wire format: a compact-size item count
// followed by one compact-size-prefixed item per stack element.
func SerializeFinalWitness(items ...[]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(items))); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ParseFinalWitness decodes a BIP-174 `final_scriptwitness` blob back into
// its stack items, the inverse of SerializeFinalWitness.
func ParseFinalWitness(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	items := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "witness item")
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
