package arkprovider

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NonceCellSize is the wire size of one pubnonce cell: two 33-byte
// compressed points, per spec.md §6.
const NonceCellSize = 66

// SigCellSize is the wire size of one partial-signature cell.
const SigCellSize = 32

// NonceMatrix is the `[level][index]` matrix of 66-byte pubnonce cells.
type NonceMatrix [][][]byte

// SignatureMatrix is the `[level][index]` matrix of 32-byte partial
// signature cells.
type SignatureMatrix [][][]byte

// EncodeMatrix serialises a level/index matrix into the little-endian wire
// format of spec.md §6: u32 rowCount, then per row u32 len followed by
// len cells, each a u8 presence flag and, if present, cellSize bytes.
func EncodeMatrix(rows [][][]byte, cellSize int) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(rows))); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(row))); err != nil {
			return nil, err
		}
		for _, cell := range row {
			if cell == nil {
				buf.WriteByte(0)
				continue
			}
			if len(cell) != cellSize {
				return nil, fmt.Errorf("arkprovider: matrix cell has %d bytes, want %d", len(cell), cellSize)
			}
			buf.WriteByte(1)
			buf.Write(cell)
		}
	}
	return buf.Bytes(), nil
}

// DecodeMatrix parses the wire format EncodeMatrix produces.
func DecodeMatrix(data []byte, cellSize int) ([][][]byte, error) {
	r := bytes.NewReader(data)

	var rowCount uint32
	if err := binary.Read(r, binary.LittleEndian, &rowCount); err != nil {
		return nil, fmt.Errorf("arkprovider: reading matrix row count: %w", err)
	}

	rows := make([][][]byte, rowCount)
	for i := range rows {
		var rowLen uint32
		if err := binary.Read(r, binary.LittleEndian, &rowLen); err != nil {
			return nil, fmt.Errorf("arkprovider: reading row %d length: %w", i, err)
		}
		row := make([][]byte, rowLen)
		for j := range row {
			var presence byte
			if err := binary.Read(r, binary.LittleEndian, &presence); err != nil {
				return nil, fmt.Errorf("arkprovider: reading cell (%d,%d) presence: %w", i, j, err)
			}
			if presence == 0 {
				continue
			}
			cell := make([]byte, cellSize)
			if _, err := r.Read(cell); err != nil {
				return nil, fmt.Errorf("arkprovider: reading cell (%d,%d): %w", i, j, err)
			}
			row[j] = cell
		}
		rows[i] = row
	}
	return rows, nil
}
