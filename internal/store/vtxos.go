package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkwallet/arkwalletd/internal/ark"
)

// SaveVtxo inserts or refreshes a single cached vtxo.
func (s *Store) SaveVtxo(v ark.Vtxo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveVtxo(s.db, v)
}

// SaveVtxos upserts a batch of vtxos in a single transaction, the way a
// wallet sync pass refreshes its whole known set at once.
func (s *Store) SaveVtxos(vtxos []ark.Vtxo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: beginning vtxo batch: %w", err)
	}
	defer tx.Rollback()

	for _, v := range vtxos {
		if err := s.saveVtxo(tx, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) saveVtxo(x execer, v ark.Vtxo) error {
	tapscripts, err := json.Marshal(v.Tapscripts)
	if err != nil {
		return fmt.Errorf("store: encoding vtxo tapscripts: %w", err)
	}

	query := `
		INSERT INTO vtxos (
			txid, vout, value, script, tapscripts, status,
			batch_txid, has_batch, batch_expiry, has_expiry, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(txid, vout) DO UPDATE SET
			value = excluded.value,
			script = excluded.script,
			tapscripts = excluded.tapscripts,
			status = excluded.status,
			batch_txid = excluded.batch_txid,
			has_batch = excluded.has_batch,
			batch_expiry = excluded.batch_expiry,
			has_expiry = excluded.has_expiry,
			updated_at = excluded.updated_at
	`

	_, err = x.Exec(query,
		v.Outpoint.Txid,
		v.Outpoint.Vout,
		v.Value,
		hex.EncodeToString(v.Script),
		string(tapscripts),
		string(v.Status),
		v.BatchTxid,
		boolToInt(v.HasBatch),
		v.BatchExpiry,
		boolToInt(v.HasExpiry),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: saving vtxo %s:%d: %w", v.Outpoint.Txid, v.Outpoint.Vout, err)
	}
	return nil
}

// MarkVtxoSpent transitions a cached vtxo to ark.StatusSpent.
func (s *Store) MarkVtxoSpent(o ark.Outpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE vtxos SET status = ?, updated_at = ? WHERE txid = ? AND vout = ?`,
		string(ark.StatusSpent), time.Now().Unix(), o.Txid, o.Vout,
	)
	if err != nil {
		return fmt.Errorf("store: marking vtxo %s:%d spent: %w", o.Txid, o.Vout, err)
	}
	return nil
}

// Vtxos returns every cached vtxo whose status is not ark.StatusSpent.
func (s *Store) Vtxos() ([]ark.Vtxo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT txid, vout, value, script, tapscripts, status,
			batch_txid, has_batch, batch_expiry, has_expiry
		FROM vtxos WHERE status != ? ORDER BY txid, vout
	`, string(ark.StatusSpent))
	if err != nil {
		return nil, fmt.Errorf("store: listing vtxos: %w", err)
	}
	defer rows.Close()

	var out []ark.Vtxo
	for rows.Next() {
		v, err := scanVtxo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVtxo(rows *sql.Rows) (ark.Vtxo, error) {
	var v ark.Vtxo
	var scriptHex, tapscriptsJSON, status string
	var batchTxid sql.NullString
	var hasBatch, hasExpiry int

	err := rows.Scan(
		&v.Outpoint.Txid, &v.Outpoint.Vout, &v.Value, &scriptHex, &tapscriptsJSON, &status,
		&batchTxid, &hasBatch, &v.BatchExpiry, &hasExpiry,
	)
	if err != nil {
		return v, fmt.Errorf("store: scanning vtxo row: %w", err)
	}

	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return v, fmt.Errorf("store: decoding vtxo script: %w", err)
	}
	v.Script = script

	if err := json.Unmarshal([]byte(tapscriptsJSON), &v.Tapscripts); err != nil {
		return v, fmt.Errorf("store: decoding vtxo tapscripts: %w", err)
	}

	v.Status = ark.VtxoStatus(status)
	v.BatchTxid = batchTxid.String
	v.HasBatch = hasBatch != 0
	v.HasExpiry = hasExpiry != 0

	return v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
