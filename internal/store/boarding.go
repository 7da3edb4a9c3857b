package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arkwallet/arkwalletd/internal/ark"
)

// SaveBoardingUTXO upserts a cached boarding UTXO.
func (s *Store) SaveBoardingUTXO(b ark.BoardingUTXO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tapscripts, err := json.Marshal(b.Tapscripts)
	if err != nil {
		return fmt.Errorf("store: encoding boarding tapscripts: %w", err)
	}

	query := `
		INSERT INTO boarding_utxos (txid, vout, value, script, tapscripts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(txid, vout) DO UPDATE SET
			value = excluded.value,
			script = excluded.script,
			tapscripts = excluded.tapscripts,
			updated_at = excluded.updated_at
	`

	_, err = s.db.Exec(query,
		b.Outpoint.Txid, b.Outpoint.Vout, b.Value,
		hex.EncodeToString(b.Script), string(tapscripts), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: saving boarding utxo %s:%d: %w", b.Outpoint.Txid, b.Outpoint.Vout, err)
	}
	return nil
}

// DeleteBoardingUTXO removes a boarding UTXO from the cache, once it has
// been converted into a vtxo by a settlement round.
func (s *Store) DeleteBoardingUTXO(o ark.Outpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM boarding_utxos WHERE txid = ? AND vout = ?`, o.Txid, o.Vout)
	if err != nil {
		return fmt.Errorf("store: deleting boarding utxo %s:%d: %w", o.Txid, o.Vout, err)
	}
	return nil
}

// BoardingUTXOs returns every cached boarding UTXO.
func (s *Store) BoardingUTXOs() ([]ark.BoardingUTXO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT txid, vout, value, script, tapscripts FROM boarding_utxos ORDER BY txid, vout
	`)
	if err != nil {
		return nil, fmt.Errorf("store: listing boarding utxos: %w", err)
	}
	defer rows.Close()

	var out []ark.BoardingUTXO
	for rows.Next() {
		b, err := scanBoardingUTXO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBoardingUTXO(rows *sql.Rows) (ark.BoardingUTXO, error) {
	var b ark.BoardingUTXO
	var scriptHex, tapscriptsJSON string

	if err := rows.Scan(&b.Outpoint.Txid, &b.Outpoint.Vout, &b.Value, &scriptHex, &tapscriptsJSON); err != nil {
		return b, fmt.Errorf("store: scanning boarding utxo row: %w", err)
	}

	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return b, fmt.Errorf("store: decoding boarding utxo script: %w", err)
	}
	b.Script = script

	if err := json.Unmarshal([]byte(tapscriptsJSON), &b.Tapscripts); err != nil {
		return b, fmt.Errorf("store: decoding boarding utxo tapscripts: %w", err)
	}

	return b, nil
}
