package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SettlementOutcome records the result of one completed settlement round,
// mirroring settlement.Result without importing that package — the cache
// only needs to remember what happened, not drive a new round.
type SettlementOutcome struct {
	RoundTxid         string
	ForfeitsSubmitted int
	SettlementSigned  bool
	CompletedAt       time.Time
}

// SaveSettlementOutcome records a completed settlement round.
func (s *Store) SaveSettlementOutcome(o SettlementOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	completedAt := o.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO settlement_outcomes (round_txid, forfeits_submitted, settlement_signed, completed_at)
		VALUES (?, ?, ?, ?)
	`, o.RoundTxid, o.ForfeitsSubmitted, boolToInt(o.SettlementSigned), completedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: saving settlement outcome: %w", err)
	}
	return nil
}

// LastSettlementOutcome returns the most recently completed settlement
// round, or nil if none has been recorded yet.
func (s *Store) LastSettlementOutcome() (*SettlementOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT round_txid, forfeits_submitted, settlement_signed, completed_at
		FROM settlement_outcomes ORDER BY completed_at DESC, id DESC LIMIT 1
	`)

	var o SettlementOutcome
	var signed int
	var completedAt int64

	err := row.Scan(&o.RoundTxid, &o.ForfeitsSubmitted, &signed, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading last settlement outcome: %w", err)
	}

	o.SettlementSigned = signed != 0
	o.CompletedAt = time.Unix(completedAt, 0)
	return &o, nil
}
