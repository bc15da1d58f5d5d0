// Package history persists provider dispatch outcomes and serves them back
// for the history endpoint.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

// Record is one provider outcome of one dispatch.
type Record struct {
	ID         int64         `json:"id"`
	DispatchID string        `json:"dispatch_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Mode       string        `json:"mode"`
	Provider   provider.Kind `json:"provider"`
	Success    bool          `json:"success"`
	Detail     string        `json:"detail,omitempty"`
	DryRun     bool          `json:"dry_run"`
}

// Store provides append-only dispatch history on SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store using the provided database connection
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes one row per outcome, all under the same dispatch ID, in a
// single transaction.
func (s *Store) Append(dispatchID string, m mode.Mode, outcomes []provider.Outcome, dryRun bool) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Unix()
	for _, out := range outcomes {
		_, err := tx.Exec(`
			INSERT INTO dispatch_history (dispatch_id, timestamp, mode, provider, success, detail, dry_run)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, dispatchID, now, m.String(), string(out.Provider), out.Success, out.Detail, dryRun)
		if err != nil {
			return fmt.Errorf("failed to insert history row: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns the newest records first.
func (s *Store) Recent(limit int) ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT id, dispatch_id, timestamp, mode, provider, success, detail, dry_run
		FROM dispatch_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

// ByDispatch returns the records of a single dispatch in insert order.
func (s *Store) ByDispatch(dispatchID string) ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT id, dispatch_id, timestamp, mode, provider, success, detail, dry_run
		FROM dispatch_history
		WHERE dispatch_id = ?
		ORDER BY id ASC
	`, dispatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanRecords(rows)
}

// DeleteOlderThan removes records older than the specified duration (retention policy)
func (s *Store) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := s.db.Exec(`
		DELETE FROM dispatch_history WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		var rec Record
		var detail sql.NullString
		var timestamp int64

		err := rows.Scan(
			&rec.ID, &rec.DispatchID, &timestamp, &rec.Mode, &rec.Provider, &rec.Success, &detail, &rec.DryRun,
		)
		if err != nil {
			return nil, err
		}

		rec.Timestamp = time.Unix(timestamp, 0).UTC()
		if detail.Valid {
			rec.Detail = detail.String
		}

		records = append(records, &rec)
	}

	return records, rows.Err()
}
