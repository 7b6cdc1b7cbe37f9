package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CycleRecord is the persisted outcome of one completed cycle, consumed by
// the health surface and the status subcommand.
type CycleRecord struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	Outcome          string // "success" or "failure"
	New              int
	Updated          int
	Unchanged        int
	FailedDeliveries int
	Error            string
}

// RecordCycle appends one cycle outcome to the cycle log.
func (s *Store) RecordCycle(ctx context.Context, rec CycleRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycle_log(started_at, finished_at, outcome, new_count, updated_count, unchanged_count, failed_deliveries, error)
		 VALUES(?,?,?,?,?,?,?,?)`,
		formatStamp(rec.StartedAt), formatStamp(rec.FinishedAt), rec.Outcome,
		rec.New, rec.Updated, rec.Unchanged, rec.FailedDeliveries, nullIfEmpty(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("recording cycle: %w", err)
	}
	return nil
}

// LastCycle returns the most recently recorded cycle, if any.
func (s *Store) LastCycle(ctx context.Context) (CycleRecord, bool, error) {
	var (
		rec                 CycleRecord
		startedAt, finished string
		errText             sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, finished_at, outcome, new_count, updated_count, unchanged_count, failed_deliveries, error
		 FROM cycle_log ORDER BY id DESC LIMIT 1`,
	).Scan(&startedAt, &finished, &rec.Outcome, &rec.New, &rec.Updated, &rec.Unchanged, &rec.FailedDeliveries, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return CycleRecord{}, false, nil
	}
	if err != nil {
		return CycleRecord{}, false, fmt.Errorf("loading last cycle: %w", err)
	}
	rec.StartedAt = parseStamp(startedAt)
	rec.FinishedAt = parseStamp(finished)
	if errText.Valid {
		rec.Error = errText.String
	}
	return rec, true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
