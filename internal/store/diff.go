package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okonski/portalwatch/internal/event"
)

// Class is an event's relationship to the seen set within one cycle.
type Class string

const (
	ClassNew       Class = "new"
	ClassUpdated   Class = "updated"
	ClassUnchanged Class = "unchanged"
)

// DiffEntry is one event's classification plus its committed per-channel
// delivery state, read back inside the diff transaction.
type DiffEntry struct {
	Event    event.Event
	Class    Class
	Delivery map[string]Status
}

// CycleResult is the partition of one fetch into new/updated/unchanged.
type CycleResult struct {
	Entries []DiffEntry
}

// Events returns the events of one class, in fetch order.
func (r *CycleResult) Events(class Class) []event.Event {
	var out []event.Event
	for _, e := range r.Entries {
		if e.Class == class {
			out = append(out, e.Event)
		}
	}
	return out
}

// Count returns how many entries fall into class.
func (r *CycleResult) Count(class Class) int {
	n := 0
	for _, e := range r.Entries {
		if e.Class == class {
			n++
		}
	}
	return n
}

// Diff classifies events against the seen set and persists the outcome in
// a single transaction: new entries are inserted, content updates rewrite
// the stored fields and hash, and every configured channel gets a pending
// delivery row if it has none. The diff the caller receives is already
// committed, so a crash after Diff returns cannot re-notify on restart.
func (s *Store) Diff(ctx context.Context, events []event.Event, channels []string) (*CycleResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning diff: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	result := &CycleResult{Entries: make([]DiffEntry, 0, len(events))}

	for _, evt := range events {
		var prevHash string
		err := tx.QueryRowContext(ctx,
			`SELECT raw_hash FROM seen_events WHERE id = ?`, evt.ID).Scan(&prevHash)

		var class Class
		switch {
		case errors.Is(err, sql.ErrNoRows):
			class = ClassNew
			args := append([]any{evt.ID}, eventArgs(evt)...)
			args = append(args, now)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO seen_events(id, title, category, scheduled_at, source_url, raw_hash, first_seen_at)
				 VALUES(?,?,?,?,?,?,?)`, args...); err != nil {
				return nil, fmt.Errorf("inserting %s: %w", evt.ID, err)
			}
		case err != nil:
			return nil, fmt.Errorf("looking up %s: %w", evt.ID, err)
		case prevHash != evt.RawHash:
			class = ClassUpdated
			args := append(eventArgs(evt), evt.ID)
			if _, err := tx.ExecContext(ctx,
				`UPDATE seen_events SET title=?, category=?, scheduled_at=?, source_url=?, raw_hash=? WHERE id=?`,
				args...); err != nil {
				return nil, fmt.Errorf("updating %s: %w", evt.ID, err)
			}
		default:
			class = ClassUnchanged
		}

		for _, channel := range channels {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO delivery_status(event_id, channel, status, updated_at) VALUES(?,?,?,?)
				 ON CONFLICT(event_id, channel) DO NOTHING`,
				evt.ID, channel, string(StatusPending), now); err != nil {
				return nil, fmt.Errorf("seeding delivery rows for %s: %w", evt.ID, err)
			}
		}

		delivery, err := s.deliveryFor(ctx, tx, evt.ID)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, DiffEntry{Event: evt, Class: class, Delivery: delivery})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing diff: %w", err)
	}
	return result, nil
}
