package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/okonski/portalwatch/internal/event"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Status is the delivery state of one (event, channel) pair.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// SeenEntry is the persisted record for one event identity.
type SeenEntry struct {
	ID             string
	Title          string
	Category       string
	ScheduledAt    time.Time
	SourceURL      string
	RawHash        string
	FirstSeenAt    time.Time
	LastNotifiedAt time.Time // zero until a channel first delivers
	Delivery       map[string]Status
}

// Store owns SeenEntry lifecycle. No other component mutates rows.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the store at path. The parent directory is created
// if needed; committed rows survive restart.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// SQLite prefers a single writer; the pool is the write serializer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordDelivery updates the delivery status for one (event, channel)
// pair. Idempotent: recording the same terminal outcome twice is a no-op.
// A delivered outcome also stamps the entry's last_notified_at.
func (s *Store) RecordDelivery(ctx context.Context, eventID, channel string, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_status(event_id, channel, status, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(event_id, channel) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at`,
		eventID, channel, string(status), now,
	)
	if err != nil {
		return fmt.Errorf("recording delivery: %w", err)
	}
	if status == StatusDelivered {
		_, err = s.db.ExecContext(ctx,
			`UPDATE seen_events SET last_notified_at=? WHERE id=?`, now, eventID)
		if err != nil {
			return fmt.Errorf("stamping last_notified_at: %w", err)
		}
	}
	return nil
}

// Entry returns the persisted entry for id, with its per-channel statuses.
func (s *Store) Entry(ctx context.Context, id string) (SeenEntry, bool, error) {
	var (
		entry        SeenEntry
		scheduledAt  string
		firstSeenAt  string
		lastNotified sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, category, scheduled_at, source_url, raw_hash, first_seen_at, last_notified_at
		 FROM seen_events WHERE id = ?`, id,
	).Scan(&entry.ID, &entry.Title, &entry.Category, &scheduledAt, &entry.SourceURL,
		&entry.RawHash, &firstSeenAt, &lastNotified)
	if errors.Is(err, sql.ErrNoRows) {
		return SeenEntry{}, false, nil
	}
	if err != nil {
		return SeenEntry{}, false, fmt.Errorf("loading entry: %w", err)
	}

	entry.ScheduledAt = parseStamp(scheduledAt)
	entry.FirstSeenAt = parseStamp(firstSeenAt)
	if lastNotified.Valid {
		entry.LastNotifiedAt = parseStamp(lastNotified.String)
	}

	entry.Delivery, err = s.deliveryFor(ctx, s.db, id)
	if err != nil {
		return SeenEntry{}, false, err
	}
	return entry, true, nil
}

// Each iterates all persisted entries. fn returning an error stops the walk.
func (s *Store) Each(ctx context.Context, fn func(SeenEntry) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen_events ORDER BY first_seen_at, id`)
	if err != nil {
		return fmt.Errorf("iterating entries: %w", err)
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, id := range ids {
		entry, ok, err := s.Entry(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) deliveryFor(ctx context.Context, q querier, eventID string) (map[string]Status, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT channel, status FROM delivery_status WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading delivery status: %w", err)
	}
	defer rows.Close()

	delivery := make(map[string]Status)
	for rows.Next() {
		var channel, status string
		if err := rows.Scan(&channel, &status); err != nil {
			return nil, err
		}
		delivery[channel] = Status(status)
	}
	return delivery, rows.Err()
}

func parseStamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// eventColumns is the tuple written for both inserts and content updates.
func eventArgs(evt event.Event) []any {
	return []any{evt.Title, evt.Category, formatStamp(evt.ScheduledAt), evt.SourceURL, evt.RawHash}
}
