// Package monitor orchestrates one full cycle: fetch the portal,
// normalize, diff against the seen set, dispatch notifications, and
// record the outcome for the health surface.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/channel"
	"github.com/okonski/portalwatch/internal/dispatch"
	"github.com/okonski/portalwatch/internal/event"
	"github.com/okonski/portalwatch/internal/health"
	"github.com/okonski/portalwatch/internal/store"
)

// Fetcher retrieves the raw listings from the portal.
type Fetcher interface {
	FetchEvents(ctx context.Context) ([]event.RawEvent, error)
}

// Differ classifies a fetch against the seen set and persists the result.
type Differ interface {
	Diff(ctx context.Context, events []event.Event, channels []string) (*store.CycleResult, error)
}

// Sender delivers one cycle's eligible events.
type Sender interface {
	Dispatch(ctx context.Context, result *store.CycleResult) dispatch.Summary
}

// CycleLogger persists per-cycle outcomes for status reporting.
type CycleLogger interface {
	RecordCycle(ctx context.Context, rec store.CycleRecord) error
}

// Config tunes the runner.
type Config struct {
	// Categories restricts dispatch to the named categories
	// (lowercased). Empty means all.
	Categories []string
	// DryRun logs what would be dispatched without touching any channel.
	DryRun bool
}

// Runner executes cycles. One Runner serves all cycles of a process;
// the scheduler guarantees they never overlap.
type Runner struct {
	fetch    Fetcher
	norm     *event.Normalizer
	differ   Differ
	sender   Sender
	cycles   CycleLogger
	tracker  *health.Tracker
	channels []string
	cfg      Config
	log      zerolog.Logger
}

// New wires a runner. channels is the set of channel names the store
// tracks delivery for; tracker and cycles may be nil in tests.
func New(f Fetcher, norm *event.Normalizer, differ Differ, sender Sender, cycles CycleLogger, tracker *health.Tracker, channels []string, cfg Config, log zerolog.Logger) *Runner {
	return &Runner{
		fetch:    f,
		norm:     norm,
		differ:   differ,
		sender:   sender,
		cycles:   cycles,
		tracker:  tracker,
		channels: channels,
		cfg:      cfg,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Cycle runs one fetch-to-dispatch pass. Fetch and parse failures abort
// the cycle; delivery failures do not.
func (r *Runner) Cycle(ctx context.Context) error {
	started := time.Now().UTC()
	r.log.Info().Msg("cycle started")

	raws, err := r.fetch.FetchEvents(ctx)
	if err != nil {
		r.finish(ctx, started, store.CycleRecord{Outcome: "failure", Error: err.Error()}, dispatch.Summary{})
		return fmt.Errorf("fetching events: %w", err)
	}

	events, dropped := r.norm.NormalizeAll(raws)
	if dropped > 0 {
		r.log.Warn().Int("dropped", dropped).Msg("records without identity were skipped")
	}
	events = r.filterCategories(events)

	result, err := r.differ.Diff(ctx, events, r.channels)
	if err != nil {
		r.finish(ctx, started, store.CycleRecord{Outcome: "failure", Error: err.Error()}, dispatch.Summary{})
		return fmt.Errorf("classifying events: %w", err)
	}

	rec := store.CycleRecord{
		Outcome:   "success",
		New:       result.Count(store.ClassNew),
		Updated:   result.Count(store.ClassUpdated),
		Unchanged: result.Count(store.ClassUnchanged),
	}

	var sum dispatch.Summary
	if r.cfg.DryRun {
		r.logDryRun(result)
	} else {
		sum = r.sender.Dispatch(ctx, result)
		rec.FailedDeliveries = sum.Failed
	}

	r.finish(ctx, started, rec, sum)
	r.log.Info().
		Int("new", rec.New).Int("updated", rec.Updated).Int("unchanged", rec.Unchanged).
		Int("delivered", sum.Delivered).Int("failed", sum.Failed).Int("abandoned", sum.Abandoned).
		Dur("took", time.Since(started)).
		Msg("cycle finished")
	return nil
}

func (r *Runner) filterCategories(events []event.Event) []event.Event {
	if len(r.cfg.Categories) == 0 {
		return events
	}
	allowed := make(map[string]bool, len(r.cfg.Categories))
	for _, c := range r.cfg.Categories {
		allowed[c] = true
	}
	kept := events[:0]
	for _, evt := range events {
		if allowed[evt.Category] {
			kept = append(kept, evt)
		}
	}
	return kept
}

func (r *Runner) logDryRun(result *store.CycleResult) {
	for _, class := range []store.Class{store.ClassNew, store.ClassUpdated} {
		for _, evt := range result.Events(class) {
			r.log.Info().
				Str("class", string(class)).
				Str("event_id", evt.ID).
				Msg("dry run, would dispatch:\n" + channel.FormatEventMessage(evt))
		}
	}
	if fresh := result.Events(store.ClassNew); len(fresh) > 0 {
		r.log.Info().Msg("dry run digest:\n" + channel.FormatDigest(fresh))
	}
}

// finish records the cycle in the store and the health tracker. Uses a
// detached context so a shutdown mid-cycle still leaves a record.
func (r *Runner) finish(ctx context.Context, started time.Time, rec store.CycleRecord, sum dispatch.Summary) {
	rec.StartedAt = started
	rec.FinishedAt = time.Now().UTC()

	if r.cycles != nil {
		if err := r.cycles.RecordCycle(context.WithoutCancel(ctx), rec); err != nil {
			r.log.Error().Err(err).Msg("recording cycle outcome")
		}
	}
	if r.tracker != nil {
		r.tracker.Record(health.CycleStatus{
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
			OK:         rec.Outcome == "success",
			Error:      rec.Error,
			New:        rec.New,
			Updated:    rec.Updated,
			Unchanged:  rec.Unchanged,
			Delivered:  sum.Delivered,
			Failed:     sum.Failed,
		})
	}
}
