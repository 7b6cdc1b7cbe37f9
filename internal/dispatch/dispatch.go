package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/channel"
	"github.com/okonski/portalwatch/internal/event"
	"github.com/okonski/portalwatch/internal/ratelimit"
	"github.com/okonski/portalwatch/internal/store"
)

// Policy controls what happens to a content-updated event that was
// already notified once.
type Policy string

const (
	// PolicyAll re-sends updated events on every channel.
	PolicyAll Policy = "all"
	// PolicyNone treats updates like unchanged events.
	PolicyNone Policy = "none"
)

// Config tunes retry behaviour and the update policy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	OnUpdate    Policy
	// SendTimeout bounds a single delivery attempt. It also serves as the
	// grace period for an in-flight send during shutdown.
	SendTimeout time.Duration
}

func (c *Config) fill() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Minute
	}
	if c.OnUpdate == "" {
		c.OnUpdate = PolicyAll
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
}

// Summary is the per-cycle delivery tally.
type Summary struct {
	Delivered int
	Failed    int
	Abandoned int
}

// statusWriter is the slice of the store the dispatcher needs.
type statusWriter interface {
	RecordDelivery(ctx context.Context, eventID, channel string, status store.Status) error
}

// Dispatcher fans one cycle's events out to the configured channels.
// Channels run concurrently with each other; within a channel, sends
// are strictly serial so the channel's rate bucket is honoured.
type Dispatcher struct {
	channels []channel.Channel
	buckets  map[string]*ratelimit.Bucket
	store    statusWriter
	cfg      Config
	policy   atomic.Value // Policy
	log      zerolog.Logger
}

// New creates a dispatcher. buckets may be nil or sparse; a channel
// without a bucket is never rate limited.
func New(channels []channel.Channel, buckets map[string]*ratelimit.Bucket, st statusWriter, cfg Config, log zerolog.Logger) *Dispatcher {
	cfg.fill()
	d := &Dispatcher{
		channels: channels,
		buckets:  buckets,
		store:    st,
		cfg:      cfg,
		log:      log.With().Str("component", "dispatch").Logger(),
	}
	d.policy.Store(cfg.OnUpdate)
	return d
}

// SetPolicy swaps the update policy at runtime. Takes effect from the
// next cycle.
func (d *Dispatcher) SetPolicy(p Policy) {
	if p != PolicyAll && p != PolicyNone {
		return
	}
	d.policy.Store(p)
}

// eligible decides whether one entry should be sent on one channel.
// New events always go out. Updated events follow the policy, except
// that a still-pending pair from an earlier cycle is always finished.
// Unchanged events only pick up pairs that never reached a terminal
// status; a failed pair stays failed until the event's content changes.
func eligible(entry store.DiffEntry, channelName string, policy Policy) bool {
	status := entry.Delivery[channelName]
	switch entry.Class {
	case store.ClassNew:
		return true
	case store.ClassUpdated:
		if status == store.StatusPending {
			return true
		}
		return policy == PolicyAll
	default:
		return status == store.StatusPending
	}
}

// Dispatch delivers one cycle's eligible events. It blocks until every
// channel worker has drained or given up; per-pair failures never abort
// the rest of the batch. A cancelled ctx abandons the remaining queue,
// leaving those pairs pending for the next cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, result *store.CycleResult) Summary {
	policy, _ := d.policy.Load().(Policy)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sum Summary
	)
	for _, ch := range d.channels {
		var queue []event.Event
		for _, entry := range result.Entries {
			if eligible(entry, ch.Name(), policy) {
				queue = append(queue, entry.Event)
			}
		}
		if len(queue) == 0 {
			continue
		}

		wg.Add(1)
		go func(ch channel.Channel, queue []event.Event) {
			defer wg.Done()
			s := d.drain(ctx, ch, queue)
			mu.Lock()
			sum.Delivered += s.Delivered
			sum.Failed += s.Failed
			sum.Abandoned += s.Abandoned
			mu.Unlock()
		}(ch, queue)
	}
	wg.Wait()
	return sum
}

func (d *Dispatcher) drain(ctx context.Context, ch channel.Channel, queue []event.Event) Summary {
	var sum Summary
	bucket := d.buckets[ch.Name()]
	log := d.log.With().Str("channel", ch.Name()).Logger()

	for i, evt := range queue {
		if ctx.Err() != nil {
			sum.Abandoned += len(queue) - i
			log.Warn().Int("abandoned", len(queue)-i).Msg("shutdown, leaving remaining deliveries pending")
			return sum
		}

		status := d.deliver(ctx, ch, bucket, evt, log)
		if status == "" {
			sum.Abandoned++
			continue
		}
		// Status writes survive ctx cancellation so a finished send is
		// never re-attempted after restart.
		if err := d.store.RecordDelivery(context.WithoutCancel(ctx), evt.ID, ch.Name(), status); err != nil {
			log.Error().Err(err).Str("event_id", evt.ID).Msg("recording delivery status")
		}
		if status == store.StatusDelivered {
			sum.Delivered++
		} else {
			sum.Failed++
		}
	}
	return sum
}

// deliver runs the retry loop for one (event, channel) pair. An empty
// status means the pair was abandoned mid-retry and stays pending.
func (d *Dispatcher) deliver(ctx context.Context, ch channel.Channel, bucket *ratelimit.Bucket, evt event.Event, log zerolog.Logger) store.Status {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.BaseDelay
	bo.MaxInterval = d.cfg.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 1; ; attempt++ {
		if err := bucket.Acquire(ctx); err != nil {
			log.Warn().Err(err).Str("event_id", evt.ID).Msg("rate limit wait interrupted")
			return ""
		}

		res := d.send(ctx, ch, evt)
		switch res.Outcome {
		case channel.Delivered:
			log.Info().Str("event_id", evt.ID).Int("attempt", attempt).Msg("delivered")
			return store.StatusDelivered
		case channel.Permanent:
			log.Error().Str("event_id", evt.ID).Str("reason", res.Reason).Msg("delivery rejected")
			return store.StatusFailed
		}

		if attempt >= d.cfg.MaxAttempts {
			log.Error().Str("event_id", evt.ID).Int("attempts", attempt).
				Str("reason", res.Reason).Msg("delivery attempts exhausted")
			return store.StatusFailed
		}

		wait := bo.NextBackOff()
		log.Warn().Str("event_id", evt.ID).Int("attempt", attempt).
			Dur("retry_in", wait).Str("reason", res.Reason).Msg("delivery failed, retrying")
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(wait):
		}
	}
}

// send runs one attempt under its own deadline. The attempt context is
// detached from ctx so an in-flight send gets its full grace period
// during shutdown instead of being cut off mid-protocol.
func (d *Dispatcher) send(ctx context.Context, ch channel.Channel, evt event.Event) channel.Result {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
	defer cancel()
	return ch.Send(attemptCtx, evt)
}
