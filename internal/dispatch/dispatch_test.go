package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/channel"
	"github.com/okonski/portalwatch/internal/event"
	"github.com/okonski/portalwatch/internal/store"
)

// fakeChannel replays a script of results, one per Send call, and
// repeats the last entry once the script runs out.
type fakeChannel struct {
	name   string
	script []channel.Result

	mu    sync.Mutex
	calls []string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, evt event.Event) channel.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, evt.ID)
	idx := len(f.calls) - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	return f.script[idx]
}

func (f *fakeChannel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memoryStatus struct {
	mu     sync.Mutex
	status map[string]store.Status // "eventID/channel"
}

func newMemoryStatus() *memoryStatus {
	return &memoryStatus{status: make(map[string]store.Status)}
}

func (m *memoryStatus) RecordDelivery(_ context.Context, eventID, channelName string, status store.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[eventID+"/"+channelName] = status
	return nil
}

func (m *memoryStatus) get(eventID, channelName string) store.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[eventID+"/"+channelName]
}

func entry(id string, class store.Class, delivery map[string]store.Status) store.DiffEntry {
	if delivery == nil {
		delivery = map[string]store.Status{}
	}
	return store.DiffEntry{
		Event:    event.Event{ID: id, Title: "Event " + id},
		Class:    class,
		Delivery: delivery,
	}
}

func fastConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		SendTimeout: time.Second,
	}
}

func TestDispatchNewEvents(t *testing.T) {
	chA := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
	chB := &fakeChannel{name: "email", script: []channel.Result{channel.Ok()}}
	st := newMemoryStatus()
	d := New([]channel.Channel{chA, chB}, nil, st, fastConfig(), zerolog.Nop())

	result := &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassNew, nil),
		entry("A2", store.ClassNew, nil),
	}}
	sum := d.Dispatch(context.Background(), result)

	if sum.Delivered != 4 || sum.Failed != 0 {
		t.Fatalf("expected 4 delivered, got %+v", sum)
	}
	for _, id := range []string{"A1", "A2"} {
		for _, ch := range []string{"webhook", "email"} {
			if got := st.get(id, ch); got != store.StatusDelivered {
				t.Errorf("%s/%s: expected delivered, got %q", id, ch, got)
			}
		}
	}
}

func TestDispatchUnchangedSendsNothing(t *testing.T) {
	ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
	d := New([]channel.Channel{ch}, nil, newMemoryStatus(), fastConfig(), zerolog.Nop())

	result := &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassUnchanged, map[string]store.Status{"webhook": store.StatusDelivered}),
		entry("A2", store.ClassUnchanged, map[string]store.Status{"webhook": store.StatusFailed}),
	}}
	sum := d.Dispatch(context.Background(), result)

	if sum.Delivered != 0 || sum.Failed != 0 || ch.callCount() != 0 {
		t.Fatalf("expected zero dispatch for unchanged events, got %+v after %d sends", sum, ch.callCount())
	}
}

func TestDispatchUnchangedFinishesPendingPairs(t *testing.T) {
	ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
	st := newMemoryStatus()
	d := New([]channel.Channel{ch}, nil, st, fastConfig(), zerolog.Nop())

	result := &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassUnchanged, map[string]store.Status{"webhook": store.StatusPending}),
	}}
	sum := d.Dispatch(context.Background(), result)

	if sum.Delivered != 1 {
		t.Fatalf("expected the pending pair to be finished, got %+v", sum)
	}
	if got := st.get("A1", "webhook"); got != store.StatusDelivered {
		t.Errorf("expected delivered, got %q", got)
	}
}

func TestDispatchUpdatedPolicy(t *testing.T) {
	delivered := map[string]store.Status{"webhook": store.StatusDelivered}

	t.Run("policy all re-notifies", func(t *testing.T) {
		ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
		d := New([]channel.Channel{ch}, nil, newMemoryStatus(), fastConfig(), zerolog.Nop())
		sum := d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
			entry("A1", store.ClassUpdated, delivered),
		}})
		if sum.Delivered != 1 {
			t.Fatalf("expected re-notification, got %+v", sum)
		}
	})

	t.Run("policy none suppresses re-notification", func(t *testing.T) {
		ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
		cfg := fastConfig()
		cfg.OnUpdate = PolicyNone
		d := New([]channel.Channel{ch}, nil, newMemoryStatus(), cfg, zerolog.Nop())
		sum := d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
			entry("A1", store.ClassUpdated, delivered),
		}})
		if sum.Delivered != 0 || ch.callCount() != 0 {
			t.Fatalf("expected suppression, got %+v after %d sends", sum, ch.callCount())
		}
	})

	t.Run("policy none still finishes pending pairs", func(t *testing.T) {
		ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
		cfg := fastConfig()
		cfg.OnUpdate = PolicyNone
		d := New([]channel.Channel{ch}, nil, newMemoryStatus(), cfg, zerolog.Nop())
		sum := d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
			entry("A1", store.ClassUpdated, map[string]store.Status{"webhook": store.StatusPending}),
		}})
		if sum.Delivered != 1 {
			t.Fatalf("expected pending pair to be finished, got %+v", sum)
		}
	})

	t.Run("SetPolicy takes effect for later cycles", func(t *testing.T) {
		ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Ok()}}
		d := New([]channel.Channel{ch}, nil, newMemoryStatus(), fastConfig(), zerolog.Nop())
		d.SetPolicy(PolicyNone)
		sum := d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
			entry("A1", store.ClassUpdated, delivered),
		}})
		if ch.callCount() != 0 {
			t.Fatalf("expected swapped policy to suppress, got %+v", sum)
		}
	})
}

func TestDispatchRetriesThenRecovers(t *testing.T) {
	ch := &fakeChannel{name: "webhook", script: []channel.Result{
		channel.Retry("503"),
		channel.Retry("503"),
		channel.Ok(),
	}}
	st := newMemoryStatus()
	d := New([]channel.Channel{ch}, nil, st, fastConfig(), zerolog.Nop())

	sum := d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassNew, nil),
	}})

	if sum.Delivered != 1 || ch.callCount() != 3 {
		t.Fatalf("expected recovery on third attempt, got %+v after %d sends", sum, ch.callCount())
	}
	if got := st.get("A1", "webhook"); got != store.StatusDelivered {
		t.Errorf("expected delivered, got %q", got)
	}
}

func TestDispatchExhaustionIsIsolated(t *testing.T) {
	// First event never succeeds; second must still go out on the same
	// channel, and the healthy channel is unaffected throughout.
	bad := &fakeChannel{name: "webhook", script: []channel.Result{
		channel.Retry("down"), channel.Retry("down"), channel.Retry("down"),
		channel.Ok(),
	}}
	good := &fakeChannel{name: "email", script: []channel.Result{channel.Ok()}}
	st := newMemoryStatus()
	d := New([]channel.Channel{bad, good}, nil, st, fastConfig(), zerolog.Nop())

	sum := d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassNew, nil),
		entry("A2", store.ClassNew, nil),
	}})

	if sum.Failed != 1 {
		t.Fatalf("expected exactly one failed pair, got %+v", sum)
	}
	if sum.Delivered != 3 {
		t.Fatalf("expected the other three pairs delivered, got %+v", sum)
	}
	if got := st.get("A1", "webhook"); got != store.StatusFailed {
		t.Errorf("exhausted pair: expected failed, got %q", got)
	}
	if got := st.get("A2", "webhook"); got != store.StatusDelivered {
		t.Errorf("next event on same channel: expected delivered, got %q", got)
	}
	if got := st.get("A1", "email"); got != store.StatusDelivered {
		t.Errorf("healthy channel: expected delivered, got %q", got)
	}
}

func TestDispatchPermanentRejectionSkipsRetries(t *testing.T) {
	ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Reject("404")}}
	st := newMemoryStatus()
	d := New([]channel.Channel{ch}, nil, st, fastConfig(), zerolog.Nop())

	d.Dispatch(context.Background(), &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassNew, nil),
	}})

	if ch.callCount() != 1 {
		t.Fatalf("expected a single attempt for a permanent rejection, got %d", ch.callCount())
	}
	if got := st.get("A1", "webhook"); got != store.StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
}

func TestDispatchAbandonsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &fakeChannel{name: "webhook", script: []channel.Result{channel.Retry("down")}}
	st := newMemoryStatus()
	d := New([]channel.Channel{ch}, nil, st, fastConfig(), zerolog.Nop())

	cancel()
	sum := d.Dispatch(ctx, &store.CycleResult{Entries: []store.DiffEntry{
		entry("A1", store.ClassNew, nil),
		entry("A2", store.ClassNew, nil),
	}})

	if sum.Abandoned != 2 || sum.Delivered != 0 || sum.Failed != 0 {
		t.Fatalf("expected both pairs abandoned, got %+v", sum)
	}
	if got := st.get("A1", "webhook"); got != "" {
		t.Errorf("abandoned pair must not be given a terminal status, got %q", got)
	}
}
