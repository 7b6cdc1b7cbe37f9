package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const listingsPage = `<html><body>
<div id="event-listings">
  <div class="event-entry" data-event-id="H-4711">
    <span class="event-title">Zoning Board Hearing</span>
    <span class="event-category">Hearings</span>
    <time datetime="2026-05-01T10:00:00Z">May 1</time>
    <a href="/events/H-4711">details</a>
  </div>
  <div class="event-entry" data-event-id="H-4712">
    <span class="event-title">Budget Committee Session</span>
    <span class="event-category">Committees</span>
    <span class="event-date">2026-05-02</span>
  </div>
</div>
</body></html>`

func testClient(url string, maxRetries uint64) *Client {
	return New(Config{
		BaseURL:      url,
		Username:     "svc-user",
		Password:     "svc-pass",
		Timeout:      5 * time.Second,
		MaxRetries:   maxRetries,
		RetryInitial: time.Millisecond,
	}, nil, zerolog.Nop())
}

func TestFetchEvents(t *testing.T) {
	t.Run("parses listings", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, pass, ok := r.BasicAuth(); !ok || user != "svc-user" || pass != "svc-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(listingsPage))
		}))
		defer srv.Close()

		raws, err := testClient(srv.URL, 0).FetchEvents(context.Background())
		if err != nil {
			t.Fatalf("FetchEvents: %v", err)
		}
		if len(raws) != 2 {
			t.Fatalf("expected 2 raw events, got %d", len(raws))
		}
		if raws[0].PortalID != "H-4711" {
			t.Errorf("expected portal id H-4711, got %q", raws[0].PortalID)
		}
		if raws[0].DateText != "2026-05-01T10:00:00Z" {
			t.Errorf("expected datetime attribute to win, got %q", raws[0].DateText)
		}
		if raws[0].Href != srv.URL+"/events/H-4711" {
			t.Errorf("expected resolved href, got %q", raws[0].Href)
		}
		if raws[1].DateText != "2026-05-02" {
			t.Errorf("expected display date fallback, got %q", raws[1].DateText)
		}
	})

	t.Run("auth rejection is not retried", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := testClient(srv.URL, 5).FetchEvents(context.Background())
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthError, got %v", err)
		}
		if authErr.Status != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", authErr.Status)
		}
		if calls.Load() != 1 {
			t.Errorf("expected exactly 1 call, got %d", calls.Load())
		}
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(listingsPage))
		}))
		defer srv.Close()

		raws, err := testClient(srv.URL, 4).FetchEvents(context.Background())
		if err != nil {
			t.Fatalf("expected retries to recover, got %v", err)
		}
		if len(raws) != 2 {
			t.Errorf("expected 2 raw events, got %d", len(raws))
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
	})

	t.Run("retry exhaustion is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := testClient(srv.URL, 2).FetchEvents(context.Background())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
	})

	t.Run("shape drift is a parse error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body><p>maintenance window</p></body></html>`))
		}))
		defer srv.Close()

		_, err := testClient(srv.URL, 0).FetchEvents(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})
}
