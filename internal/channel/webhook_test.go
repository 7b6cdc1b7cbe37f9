package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/event"
)

func sampleEvent() event.Event {
	return event.Event{
		ID:          "A1",
		Title:       "Hearing X",
		Category:    "hearings",
		ScheduledAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		SourceURL:   "https://portal.example.gov/events/A1",
	}
}

func TestWebhookSend(t *testing.T) {
	t.Run("2xx is delivered", func(t *testing.T) {
		var gotAuth string
		var payload map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&payload)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		wh, err := NewWebhook(WebhookConfig{URL: srv.URL, Token: "tok-123"}, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewWebhook: %v", err)
		}
		res := wh.Send(context.Background(), sampleEvent())
		if res.Outcome != Delivered {
			t.Fatalf("expected delivered, got %s (%s)", res.Outcome, res.Reason)
		}
		if gotAuth != "Bearer tok-123" {
			t.Errorf("expected bearer token header, got %q", gotAuth)
		}
		if payload["event_id"] != "A1" {
			t.Errorf("expected event_id in payload, got %v", payload)
		}
	})

	t.Run("5xx and 429 are retryable", func(t *testing.T) {
		for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			wh, _ := NewWebhook(WebhookConfig{URL: srv.URL}, zerolog.Nop())
			res := wh.Send(context.Background(), sampleEvent())
			srv.Close()
			if res.Outcome != Retryable {
				t.Errorf("status %d: expected retryable, got %s", status, res.Outcome)
			}
		}
	})

	t.Run("4xx is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		wh, _ := NewWebhook(WebhookConfig{URL: srv.URL}, zerolog.Nop())
		res := wh.Send(context.Background(), sampleEvent())
		if res.Outcome != Permanent {
			t.Errorf("expected permanent, got %s", res.Outcome)
		}
	})

	t.Run("connection failure is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		wh, _ := NewWebhook(WebhookConfig{URL: url}, zerolog.Nop())
		res := wh.Send(context.Background(), sampleEvent())
		if res.Outcome != Retryable {
			t.Errorf("expected retryable, got %s", res.Outcome)
		}
	})

	t.Run("missing URL is rejected at construction", func(t *testing.T) {
		if _, err := NewWebhook(WebhookConfig{}, zerolog.Nop()); err == nil {
			t.Fatal("expected error for missing URL")
		}
	})
}
