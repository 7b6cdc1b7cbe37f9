package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/okonski/portalwatch/internal/event"
)

func TestRender(t *testing.T) {
	r := NewPDF("Test export")
	events := []event.Event{
		{
			ID:          "A1",
			Title:       "Public hearing on zoning",
			Category:    "hearings",
			ScheduledAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
			SourceURL:   "https://portal.example.gov/events/A1",
		},
		{ID: "B2", Title: "Committee session"},
	}

	data, err := r.Render(context.Background(), events)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("expected a PDF header, got %q", data[:min(8, len(data))])
	}

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := r.Render(ctx, events); err == nil {
			t.Fatal("expected cancellation error")
		}
	})
}
