package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/okonski/portalwatch/internal/event"
)

func TestGenerateICS(t *testing.T) {
	evt := event.Event{
		ID:          "A1",
		Title:       "Hearing; budget, part 2",
		Category:    "hearings",
		ScheduledAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		SourceURL:   "https://portal.example.gov/events/A1",
	}

	ics := GenerateICS(evt)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"UID:A1@portalwatch",
		"DTSTART:20260501T100000Z",
		"DTEND:20260501T120000Z",
		`SUMMARY:Hearing\; budget\, part 2`,
		"URL:https://portal.example.gov/events/A1",
		"END:VCALENDAR",
	} {
		if !strings.Contains(ics, want) {
			t.Errorf("missing %q in:\n%s", want, ics)
		}
	}
	if !strings.HasSuffix(ics, "\r\n") {
		t.Error("expected CRLF line endings")
	}
}

func TestGenerateICSWithoutSchedule(t *testing.T) {
	if got := GenerateICS(event.Event{ID: "A1", Title: "No date"}); got != "" {
		t.Errorf("expected empty output for an unscheduled event, got %q", got)
	}
}
