// Package calendar renders events as iCalendar documents so mail
// clients can add them with one click.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/okonski/portalwatch/internal/event"
)

// defaultLength is assumed when the portal publishes only a start time.
const defaultLength = 2 * time.Hour

// GenerateICS renders one event as an RFC 5545 VCALENDAR. Returns the
// empty string when the event has no scheduled time, since a dateless
// VEVENT is useless to a calendar client.
func GenerateICS(evt event.Event) string {
	if evt.ScheduledAt.IsZero() {
		return ""
	}

	var ics strings.Builder
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//portalwatch//portalwatch//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	ics.WriteString("BEGIN:VEVENT\r\n")

	fmt.Fprintf(&ics, "UID:%s@portalwatch\r\n", evt.ID)
	fmt.Fprintf(&ics, "DTSTAMP:%s\r\n", formatICSTime(time.Now()))
	fmt.Fprintf(&ics, "DTSTART:%s\r\n", formatICSTime(evt.ScheduledAt))
	fmt.Fprintf(&ics, "DTEND:%s\r\n", formatICSTime(evt.ScheduledAt.Add(defaultLength)))
	fmt.Fprintf(&ics, "SUMMARY:%s\r\n", escapeICS(evt.Title))

	description := evt.Title
	if evt.Category != "" {
		description = fmt.Sprintf("Category: %s\n%s", evt.Category, description)
	}
	fmt.Fprintf(&ics, "DESCRIPTION:%s\r\n", escapeICS(description))
	if evt.SourceURL != "" {
		fmt.Fprintf(&ics, "URL:%s\r\n", evt.SourceURL)
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes the characters RFC 5545 reserves in text values.
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
