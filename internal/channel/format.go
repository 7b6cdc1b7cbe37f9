package channel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okonski/portalwatch/internal/event"
)

// FormatEventMessage renders one event as a plain-text notification body,
// shared by the email and webhook adapters.
func FormatEventMessage(evt event.Event) string {
	var b strings.Builder
	b.WriteString("📌 " + evt.Title + "\n")
	if evt.Category != "" {
		b.WriteString("Category: " + evt.Category + "\n")
	}
	if !evt.ScheduledAt.IsZero() {
		b.WriteString("When: " + evt.ScheduledAt.Format("Mon, 2 Jan 2006 15:04 MST") + "\n")
	}
	if evt.SourceURL != "" {
		b.WriteString("🔗 " + evt.SourceURL + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDigest renders a batch of events grouped by category, used for
// the dry-run summary.
func FormatDigest(events []event.Event) string {
	if len(events) == 0 {
		return "No new events."
	}

	byCategory := make(map[string][]event.Event)
	for _, evt := range events {
		byCategory[evt.Category] = append(byCategory[evt.Category], evt)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "%d event(s)\n\n", len(events))
	for _, c := range categories {
		name := c
		if name == "" {
			name = "uncategorized"
		}
		fmt.Fprintf(&b, "📍 %s (%d)\n", name, len(byCategory[c]))
		for _, evt := range byCategory[c] {
			b.WriteString("  • " + evt.Title)
			if !evt.ScheduledAt.IsZero() {
				b.WriteString(" (" + evt.ScheduledAt.Format("Jan 2 2006") + ")")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
