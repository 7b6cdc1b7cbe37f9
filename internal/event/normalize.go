package event

import (
	"fmt"
	"strings"
)

// Normalizer converts raw portal records into canonical Events. It is pure:
// no I/O, no clock reads. All timestamps are normalized into the single
// configured zone.
type Normalizer struct {
	zone *Zone
}

// NewNormalizer creates a Normalizer producing timestamps in the given zone.
func NewNormalizer(zone *Zone) *Normalizer {
	return &Normalizer{zone: zone}
}

// Normalize validates and canonicalizes one raw record. Incidental
// formatting differences in the raw payload (whitespace, field casing of
// the category) do not change the resulting ID or RawHash.
func (n *Normalizer) Normalize(raw RawEvent) (Event, error) {
	title := collapseSpace(raw.Title)
	portalID := strings.TrimSpace(raw.PortalID)
	if title == "" && portalID == "" {
		return Event{}, fmt.Errorf("raw event has neither portal id nor title")
	}

	dateText := collapseSpace(raw.DateText)
	evt := Event{
		ID:          IdentityKey(portalID, title, dateText),
		Title:       title,
		Category:    strings.ToLower(collapseSpace(raw.Category)),
		ScheduledAt: n.zone.ParseWhen(dateText),
		SourceURL:   strings.TrimSpace(raw.Href),
	}
	evt.RawHash = ContentHash(evt)
	return evt, nil
}

// NormalizeAll normalizes a fetch's worth of raw records and collapses
// duplicate IDs: the record fetched later wins, holding its position from
// the first sighting. Invalid records are dropped and reported.
func (n *Normalizer) NormalizeAll(raws []RawEvent) (events []Event, dropped int) {
	index := make(map[string]int, len(raws))
	for _, raw := range raws {
		evt, err := n.Normalize(raw)
		if err != nil {
			dropped++
			continue
		}
		if at, ok := index[evt.ID]; ok {
			events[at] = evt
			continue
		}
		index[evt.ID] = len(events)
		events = append(events, evt)
	}
	return events, dropped
}

// collapseSpace trims and squeezes all interior whitespace runs to a
// single space, so re-flowed portal markup keys identically.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldKey is the case-insensitive form used for identity derivation.
func foldKey(s string) string {
	return strings.ToLower(collapseSpace(s))
}
