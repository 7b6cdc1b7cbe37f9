package event

import (
	"crypto/sha1"
	"fmt"
	"time"
)

// Event is the canonical record for one portal listing.
//
// ID is a stable identity key derived from portal-assigned fields, never
// from scrape order. RawHash covers every normalized field except ID so
// that content edits on an already-known listing are detectable.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	ScheduledAt time.Time `json:"scheduled_at"`
	SourceURL   string    `json:"source_url"`
	RawHash     string    `json:"raw_hash"`
}

// RawEvent is one record as extracted from the portal page, before
// normalization. Fields may carry incidental whitespace and the portal's
// own date formatting.
type RawEvent struct {
	PortalID string
	Title    string
	Category string
	DateText string
	Href     string
}

// IdentityKey derives the stable event ID. The portal-assigned identifier
// wins when present; otherwise the normalized title and date text stand in
// for it so the same listing keys identically across cycles.
func IdentityKey(portalID, title, dateText string) string {
	h := sha1.New()
	if portalID != "" {
		h.Write([]byte("portal-id|" + portalID))
	} else {
		h.Write([]byte("fields|" + foldKey(title) + "|" + foldKey(dateText)))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ContentHash hashes all normalized fields except ID.
func ContentHash(e Event) string {
	h := sha1.New()
	h.Write([]byte(e.Title))
	h.Write([]byte{'|'})
	h.Write([]byte(e.Category))
	h.Write([]byte{'|'})
	if !e.ScheduledAt.IsZero() {
		h.Write([]byte(e.ScheduledAt.UTC().Format(time.RFC3339)))
	}
	h.Write([]byte{'|'})
	h.Write([]byte(e.SourceURL))
	return fmt.Sprintf("%x", h.Sum(nil))
}
