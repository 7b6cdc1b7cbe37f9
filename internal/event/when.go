package event

import (
	"fmt"
	"time"
)

// Zone normalizes portal-supplied timestamps into one fixed location.
// Shared by the normalizer and the scheduler so every component reasons
// about the same wall clock.
type Zone struct {
	loc *time.Location
}

// LoadZone resolves an IANA timezone name. Empty means UTC.
func LoadZone(name string) (*Zone, error) {
	if name == "" {
		return &Zone{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// Location exposes the underlying location for schedule construction.
func (z *Zone) Location() *time.Location {
	if z == nil || z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// whenFormats are the date shapes portals have been observed to emit.
// Zone-less formats are interpreted in the configured location.
var whenFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2 2006 15:04",
	"Jan 2 2006",
	"01/02/2006 15:04",
	"01/02/2006",
	"2.1.2006",
}

// ParseWhen parses portal date text into the configured zone. Returns the
// zero time if no known format matches; callers treat that as "unscheduled"
// rather than an error, the text still participates in identity.
func (z *Zone) ParseWhen(dateText string) time.Time {
	if dateText == "" {
		return time.Time{}
	}
	for _, layout := range whenFormats {
		if t, err := time.ParseInLocation(layout, dateText, z.Location()); err == nil {
			return t.In(z.Location())
		}
	}
	return time.Time{}
}
