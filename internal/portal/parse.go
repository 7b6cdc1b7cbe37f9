package portal

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okonski/portalwatch/internal/event"
)

// parseEvents extracts raw records from the portal's listings page.
//
// The page contract: a #event-listings container holding .event-entry
// nodes, each carrying a data-event-id attribute plus .event-title,
// .event-category and .event-date children and an optional detail link.
// A missing container is shape drift and fails the cycle; a malformed
// individual entry is skipped.
func parseEvents(r io.Reader, baseURL string) ([]event.RawEvent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	container := doc.Find("#event-listings")
	if container.Length() == 0 {
		return nil, &ParseError{Reason: "listing container not found"}
	}

	base, _ := url.Parse(baseURL)

	raws := make([]event.RawEvent, 0)
	container.Find(".event-entry").Each(func(_ int, sel *goquery.Selection) {
		raw := event.RawEvent{
			PortalID: strings.TrimSpace(sel.AttrOr("data-event-id", "")),
			Title:    sel.Find(".event-title").First().Text(),
			Category: sel.Find(".event-category").First().Text(),
			DateText: entryDate(sel),
			Href:     entryHref(sel, base),
		}
		if raw.PortalID == "" && strings.TrimSpace(raw.Title) == "" {
			return
		}
		raws = append(raws, raw)
	})

	return raws, nil
}

// entryDate prefers a machine-readable datetime attribute over display text.
func entryDate(sel *goquery.Selection) string {
	if dt := sel.Find("time").First().AttrOr("datetime", ""); dt != "" {
		return dt
	}
	return sel.Find(".event-date").First().Text()
}

// entryHref resolves the entry's detail link against the listings URL.
func entryHref(sel *goquery.Selection, base *url.URL) string {
	href := sel.Find("a").First().AttrOr("href", "")
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(ref).String()
	}
	return ref.String()
}
