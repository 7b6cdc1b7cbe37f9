// Package render produces the PDF documents the export channel writes.
package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/okonski/portalwatch/internal/event"
)

// PDF renders event listings as a single-column A4 document.
type PDF struct {
	title string
}

// NewPDF creates a renderer. title heads every document.
func NewPDF(title string) *PDF {
	if title == "" {
		title = "Portal event notification"
	}
	return &PDF{title: title}
}

// Render produces one document covering events. Honors ctx between
// events so a shutdown does not wait on a large batch.
func (p *PDF) Render(ctx context.Context, events []event.Event) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(p.title, true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, p.title, "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(120, 120, 120)
	doc.CellFormat(0, 6, "Generated "+time.Now().UTC().Format("2 Jan 2006 15:04 MST"), "", 1, "L", false, 0, "")
	doc.Ln(4)

	for _, evt := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc.SetTextColor(0, 0, 0)
		doc.SetFont("Helvetica", "B", 12)
		doc.MultiCell(0, 7, evt.Title, "", "L", false)

		doc.SetFont("Helvetica", "", 10)
		if evt.Category != "" {
			doc.CellFormat(0, 6, "Category: "+evt.Category, "", 1, "L", false, 0, "")
		}
		if !evt.ScheduledAt.IsZero() {
			doc.CellFormat(0, 6, "Scheduled: "+evt.ScheduledAt.Format("Mon, 2 Jan 2006 15:04 MST"), "", 1, "L", false, 0, "")
		}
		if evt.SourceURL != "" {
			doc.SetTextColor(0, 0, 200)
			doc.CellFormat(0, 6, evt.SourceURL, "", 1, "L", false, 0, evt.SourceURL)
			doc.SetTextColor(0, 0, 0)
		}
		doc.Ln(4)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering document: %w", err)
	}
	return buf.Bytes(), nil
}
