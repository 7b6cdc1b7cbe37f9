package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/event"
)

// Renderer is the document-rendering collaborator's contract: a byte
// stream for a list of events. The rendering implementation itself lives
// outside this package.
type Renderer interface {
	Render(ctx context.Context, events []event.Event) ([]byte, error)
}

// PDFConfig configures the document export adapter.
type PDFConfig struct {
	OutDir string
}

// PDF renders one document per event and writes it to the export
// directory for downstream pickup.
type PDF struct {
	render Renderer
	outDir string
	log    zerolog.Logger
}

// NewPDF creates the export adapter. The export directory is created if
// missing.
func NewPDF(cfg PDFConfig, renderer Renderer, log zerolog.Logger) (*PDF, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &PDF{
		render: renderer,
		outDir: cfg.OutDir,
		log:    log.With().Str("channel", "pdf").Logger(),
	}, nil
}

func (p *PDF) Name() string { return "pdf" }

// Send renders the event and writes <id>.pdf atomically. Renderer
// failures are permanent unless the context expired mid-render; write
// failures are transient (the disk may recover by the next attempt).
func (p *PDF) Send(ctx context.Context, evt event.Event) Result {
	data, err := p.render.Render(ctx, []event.Event{evt})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Retry(fmt.Sprintf("render interrupted: %v", err))
		}
		return Reject(fmt.Sprintf("render failed: %v", err))
	}

	final := filepath.Join(p.outDir, evt.ID+".pdf")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Retry(fmt.Sprintf("writing export: %v", err))
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return Retry(fmt.Sprintf("publishing export: %v", err))
	}
	p.log.Debug().Str("event_id", evt.ID).Str("path", final).Msg("document exported")
	return Ok()
}
