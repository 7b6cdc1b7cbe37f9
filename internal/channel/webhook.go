package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/event"
)

// WebhookConfig configures the messaging-app webhook adapter.
type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Webhook posts event notifications to a messaging-app webhook endpoint.
type Webhook struct {
	cfg  WebhookConfig
	http *http.Client
	log  zerolog.Logger
}

// NewWebhook creates the webhook adapter.
func NewWebhook(cfg WebhookConfig, log zerolog.Logger) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Webhook{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("channel", "webhook").Logger(),
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

// Send posts one event as JSON. Timeouts and 5xx responses are retryable;
// 4xx responses mean the request itself is bad and retrying cannot help.
func (w *Webhook) Send(ctx context.Context, evt event.Event) Result {
	payload := map[string]any{
		"event_id": evt.ID,
		"text":     FormatEventMessage(evt),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Reject(fmt.Sprintf("marshaling payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Reject(fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return Retry(fmt.Sprintf("posting webhook: %v", err))
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Ok()
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Retry(fmt.Sprintf("webhook status %d: %s", resp.StatusCode, respBody))
	default:
		return Reject(fmt.Sprintf("webhook status %d: %s", resp.StatusCode, respBody))
	}
}
