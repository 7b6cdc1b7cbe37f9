package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/event"
	"github.com/okonski/portalwatch/internal/ratelimit"
)

const userAgent = "portalwatch/1.0 (github.com/okonski/portalwatch)"

// Config holds the portal connection parameters. Credentials are treated
// as opaque: they are sent on the wire and never logged or persisted.
type Config struct {
	BaseURL      string
	Username     string
	Password     string
	Timeout      time.Duration
	MaxRetries   uint64
	RetryInitial time.Duration
}

// Client issues authenticated requests against the portal.
type Client struct {
	cfg    Config
	http   *http.Client
	bucket *ratelimit.Bucket
	log    zerolog.Logger
}

// New creates a portal client. Every outbound call acquires from bucket
// first; a nil bucket disables limiting.
func New(cfg Config, bucket *ratelimit.Bucket, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		bucket: bucket,
		log:    log.With().Str("component", "portal").Logger(),
	}
}

// FetchEvents retrieves and parses the current listings. Transport
// failures are retried with exponential backoff up to the configured
// bound; auth rejection and shape drift fail immediately.
func (c *Client) FetchEvents(ctx context.Context) ([]event.RawEvent, error) {
	if err := c.bucket.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("portal fetch: %w", err)
	}

	var body []byte
	fetch := func() error {
		b, err := c.fetchOnce(ctx)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitial
	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("portal fetch failed, retrying")
	}
	err := backoff.RetryNotify(fetch, backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx), notify)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Err: err}
	}

	raws, err := parseEvents(bytes.NewReader(body), c.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int("records", len(raws)).Msg("portal fetch complete")
	return raws, nil
}

// fetchOnce performs a single authenticated GET. Auth rejections come back
// wrapped in backoff.Permanent so the retry loop stops immediately.
func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching listings: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(&AuthError{Status: resp.StatusCode})
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
