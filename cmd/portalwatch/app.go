package main

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/okonski/portalwatch/internal/channel"
	"github.com/okonski/portalwatch/internal/config"
	"github.com/okonski/portalwatch/internal/dispatch"
	"github.com/okonski/portalwatch/internal/event"
	"github.com/okonski/portalwatch/internal/health"
	"github.com/okonski/portalwatch/internal/logger"
	"github.com/okonski/portalwatch/internal/monitor"
	"github.com/okonski/portalwatch/internal/portal"
	"github.com/okonski/portalwatch/internal/ratelimit"
	"github.com/okonski/portalwatch/internal/render"
	"github.com/okonski/portalwatch/internal/store"
)

// app is the fully wired pipeline for one process.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	logCloser  io.Closer
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	runner     *monitor.Runner
	tracker    *health.Tracker
	registry   *prometheus.Registry
}

// buildApp wires every component from the configuration. dryRun swaps
// real dispatch for logging.
func buildApp(cfg *config.Config, dryRun bool) (*app, error) {
	log, logCloser, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	zone, err := event.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}

	client := portal.New(portal.Config{
		BaseURL:    cfg.Portal.BaseURL,
		Username:   cfg.Portal.Username,
		Password:   cfg.Portal.Password,
		Timeout:    cfg.Portal.Timeout.Std(),
		MaxRetries: cfg.Portal.MaxRetries,
	}, bucketFor(cfg.Portal.Rate), log)

	channels, buckets, err := buildChannels(cfg, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	tracker := health.New(registry)

	dispatcher := dispatch.New(channels, buckets, st, dispatch.Config{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BaseDelay.Std(),
		MaxDelay:    cfg.Dispatch.MaxDelay.Std(),
		SendTimeout: cfg.Dispatch.SendTimeout.Std(),
		OnUpdate:    dispatch.Policy(cfg.Dispatch.NotifyOnUpdate),
	}, log)

	runner := monitor.New(
		client,
		event.NewNormalizer(zone),
		st,
		dispatcher,
		st,
		tracker,
		cfg.EnabledChannels(),
		monitor.Config{Categories: cfg.Categories, DryRun: dryRun},
		log,
	)

	return &app{
		cfg:        cfg,
		log:        log,
		logCloser:  logCloser,
		store:      st,
		dispatcher: dispatcher,
		runner:     runner,
		tracker:    tracker,
		registry:   registry,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error().Err(err).Msg("closing store")
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func buildChannels(cfg *config.Config, log zerolog.Logger) ([]channel.Channel, map[string]*ratelimit.Bucket, error) {
	var channels []channel.Channel
	buckets := make(map[string]*ratelimit.Bucket)

	if c := cfg.Channels.Email; c.Enabled {
		email, err := channel.NewEmail(channel.EmailConfig{
			Host:     c.Host,
			Port:     c.Port,
			Username: c.Username,
			Password: c.Password,
			From:     c.From,
			To:       c.To,
			Timeout:  c.Timeout.Std(),
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("email channel: %w", err)
		}
		channels = append(channels, email)
		buckets[email.Name()] = bucketFor(c.Rate)
	}

	if c := cfg.Channels.PDF; c.Enabled {
		pdf, err := channel.NewPDF(channel.PDFConfig{OutDir: c.OutDir}, render.NewPDF(""), log)
		if err != nil {
			return nil, nil, fmt.Errorf("pdf channel: %w", err)
		}
		channels = append(channels, pdf)
		buckets[pdf.Name()] = bucketFor(c.Rate)
	}

	if c := cfg.Channels.Webhook; c.Enabled {
		wh, err := channel.NewWebhook(channel.WebhookConfig{
			URL:     c.URL,
			Token:   c.Token,
			Timeout: c.Timeout.Std(),
		}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("webhook channel: %w", err)
		}
		channels = append(channels, wh)
		buckets[wh.Name()] = bucketFor(c.Rate)
	}

	return channels, buckets, nil
}

// bucketFor maps a rate config onto a bucket. Zero per_second means
// unlimited, which a nil bucket expresses.
func bucketFor(r config.Rate) *ratelimit.Bucket {
	if r.PerSecond <= 0 {
		return nil
	}
	burst := r.Burst
	if burst <= 0 {
		burst = 1
	}
	maxWait := r.MaxWait.Std()
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return ratelimit.NewBucket(r.PerSecond, burst, maxWait)
}
