package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/okonski/portalwatch/internal/config"
	"github.com/okonski/portalwatch/internal/dispatch"
	"github.com/okonski/portalwatch/internal/logger"
	"github.com/okonski/portalwatch/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring daemon",
		Long: `Runs cycles on the configured schedule until interrupted. SIGHUP
triggers an immediate cycle outside the schedule; config file changes
are picked up live for the log level and the update policy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
}

func runDaemon(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.Schedule, a.runner.Cycle, a.log)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, a, cfg.MetricsAddr)
	}
	go watchConfig(ctx, a)
	go watchSIGHUP(ctx, a, sched)

	// One immediate cycle so a fresh deployment does not sit idle until
	// the first tick.
	if err := sched.TriggerNow(ctx); err != nil && ctx.Err() == nil {
		a.log.Error().Err(err).Msg("initial cycle failed")
	}

	sched.Start(ctx)
	a.log.Info().Str("schedule", cfg.Schedule).Msg("daemon running")

	<-ctx.Done()
	a.log.Info().Msg("shutting down")

	select {
	case <-sched.Stop():
	case <-time.After(time.Minute):
		a.log.Warn().Msg("shutdown grace period elapsed with a cycle still running")
	}
	return nil
}

func serveMetrics(ctx context.Context, a *app, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if last, ok := a.tracker.Last(); ok && !last.OK {
			http.Error(w, "last cycle failed: "+last.Error, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error().Err(err).Msg("metrics server failed")
	}
}

// watchConfig applies the reloadable subset of the configuration: log
// level and update policy. Everything else requires a restart.
func watchConfig(ctx context.Context, a *app) {
	err := config.Watch(ctx, flagConfig, func(cfg *config.Config) {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			a.log.Warn().Err(err).Msg("reloaded log level is invalid, keeping previous")
		}
		a.dispatcher.SetPolicy(dispatch.Policy(cfg.Dispatch.NotifyOnUpdate))
	}, a.log)
	if err != nil && ctx.Err() == nil {
		a.log.Warn().Err(err).Msg("config watch stopped")
	}
}

func watchSIGHUP(ctx context.Context, a *app, sched *scheduler.Scheduler) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := sched.TriggerNow(ctx); errors.Is(err, scheduler.ErrCycleRunning) {
				a.log.Info().Msg("cycle already running, manual trigger ignored")
			} else if err != nil {
				a.log.Error().Err(err).Msg("manual cycle failed")
			}
		}
	}
}
