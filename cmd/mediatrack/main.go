// Package main provides the mediatrack command line entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/mediatrack/internal/app/notification"
	"github.com/osa030/mediatrack/internal/app/script"
	"github.com/osa030/mediatrack/internal/app/session"
	"github.com/osa030/mediatrack/internal/infra/config"
	"github.com/osa030/mediatrack/internal/infra/logger"
)

var (
	app        = kingpin.New("mediatrack", "media session tracking tool")
	configPath = app.Flag("config", "Path to config file (defaults are used when empty)").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	// check-config command
	checkConfigCmd = app.Command("check-config", "Validate the configuration and exit")

	// replay command
	replayCmd         = app.Command("replay", "Replay a scripted playback session and log emitted events")
	replayScript      = replayCmd.Arg("script", "Path to script file").Required().ExistingFile()
	replayStopOnError = replayCmd.Flag("stop-on-error", "Abort on the first rejected action").Bool()
	replayMetrics     = replayCmd.Flag("metrics-addr", "Serve Prometheus metrics on this address while replaying").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	switch command {
	case checkConfigCmd.FullCommand():
		zlog.Info().Msgf("config ok: heartbeat=%v state_limit=%d idle_timeout=%v advance_playhead=%t",
			cfg.Tracker.HeartbeatInterval(), cfg.Tracker.StateLimit, cfg.Tracker.IdleTimeout(), cfg.Tracker.AdvancePlayhead)
	case replayCmd.FullCommand():
		if err := replay(cfg, *replayScript, *replayStopOnError, *replayMetrics); err != nil {
			zlog.Error().Err(err).Msg("replay failed")
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func replay(cfg *config.Config, path string, stopOnError bool, metricsAddr string) error {
	s, err := script.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	tracker := session.NewTracker(session.Config{
		HeartbeatInterval: cfg.Tracker.HeartbeatInterval(),
		StateLimit:        cfg.Tracker.StateLimit,
		IdleTimeout:       cfg.Tracker.IdleTimeout(),
		AdvancePlayhead:   cfg.Tracker.AdvancePlayhead,
	})
	tracker.Notifier().Subscribe(notification.LogSink())
	tracker.Notifier().Subscribe(notification.NewMetricsSink(reg))
	tracker.Start(ctx)
	defer tracker.Close()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			zlog.Info().Msgf("serving metrics on %s", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-done:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var rejected int
	g.Go(func() error {
		defer close(done)
		zlog.Info().Msgf("replaying %s: media=%s steps=%d", path, s.Media.ID, len(s.Steps))
		var runErr error
		rejected, runErr = s.Run(gctx, tracker, script.Options{StopOnError: stopOnError})
		return runErr
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snap, err := tracker.Snapshot()
	if err != nil {
		return err
	}
	zlog.Info().Msgf("replay finished: phase=%s playhead=%.1f rejected=%d", snap.Phase, snap.Playhead, rejected)
	return nil
}
