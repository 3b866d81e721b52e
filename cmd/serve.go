package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/netpulse/internal/confwatch"
	"github.com/conneroisu/netpulse/internal/config"
	"github.com/conneroisu/netpulse/internal/eventlog"
	"github.com/conneroisu/netpulse/internal/logging"
	"github.com/conneroisu/netpulse/internal/netclock"
	"github.com/conneroisu/netpulse/internal/probe"
	"github.com/conneroisu/netpulse/internal/sample"
	"github.com/conneroisu/netpulse/internal/scheduler"
	"github.com/conneroisu/netpulse/internal/server"
	"github.com/conneroisu/netpulse/internal/websocket"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("serve: load configuration: %w", err)
	}

	dataDir, err := resolveDataDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("serve: resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("serve: create data directory %q: %w", dataDir, err)
	}

	log := logging.NewLogger(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: "text",
		Output: os.Stderr,
	})

	journal, err := eventlog.OpenJournal(dataDir)
	if err != nil {
		return fmt.Errorf("serve: open event journal: %w", err)
	}
	defer journal.Close()

	targets, err := cfg.BuildTargets()
	if err != nil {
		return fmt.Errorf("serve: build targets: %w", err)
	}

	tcpTransport := probe.NewTCPTransport()
	var icmpTransport probe.ICMPTransport
	if cfg.ProbeType == config.ProbeICMP {
		t, icmpErr := probe.NewICMPTransport()
		if icmpErr != nil {
			log.Warn(context.Background(), icmpErr, "ICMP unavailable, falling back to TCP")
		} else {
			icmpTransport = t
			defer t.Close()
		}
	}

	sched := scheduler.New(netclock.Real(), tcpTransport, icmpTransport, eventlog.NewEventLog(journal))

	schedProbeType := scheduler.ProbeTCP
	if cfg.ProbeType == config.ProbeICMP {
		schedProbeType = scheduler.ProbeICMP
	}
	schedCfg := scheduler.Config{
		ProbeIntervalMillis: cfg.ProbeIntervalMillis,
		ProbeTimeoutMillis:  cfg.ProbeTimeoutMillis,
		ProbeType:           schedProbeType,
		Targets:             targets,
		Thresholds: eventlog.Thresholds{
			LossPercent:  cfg.Thresholds.LossPercent,
			P95Millis:    cfg.Thresholds.P95Millis,
			JitterMillis: cfg.Thresholds.JitterMillis,
		},
	}
	if err := sched.Init(schedCfg); err != nil {
		return fmt.Errorf("serve: initialize scheduler: %w", err)
	}
	defer sched.Free()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.New(ctx, log)
	go hub.Run()

	sched.OnSample(func(targetID string, s sample.Sample) {
		hub.Broadcast(websocket.BuildSampleMessage(targetID, s))
	})
	sched.OnMetrics(func(targetID string, m sample.Metrics) {
		hub.Broadcast(websocket.BuildMetricsMessage(targetID, m))
	})
	sched.OnEvent(func(e eventlog.Event) {
		hub.Broadcast(websocket.BuildEventMessage(e))
	})

	// schedMu guards every access to sched: Tick (from the tick loop
	// below), GetTarget/GetSamples (from HTTP handler goroutines via
	// Server), and SyncTargets (from a reconfiguration request or the
	// config file watcher) must never run concurrently, since Scheduler
	// assumes a single caller goroutine.
	var schedMu sync.Mutex

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := server.New(addr, sched, &schedMu, hub, schedCfg, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go runTickLoop(ctx, sched, &schedMu)

	if cfgPath := viper.ConfigFileUsed(); cfgPath != "" {
		go func() {
			if err := confwatch.Watch(ctx, cfgPath, log, reloadOnConfigChange(ctx, log, srv)); err != nil {
				log.Warn(ctx, err, "config file watcher unavailable")
			}
		}()
	}

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Start() }()

	fmt.Printf("NetPulse listening on http://localhost:%d (probe=%s)\n", cfg.HTTPPort, cfg.ProbeType)

	select {
	case sig := <-sigCh:
		log.Info(ctx, "received shutdown signal", "signal", sig.String())
	case err := <-serveErrCh:
		if err != nil {
			cancel()
			return fmt.Errorf("serve: http server: %w", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, err, "error during server shutdown")
	}

	return nil
}

// runTickLoop drives the scheduler's cooperative FSM until ctx is
// cancelled. Per the scheduler's reactor-poll contract, it never sleeps
// longer than the smaller of Tick's own suggested wait and
// scheduler.ReactorPollCapMillis(), so a completed non-blocking TCP
// connect is never observed more than that many milliseconds late.
func runTickLoop(ctx context.Context, sched *scheduler.Scheduler, schedMu *sync.Mutex) {
	pollCap := netclock.MillisDuration(scheduler.ReactorPollCapMillis())

	for {
		schedMu.Lock()
		wait := sched.Tick()
		schedMu.Unlock()

		sleep := netclock.MillisDuration(wait)
		if sleep > pollCap {
			sleep = pollCap
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// reloadOnConfigChange returns the callback confwatch.Watch invokes
// after the configuration file settles: it reloads Configuration
// through viper, rebuilds the target set, and applies it to the
// running server. Failures are logged and the previous configuration
// keeps running, per the journal/config error-handling convention of
// never letting an ambient failure take the monitor down.
func reloadOnConfigChange(ctx context.Context, log logging.Logger, srv *server.Server) func() {
	return func() {
		if err := viper.ReadInConfig(); err != nil {
			log.Warn(ctx, err, "config reload: re-read failed, keeping previous configuration")
			return
		}
		cfg, err := config.Load()
		if err != nil {
			log.Warn(ctx, err, "config reload: load failed, keeping previous configuration")
			return
		}
		targets, err := cfg.BuildTargets()
		if err != nil {
			log.Warn(ctx, err, "config reload: invalid targets, keeping previous configuration")
			return
		}

		probeType := scheduler.ProbeTCP
		if cfg.ProbeType == config.ProbeICMP {
			probeType = scheduler.ProbeICMP
		}
		reloaded := scheduler.Config{
			ProbeIntervalMillis: cfg.ProbeIntervalMillis,
			ProbeTimeoutMillis:  cfg.ProbeTimeoutMillis,
			ProbeType:           probeType,
			Targets:             targets,
			Thresholds: eventlog.Thresholds{
				LossPercent:  cfg.Thresholds.LossPercent,
				P95Millis:    cfg.Thresholds.P95Millis,
				JitterMillis: cfg.Thresholds.JitterMillis,
			},
		}

		if err := srv.ReloadConfig(reloaded); err != nil {
			log.Warn(ctx, err, "config reload: target sync failed, keeping previous configuration")
			return
		}
		log.Info(ctx, "configuration reloaded from disk")
	}
}

// resolveDataDir expands an empty dataDir to $HOME/.netpulse, the
// default the spec names; an explicit value from Configuration or
// --data-dir is used as-is.
func resolveDataDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	u, err := user.Current()
	if err != nil || u.HomeDir == "" {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(u.HomeDir, ".netpulse"), nil
}
