package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/studiowebux/mongobar/internal/config"
	"github.com/studiowebux/mongobar/internal/export"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/history"
	"github.com/studiowebux/mongobar/internal/keybinds"
	"github.com/studiowebux/mongobar/internal/logging"
	"github.com/studiowebux/mongobar/internal/metrics"
	"github.com/studiowebux/mongobar/internal/mongodb"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
	"github.com/studiowebux/mongobar/internal/trace"
	"github.com/studiowebux/mongobar/internal/tui"
	"github.com/studiowebux/mongobar/internal/version"
	"golang.org/x/sync/errgroup"
)

// restoreTimeout bounds cleanup calls made after the run context is gone
const restoreTimeout = 10 * time.Second

var replayCmd = &cobra.Command{
	Use:   "replay [trace]",
	Short: "Replay a trace against the target deployment",
	Long: `Replay a trace file (or a live capture feed) against the deployment in
--uri, showing live per-fingerprint statistics.

Dashboard keys: p pause/resume, +/- workers, c set workers, s sort,
/ search, enter detail, e export, a abort, q quit, ? help.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

var flagHeadless bool

func init() {
	f := replayCmd.Flags()
	f.String("source", "", "Trace source (file/live)")
	f.String("live-url", "", "Websocket url of a live capture feed")
	f.String("pacing", "", "Pacing mode (fast/timed)")
	f.Float64P("multiplier", "m", 0, "Speed multiplier for timed pacing")
	f.Duration("max-delay", 0, "Longest wait between two operations in timed pacing")
	f.Float64("max-rate", 0, "Dispatch rate cap in operations per second (0 = none)")
	f.IntP("concurrency", "c", 0, "Initial number of concurrent operations")
	f.Int("step", 0, "Workers added or removed by +/-")
	f.Duration("op-timeout", 0, "Timeout for a single operation")
	f.Duration("abort-grace", 0, "How long an abort waits for in-flight operations")
	f.Int("failure-threshold", 0, "Consecutive failures before a warning (0 = never)")
	f.Bool("strict", true, "Abort on a malformed trace record instead of skipping it")
	f.Bool("readonly", false, "Skip write, update and delete operations")
	f.Bool("disable-profiler", false, "Turn the profiler off during the replay")
	f.StringSlice("ignore-field", nil, "Field path removed before fingerprinting and execution (repeatable)")
	f.String("filter", "", "JMESPath expression selecting the records to replay")
	f.String("export", "", "Export statistics to this file when the run ends")
	f.String("export-format", "", "Export format for paths without extension (csv/tsv/json/yaml)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	f.Duration("tick", 0, "Dashboard refresh interval")
	f.String("database", "", "Database whose profiler is disabled (default: from uri)")
	f.BoolVar(&flagHeadless, "headless", false, "Run without the dashboard")

	bindFlags(f, map[string]string{
		"source":            "source",
		"live_url":          "live-url",
		"pacing":            "pacing",
		"multiplier":        "multiplier",
		"max_delay":         "max-delay",
		"max_rate":          "max-rate",
		"concurrency":       "concurrency",
		"step":              "step",
		"op_timeout":        "op-timeout",
		"abort_grace":       "abort-grace",
		"failure_threshold": "failure-threshold",
		"strict":            "strict",
		"readonly":          "readonly",
		"disable_profiler":  "disable-profiler",
		"ignore_fields":     "ignore-field",
		"filter":            "filter",
		"export_path":       "export",
		"export_format":     "export-format",
		"metrics_addr":      "metrics-addr",
		"tick":              "tick",
		"database":          "database",
	})
}

func runReplay(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		v.Set("trace", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	interactive := cfg.Dashboard && !flagHeadless
	logger, closer, err := newLogger(cfg, !interactive)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logging.Component(logger, "cmd")

	var logs *tui.LogHook
	if interactive {
		logs = tui.NewLogHook(tui.LogRingSize)
		logger.AddHook(logs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	historyPath, err := config.ExpandPath(cfg.HistoryDB)
	if err != nil {
		return err
	}
	store, err := history.NewStore(historyPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := mongodb.Connect(ctx, mongodb.Options{
		URI:          cfg.URI,
		MaxPoolSize:  cfg.PoolSize,
		IgnoreFields: cfg.IgnoreFields,
		Logger:       logging.Component(logger, "mongodb"),
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.WithError(err).Warn("Failed to disconnect")
		}
	}()

	if cfg.DisableProfiler {
		restore, err := silenceProfiler(ctx, cfg, client)
		if err != nil {
			return err
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
			defer cancel()
			if err := restore(rctx); err != nil {
				log.WithError(err).Error("Failed to restore profiling level")
			}
		}()
	}

	src, live, feed, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	agg := stats.NewAggregator()
	exporter := replay.ExporterFunc(func(path string, run replay.RunSnapshot) error {
		resolved, err := config.ResolveExportPath(path)
		if err != nil {
			return err
		}
		return export.Write(resolved, agg.Snapshot(), run)
	})

	scheduler, err := replay.New(src, client, agg, replay.Options{
		Concurrency: cfg.Concurrency,
		Pacing: replay.Pacing{
			Mode:       replay.PacingMode(cfg.Pacing),
			Multiplier: cfg.Multiplier,
			MaxDelay:   cfg.MaxDelay,
		},
		OpTimeout:        cfg.OpTimeout,
		AbortGrace:       cfg.AbortGrace,
		FailureThreshold: cfg.FailureThreshold,
		MaxRate:          cfg.MaxRate,
		ExportPath:       cfg.ExportFile(),
		Exporter:         exporter,
		Fingerprinter:    fingerprint.New(cfg.IgnoreFields...),
		Classifier:       mongodb.Classify,
		Logger:           logger.WithField("trace", traceLabel(cfg)),
	})
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	var runErr error
	g.Go(func() error {
		runErr = scheduler.Run(gctx)
		return nil
	})

	if feed != nil {
		g.Go(func() error {
			if err := feed.Run(gctx, live); err != nil {
				log.WithError(err).Warn("Live capture feed ended")
			}
			return nil
		})
	}

	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector(agg, scheduler.Snapshot)
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, collector, logging.Component(logger, "metrics"))
		})
	}

	g.Go(func() error {
		defer cancelRun()
		if interactive {
			return runDashboard(gctx, cfg, scheduler, agg, logs, exporter)
		}
		return runHeadless(gctx, scheduler, agg, cfg.Tick, log)
	})

	waitErr := g.Wait()
	<-scheduler.Done()

	final := scheduler.Snapshot()
	if err := store.SaveRun(traceLabel(cfg), final, agg.Snapshot()); err != nil {
		log.WithError(err).Error("Failed to save run history")
	}
	printSummary(final, agg.Snapshot(), scheduler.Skipped())

	if waitErr != nil {
		return waitErr
	}
	return runErr
}

// openSource builds the filtered trace source. For live sources it also
// returns the feed that fills live.
func openSource(cfg *config.Config, logger *logrus.Logger) (src trace.Source, live *trace.LiveSource, feed *trace.WebSocketFeed, err error) {
	switch cfg.Source {
	case "live":
		live = trace.NewLiveSource(trace.LiveBuffer)
		feed = &trace.WebSocketFeed{
			URL:    cfg.LiveURL,
			Strict: cfg.Strict,
			Logger: logging.Component(logger, "live"),
		}
		src = live
	default:
		path, err := config.ExpandPath(cfg.Trace)
		if err != nil {
			return nil, nil, nil, err
		}
		file, err := trace.OpenFile(path, trace.FileOptions{
			Strict: cfg.Strict,
			Logger: logging.Component(logger, "trace"),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		src = file
	}

	keep := []trace.Predicate{trace.Replayable}
	if cfg.ReadOnly {
		keep = append(keep, trace.ReadOnly)
	}
	if cfg.Filter != "" {
		match, err := trace.JMESPath(cfg.Filter)
		if err != nil {
			src.Close()
			return nil, nil, nil, err
		}
		keep = append(keep, match)
	}
	return trace.Filter(src, trace.All(keep...)), live, feed, nil
}

// silenceProfiler turns profiling off and returns the restore func
func silenceProfiler(ctx context.Context, cfg *config.Config, client *mongodb.Client) (func(context.Context) error, error) {
	db, err := cfg.ProfilerDatabase()
	if err != nil {
		return nil, err
	}
	return client.Profiler(db).Guard(ctx, mongodb.ProfileOff)
}

func runDashboard(ctx context.Context, cfg *config.Config, s *replay.Scheduler, agg *stats.Aggregator, logs *tui.LogHook, exporter replay.Exporter) error {
	keybindsPath, err := config.ExpandPath(cfg.Keybinds)
	if err != nil {
		return err
	}
	registry, err := keybinds.LoadOrDefault(keybindsPath)
	if err != nil {
		s.Abort("invalid keybinds")
		return err
	}

	exportPath := cfg.ExportFile()
	if exportPath == "" {
		format := cfg.ExportFormat
		if format == "" {
			format = string(export.FormatCSV)
		}
		exportPath = fmt.Sprintf("mongobar-%s.%s", shortID(s.Snapshot().ID), format)
	}

	model, err := tui.New(tui.Options{
		Runner:     s,
		Stats:      agg,
		Keybinds:   registry,
		Logs:       logs,
		Tick:       cfg.Tick,
		Step:       cfg.Step,
		ExportPath: exportPath,
		Export: func(path string) error {
			return exporter.Export(path, s.Snapshot())
		},
		Trace:   traceLabel(cfg),
		Version: version.Get().Short(),
	})
	if err != nil {
		s.Abort("dashboard failed to start")
		return err
	}

	p := tea.NewProgram(&model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		s.Abort("dashboard failed")
		return fmt.Errorf("dashboard error: %w", err)
	}
	// a force quit leaves the run draining
	s.Abort(tui.ReasonQuit)
	return nil
}

// runHeadless logs progress until the run ends
func runHeadless(ctx context.Context, s *replay.Scheduler, agg *stats.Aggregator, tick time.Duration, log *logrus.Entry) error {
	if tick <= 0 {
		tick = tui.DefaultTick
	}
	ticker := time.NewTicker(tick * 10)
	defer ticker.Stop()

	events := s.Events()
	for {
		select {
		case <-s.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			entry := log.WithField("state", ev.State.String())
			if ev.Warning() {
				entry.Warn(ev.Message)
			} else {
				entry.Info(ev.Message)
			}
		case <-ticker.C:
			run := s.Snapshot()
			view := agg.Snapshot()
			log.WithFields(logrus.Fields{
				"state":      run.State.String(),
				"workers":    run.Limit,
				"in_flight":  run.InFlight,
				"dispatched": run.Dispatched,
				"failed":     run.Failed,
				"ops_per_s":  fmt.Sprintf("%.1f", view.Global.Throughput),
				"p99_ms":     fmt.Sprintf("%.2f", float64(view.Global.P99)/float64(time.Millisecond)),
			}).Info("Progress")
		case <-ctx.Done():
			<-s.Done()
			return nil
		}
	}
}

func printSummary(run replay.RunSnapshot, view stats.View, skipped int64) {
	fmt.Printf("Run %s %s after %s: %s\n", shortID(run.ID), run.State, run.Elapsed.Round(time.Millisecond), run.Reason)
	fmt.Printf("  dispatched %d  completed %d  failed %d  discarded %d  skipped %d\n",
		run.Dispatched, run.Completed, run.Failed, run.Discarded, skipped)
	fmt.Printf("  %d fingerprints  %.1f ops/s  p50 %s  p90 %s  p99 %s\n",
		len(view.Buckets), view.Global.Throughput, view.Global.P50, view.Global.P90, view.Global.P99)
}

func traceLabel(cfg *config.Config) string {
	if cfg.Source == "live" {
		return cfg.LiveURL
	}
	return cfg.Trace
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
