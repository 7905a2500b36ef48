package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/studiowebux/mongobar/internal/config"
	"github.com/studiowebux/mongobar/internal/logging"
	"github.com/studiowebux/mongobar/internal/mongodb"
	"github.com/studiowebux/mongobar/internal/trace"
)

var (
	flagPullOut      string
	flagPullStart    string
	flagPullEnd      string
	flagPullDuration time.Duration
	flagPullNS       string
	flagPullEnable   bool
	flagPullDB       string
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Write profiler entries to a trace file",
	Long: `Convert the entries of a database's system.profile collection into a
replayable trace file.

With --enable-profiler the profiler is switched to level 2 for --duration,
then restored to its previous level before the entries are read.`,
	Example: `  mongobar pull --uri mongodb://localhost:27017/shop --duration 10m
  mongobar pull --db shop --start 2026-10-18T09:00:00Z --end 2026-10-18T10:00:00Z --out morning.jsonl
  mongobar pull --db shop --enable-profiler --duration 2m --ns shop.orders`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	f := pullCmd.Flags()
	f.StringVarP(&flagPullOut, "out", "o", "trace.jsonl", "Trace file to write")
	f.StringVar(&flagPullStart, "start", "", "Oldest entry to pull (RFC3339)")
	f.StringVar(&flagPullEnd, "end", "", "Pull entries before this time (RFC3339)")
	f.DurationVar(&flagPullDuration, "duration", 5*time.Minute, "Window to pull when --start is not set, or to capture with --enable-profiler")
	f.StringVar(&flagPullNS, "ns", "", "Only pull this namespace (db.collection)")
	f.BoolVar(&flagPullEnable, "enable-profiler", false, "Profile every operation for --duration before pulling")
	f.StringVar(&flagPullDB, "db", "", "Database to profile (default: from uri)")
}

func runPull(cmd *cobra.Command, args []string) error {
	// replay owns the flag binding of the database key
	if flagPullDB != "" {
		v.Set("database", flagPullDB)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := cfg.ProfilerDatabase()
	if err != nil {
		return err
	}

	window, err := pullWindow(time.Now())
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logging.Component(logger, "pull").WithField("database", db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mongodb.Connect(ctx, mongodb.Options{
		URI:         cfg.URI,
		MaxPoolSize: cfg.PoolSize,
		Logger:      logging.Component(logger, "mongodb"),
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	profiler := client.Profiler(db)

	if flagPullEnable {
		window, err = capture(ctx, profiler, log)
		if err != nil {
			return err
		}
	}

	out, err := config.ExpandPath(flagPullOut)
	if err != nil {
		return err
	}
	w, err := trace.CreateFile(out)
	if err != nil {
		return err
	}

	n, err := profiler.Pull(ctx, mongodb.PullOptions{
		Start:     window.Start,
		End:       window.End,
		Namespace: flagPullNS,
	}, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("pull failed after %d operations: %w", n, err)
	}

	fmt.Printf("Wrote %d operations to %s\n", n, out)
	return nil
}

// pullWindow resolves --start, --end and --duration
func pullWindow(now time.Time) (mongodb.PullOptions, error) {
	var window mongodb.PullOptions
	if flagPullEnd != "" {
		end, err := time.Parse(time.RFC3339, flagPullEnd)
		if err != nil {
			return window, fmt.Errorf("invalid --end: %w", err)
		}
		window.End = end
	}
	if flagPullStart != "" {
		start, err := time.Parse(time.RFC3339, flagPullStart)
		if err != nil {
			return window, fmt.Errorf("invalid --start: %w", err)
		}
		window.Start = start
	} else {
		ref := now
		if !window.End.IsZero() {
			ref = window.End
		}
		window.Start = ref.Add(-flagPullDuration)
	}
	if !window.End.IsZero() && !window.Start.Before(window.End) {
		return window, fmt.Errorf("--start must be before --end")
	}
	return window, nil
}

// capture profiles every operation for the configured duration and
// returns the window it covered
func capture(ctx context.Context, profiler *mongodb.Profiler, log *logrus.Entry) (mongodb.PullOptions, error) {
	restore, err := profiler.Guard(ctx, mongodb.ProfileAll)
	if err != nil {
		return mongodb.PullOptions{}, err
	}
	start := time.Now()
	log.Infof("Profiling every operation for %s", flagPullDuration)

	timer := time.NewTimer(flagPullDuration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	end := time.Now()

	rctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	if err := restore(rctx); err != nil {
		return mongodb.PullOptions{}, fmt.Errorf("failed to restore profiling level: %w", err)
	}
	if ctx.Err() != nil {
		return mongodb.PullOptions{}, ctx.Err()
	}
	return mongodb.PullOptions{Start: start, End: end}, nil
}
