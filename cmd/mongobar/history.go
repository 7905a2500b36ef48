package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/studiowebux/mongobar/internal/config"
	"github.com/studiowebux/mongobar/internal/history"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past replay runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store) error {
			runs, err := store.ListRuns(flagHistoryLimit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATE\tELAPSED\tWORKERS\tOPS\tFAILED\tOPS/S\tP99\tTRACE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.1f\t%.2fms\t%s\n",
					shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.State,
					r.Elapsed.Round(time.Second), r.Concurrency, r.Completed, r.Failed,
					r.Throughput, r.P99Ms, r.Trace)
			}
			return w.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its per-fingerprint statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store) error {
			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			buckets, err := store.GetBuckets(run.ID)
			if err != nil {
				return err
			}

			fmt.Printf("Run      %s\n", run.ID)
			fmt.Printf("Trace    %s\n", run.Trace)
			fmt.Printf("State    %s (%s)\n", run.State, run.Reason)
			fmt.Printf("Started  %s\n", run.StartedAt.Local().Format(time.DateTime))
			fmt.Printf("Elapsed  %s with %d workers\n", run.Elapsed.Round(time.Millisecond), run.Concurrency)
			fmt.Printf("Ops      %d dispatched, %d completed, %d failed, %d discarded\n",
				run.Dispatched, run.Completed, run.Failed, run.Discarded)
			fmt.Printf("Latency  p50 %.2fms  p90 %.2fms  p99 %.2fms  (%.1f ops/s)\n\n",
				run.P50Ms, run.P90Ms, run.P99Ms, run.Throughput)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FINGERPRINT\tNAMESPACE\tKIND\tCOUNT\tERRORS\tP50\tP90\tP99\tCLASS")
			for _, b := range buckets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2fms\t%.2fms\t%.2fms\t%s\n",
					b.Fingerprint, b.Namespace, b.Kind, b.Count, b.Errors,
					b.P50Ms, b.P90Ms, b.P99Ms, b.ShapeClass)
			}
			return w.Flush()
		})
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store) error {
			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteRun(run.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", run.ID)
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRmCmd)
}

// withStore opens the history database for the duration of fn
func withStore(fn func(store *history.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := config.ExpandPath(cfg.HistoryDB)
	if err != nil {
		return err
	}
	store, err := history.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
