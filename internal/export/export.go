// Package export writes statistics snapshots to tabular or document files.
//
// CSV and TSV files start with "#" comment lines carrying the run metadata
// (read them with csv.Reader.Comment = '#'), followed by a header and one
// row per fingerprint ordered by count. JSON and YAML files carry the same
// data as a single document including the global rollup.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
	"gopkg.in/yaml.v3"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Header lists the tabular columns in order
var Header = []string{
	"fingerprint", "shape_class", "namespace", "kind", "count", "errors",
	"p50_ms", "p90_ms", "p99_ms", "first_seen", "last_seen", "shape",
}

// FormatFor picks the format from a file extension, defaulting to CSV
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv":
		return FormatTSV
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Row is the exported form of one bucket
type Row struct {
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint"`
	ShapeClass  string  `json:"shape_class" yaml:"shape_class"`
	Namespace   string  `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Kind        string  `json:"kind,omitempty" yaml:"kind,omitempty"`
	Count       int64   `json:"count" yaml:"count"`
	Errors      int64   `json:"errors" yaml:"errors"`
	P50Ms       float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms       float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms       float64 `json:"p99_ms" yaml:"p99_ms"`
	FirstSeen   string  `json:"first_seen,omitempty" yaml:"first_seen,omitempty"`
	LastSeen    string  `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
	Shape       string  `json:"shape,omitempty" yaml:"shape,omitempty"`
}

// Run is the exported run metadata
type Run struct {
	ID         string  `json:"id" yaml:"id"`
	State      string  `json:"state" yaml:"state"`
	Reason     string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	StartedAt  string  `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	EndedAt    string  `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	ElapsedSec float64 `json:"elapsed_sec" yaml:"elapsed_sec"`
	Dispatched int64   `json:"dispatched" yaml:"dispatched"`
	Completed  int64   `json:"completed" yaml:"completed"`
	Failed     int64   `json:"failed" yaml:"failed"`
	Limit      int     `json:"concurrency" yaml:"concurrency"`
	Throughput float64 `json:"throughput" yaml:"throughput"`
}

// Report is the document written for JSON and YAML exports
type Report struct {
	Run          Run   `json:"run" yaml:"run"`
	Global       Row   `json:"global" yaml:"global"`
	Fingerprints []Row `json:"fingerprints" yaml:"fingerprints"`
}

// NewReport converts a snapshot and run state into their exported form
func NewReport(view stats.View, run replay.RunSnapshot) Report {
	r := Report{
		Run: Run{
			ID:         run.ID,
			State:      run.State.String(),
			Reason:     run.Reason,
			StartedAt:  timestamp(run.StartedAt),
			EndedAt:    timestamp(run.EndedAt),
			ElapsedSec: run.Elapsed.Seconds(),
			Dispatched: run.Dispatched,
			Completed:  run.Completed,
			Failed:     run.Failed,
			Limit:      run.Limit,
			Throughput: view.Global.Throughput,
		},
		Global:       toRow(view.Global),
		Fingerprints: make([]Row, 0, len(view.Buckets)),
	}
	for _, b := range view.Sorted(stats.SortVolume) {
		r.Fingerprints = append(r.Fingerprints, toRow(b))
	}
	return r
}

func toRow(b stats.BucketView) Row {
	return Row{
		Fingerprint: b.Fingerprint.ID,
		ShapeClass:  b.Fingerprint.Class,
		Namespace:   b.Namespace,
		Kind:        string(b.Kind),
		Count:       b.Count,
		Errors:      b.Errors,
		P50Ms:       millis(b.P50),
		P90Ms:       millis(b.P90),
		P99Ms:       millis(b.P99),
		FirstSeen:   timestamp(b.FirstSeen),
		LastSeen:    timestamp(b.LastSeen),
		Shape:       b.Shape,
	}
}

// Write exports view to path in the format implied by its extension. The
// file is written to a temporary sibling and renamed into place.
func Write(path string, view stats.View, run replay.RunSnapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	report := NewReport(view, run)
	if err := Encode(tmp, FormatFor(path), report); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set export permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// Encode writes report to w in the given format
func Encode(w io.Writer, format Format, report Report) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode JSON export: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode YAML export: %w", err)
		}
		return enc.Close()
	case FormatTSV:
		return encodeTable(w, '\t', report)
	default:
		return encodeTable(w, ',', report)
	}
}

func encodeTable(w io.Writer, comma rune, report Report) error {
	run := report.Run
	meta := []string{
		"# run " + run.ID,
		"# state " + run.State,
		"# reason " + oneLine(run.Reason),
		"# started " + run.StartedAt,
		"# ended " + run.EndedAt,
		fmt.Sprintf("# elapsed_sec %.3f", run.ElapsedSec),
		fmt.Sprintf("# dispatched %d completed %d failed %d", run.Dispatched, run.Completed, run.Failed),
		fmt.Sprintf("# throughput %.2f", run.Throughput),
	}
	for _, line := range meta {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write export header: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, r := range report.Fingerprints {
		record := []string{
			r.Fingerprint,
			r.ShapeClass,
			r.Namespace,
			r.Kind,
			strconv.FormatInt(r.Count, 10),
			strconv.FormatInt(r.Errors, 10),
			strconv.FormatFloat(r.P50Ms, 'f', 3, 64),
			strconv.FormatFloat(r.P90Ms, 'f', 3, 64),
			strconv.FormatFloat(r.P99Ms, 'f', 3, 64),
			r.FirstSeen,
			r.LastSeen,
			r.Shape,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}
