package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
	"gopkg.in/yaml.v3"
)

func sampleView() (stats.View, replay.RunSnapshot) {
	seen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	view := stats.View{
		Taken:   seen.Add(time.Minute),
		Elapsed: time.Minute,
		Global: stats.BucketView{
			Fingerprint: fingerprint.Fingerprint{ID: stats.GlobalID},
			Count:       12,
			Errors:      1,
			P50:         2 * time.Millisecond,
			Throughput:  0.2,
		},
		Buckets: []stats.BucketView{
			{
				Fingerprint: fingerprint.Fingerprint{ID: "aaaaaaaaaaaaaaaa", Class: "write.insert"},
				Namespace:   "shop.orders",
				Kind:        operation.KindInsert,
				Shape:       `{"documents":[{"_id":"<number>"}...]}`,
				Count:       2,
				Errors:      1,
				P50:         1500 * time.Microsecond,
				FirstSeen:   seen,
				LastSeen:    seen.Add(time.Second),
			},
			{
				Fingerprint: fingerprint.Fingerprint{ID: "bbbbbbbbbbbbbbbb", Class: "read.point"},
				Namespace:   "shop.users",
				Kind:        operation.KindFind,
				Shape:       `{"filter":{"_id":"<number>"}}`,
				Count:       10,
				P50:         2 * time.Millisecond,
				P90:         3 * time.Millisecond,
				P99:         4 * time.Millisecond,
				FirstSeen:   seen,
				LastSeen:    seen.Add(2 * time.Second),
			},
		},
	}
	run := replay.RunSnapshot{
		ID:         "run-1",
		State:      replay.StateStopped,
		Limit:      4,
		StartedAt:  seen,
		EndedAt:    seen.Add(time.Minute),
		Elapsed:    time.Minute,
		Dispatched: 12,
		Completed:  12,
		Failed:     1,
		Reason:     "trace\nexhausted",
	}
	return view, run
}

func TestFormatFor(t *testing.T) {
	cases := map[string]Format{
		"out.csv":      FormatCSV,
		"out.TSV":      FormatTSV,
		"out.json":     FormatJSON,
		"out.yml":      FormatYAML,
		"out.yaml":     FormatYAML,
		"out":          FormatCSV,
		"dir.json/out": FormatCSV,
	}
	for path, want := range cases {
		assert.Equal(t, want, FormatFor(path), path)
	}
}

func TestWriteCSV(t *testing.T) {
	view, run := sampleView()
	path := filepath.Join(t.TempDir(), "nested", "stats.csv")
	require.NoError(t, Write(path, view, run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# run run-1\n"))
	assert.Contains(t, string(data), "# state stopped\n")
	assert.Contains(t, string(data), "# reason trace exhausted\n")

	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])

	// ordered by count
	assert.Equal(t, "bbbbbbbbbbbbbbbb", records[1][0])
	assert.Equal(t, "read.point", records[1][1])
	assert.Equal(t, "10", records[1][4])
	assert.Equal(t, "2.000", records[1][6])
	assert.Equal(t, "4.000", records[1][8])
	assert.Equal(t, "2024-03-01T12:00:00Z", records[1][9])
	assert.Equal(t, `{"filter":{"_id":"<number>"}}`, records[1][11])

	assert.Equal(t, "aaaaaaaaaaaaaaaa", records[2][0])
	assert.Equal(t, "1", records[2][5])
	assert.Equal(t, "1.500", records[2][6])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteTSV(t *testing.T) {
	view, run := sampleView()
	path := filepath.Join(t.TempDir(), "stats.tsv")
	require.NoError(t, Write(path, view, run))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.Comment = '#'
	r.LazyQuotes = true
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "shop.users", records[1][2])
}

func TestWriteJSON(t *testing.T) {
	view, run := sampleView()
	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, Write(path, view, run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "run-1", report.Run.ID)
	assert.Equal(t, "stopped", report.Run.State)
	assert.Equal(t, int64(12), report.Global.Count)
	require.Len(t, report.Fingerprints, 2)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", report.Fingerprints[0].Fingerprint)
}

func TestWriteYAML(t *testing.T) {
	view, run := sampleView()
	path := filepath.Join(t.TempDir(), "stats.yaml")
	require.NoError(t, Write(path, view, run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var report Report
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.Equal(t, 4, report.Run.Limit)
	require.Len(t, report.Fingerprints, 2)
	assert.Equal(t, "write.insert", report.Fingerprints[1].ShapeClass)
}

func TestWriteOverwritesExisting(t *testing.T) {
	view, run := sampleView()
	path := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0600))
	require.NoError(t, Write(path, view, run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestWriteEmptyView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, Write(path, stats.View{}, replay.RunSnapshot{ID: "x"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comment = '#'
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{Header}, records)
}
