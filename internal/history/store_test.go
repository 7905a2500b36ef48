package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/mongobar/internal/fingerprint"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, started time.Time) (replay.RunSnapshot, stats.View) {
	run := replay.RunSnapshot{
		ID:         id,
		State:      replay.StateStopped,
		Limit:      8,
		StartedAt:  started,
		EndedAt:    started.Add(90 * time.Second),
		Elapsed:    90 * time.Second,
		Dispatched: 30,
		Completed:  30,
		Failed:     2,
		Reason:     "trace exhausted",
	}
	view := stats.View{
		Global: stats.BucketView{Count: 30, Errors: 2, P50: time.Millisecond, P99: 9 * time.Millisecond, Throughput: 0.33},
		Buckets: []stats.BucketView{
			{
				Fingerprint: fingerprint.Fingerprint{ID: "1111111111111111", Class: "read.point"},
				Namespace:   "shop.users",
				Kind:        operation.KindFind,
				Count:       10,
				P99:         2 * time.Millisecond,
				FirstSeen:   started,
				LastSeen:    started.Add(time.Minute),
				Shape:       `{"filter":{"_id":"<number>"}}`,
			},
			{
				Fingerprint: fingerprint.Fingerprint{ID: "2222222222222222", Class: "write.insert"},
				Namespace:   "shop.orders",
				Kind:        operation.KindInsert,
				Count:       20,
				Errors:      2,
			},
		},
	}
	return run, view
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run, view := testRun("0f3c2a10-aaaa", started)

	require.NoError(t, s.SaveRun("trace.jsonl", run, view))

	got, err := s.GetRun("0f3c2a10-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "trace.jsonl", got.Trace)
	assert.Equal(t, "stopped", got.State)
	assert.Equal(t, "trace exhausted", got.Reason)
	assert.True(t, got.StartedAt.Equal(started))
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(started.Add(90*time.Second)))
	assert.Equal(t, 90*time.Second, got.Elapsed)
	assert.Equal(t, 8, got.Concurrency)
	assert.Equal(t, int64(2), got.Failed)
	assert.InDelta(t, 9.0, got.P99Ms, 0.001)

	buckets, err := s.GetBuckets(got.ID)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2222222222222222", buckets[0].Fingerprint)
	assert.Nil(t, buckets[0].FirstSeen)
	assert.Equal(t, "read.point", buckets[1].ShapeClass)
	require.NotNil(t, buckets[1].LastSeen)
	assert.True(t, buckets[1].LastSeen.Equal(started.Add(time.Minute)))
}

func TestGetRunByPrefix(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	for _, id := range []string{"abc-1", "abd-2"} {
		run, view := testRun(id, now)
		require.NoError(t, s.SaveRun("t", run, view))
	}

	got, err := s.GetRun("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc-1", got.ID)

	_, err = s.GetRun("ab")
	assert.ErrorIs(t, err, ErrAmbiguousRun)

	_, err = s.GetRun("zzz")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		run, view := testRun(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.SaveRun("t", run, view))
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = s.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestSaveRunReplaces(t *testing.T) {
	s := newTestStore(t)
	run, view := testRun("same", time.Now())
	require.NoError(t, s.SaveRun("t", run, view))

	view.Buckets = view.Buckets[:1]
	run.State = replay.StateAborted
	require.NoError(t, s.SaveRun("t", run, view))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetRun("same")
	require.NoError(t, err)
	assert.Equal(t, "aborted", got.State)

	buckets, err := s.GetBuckets("same")
	require.NoError(t, err)
	assert.Len(t, buckets, 1)
}

func TestDeleteRunCascades(t *testing.T) {
	s := newTestStore(t)
	run, view := testRun("gone", time.Now())
	require.NoError(t, s.SaveRun("t", run, view))
	require.NoError(t, s.DeleteRun("gone"))

	buckets, err := s.GetBuckets("gone")
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "history.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
}
