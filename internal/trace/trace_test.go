package trace

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/mongobar/internal/operation"
)

const sampleTrace = `{"op":"query","ns":"shop.users","ts":0,"cmd":{"find":"users","filter":{"a":1}}}
{"op":"query","ns":"shop.users","ts":100,"cmd":{"find":"users","filter":{"a":2}}}

{"op":"insert","ns":"shop.users","ts":300,"cmd":{"insert":"users","documents":[{"a":3}]}}
`

func writeTrace(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func drain(t *testing.T, src Source) []*operation.Operation {
	t.Helper()
	var ops []*operation.Operation
	for {
		op, err := src.Next(context.Background())
		if errors.Is(err, ErrEndOfTrace) {
			return ops
		}
		require.NoError(t, err)
		ops = append(ops, op)
	}
}

func TestFileSourceOrderAndTimestamps(t *testing.T) {
	src, err := OpenFile(writeTrace(t, "t.jsonl", sampleTrace), FileOptions{Strict: true})
	require.NoError(t, err)
	defer src.Close()

	ops := drain(t, src)
	require.Len(t, ops, 3)
	assert.Equal(t, operation.KindFind, ops[0].Kind)
	assert.Equal(t, operation.KindInsert, ops[2].Kind)
	for i, op := range ops {
		assert.Equal(t, int64(i), op.Seq)
	}
	assert.Equal(t, int64(300), ops[2].Timestamp.UnixMilli())

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, ErrEndOfTrace)
}

func TestFileSourceReset(t *testing.T) {
	src, err := OpenFile(writeTrace(t, "t.jsonl", sampleTrace), FileOptions{})
	require.NoError(t, err)
	defer src.Close()

	first := drain(t, src)
	require.NoError(t, src.Reset())
	second := drain(t, src)

	require.Len(t, second, len(first))
	assert.Equal(t, first[0].PayloadJSON(), second[0].PayloadJSON())
}

func TestFileSourceStrictness(t *testing.T) {
	content := sampleTrace + "{not json}\n" + `{"op":"find","ns":"shop.users","ts":400,"cmd":{"find":"users"}}` + "\n"
	path := writeTrace(t, "bad.jsonl", content)

	t.Run("strict aborts", func(t *testing.T) {
		src, err := OpenFile(path, FileOptions{Strict: true})
		require.NoError(t, err)
		defer src.Close()

		for i := 0; i < 3; i++ {
			_, err := src.Next(context.Background())
			require.NoError(t, err)
		}
		_, err = src.Next(context.Background())
		assert.ErrorIs(t, err, operation.ErrMalformedTrace)
	})

	t.Run("lenient skips", func(t *testing.T) {
		src, err := OpenFile(path, FileOptions{Strict: false})
		require.NoError(t, err)
		defer src.Close()

		ops := drain(t, src)
		assert.Len(t, ops, 4)
		assert.Equal(t, int64(1), src.Dropped())
	})
}

func TestFileSourceGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleTrace))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	src, err := OpenFile(path, FileOptions{Strict: true})
	require.NoError(t, err)
	defer src.Close()
	assert.Len(t, drain(t, src), 3)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.jsonl"), FileOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTraceRead)
}

func TestLiveSourceBlocksUntilPush(t *testing.T) {
	src := NewLiveSource(1)
	op, err := operation.ParseLine([]byte(`{"op":"find","ns":"a.b","cmd":{}}`), 0)
	require.NoError(t, err)

	got := make(chan *operation.Operation, 1)
	go func() {
		o, err := src.Next(context.Background())
		if err == nil {
			got <- o
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before anything was pushed")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, src.Push(context.Background(), op))
	select {
	case o := <-got:
		assert.Same(t, op, o)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Push")
	}
}

func TestLiveSourceDrainsBeforeEnd(t *testing.T) {
	src := NewLiveSource(4)
	for i := 0; i < 3; i++ {
		op, err := operation.ParseLine([]byte(`{"op":"find","ns":"a.b","cmd":{}}`), int64(i))
		require.NoError(t, err)
		require.NoError(t, src.Push(context.Background(), op))
	}
	require.NoError(t, src.Close())

	ops := drain(t, src)
	assert.Len(t, ops, 3)
	assert.ErrorIs(t, src.Push(context.Background(), ops[0]), ErrClosed)
}

func TestLiveSourceCloseWithError(t *testing.T) {
	src := NewLiveSource(0)
	boom := &ReadError{Path: "ws://x", Err: errors.New("reset")}
	src.CloseWithError(boom)

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, ErrTraceRead)
}

func TestLiveSourceContextCancel(t *testing.T) {
	src := NewLiveSource(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFilters(t *testing.T) {
	lines := []string{
		`{"op":"find","ns":"shop.users","cmd":{"find":"users"}}`,
		`{"op":"insert","ns":"shop.users","cmd":{"insert":"users"}}`,
		`{"op":"aggregate","ns":"shop.users","cmd":{"aggregate":"users","pipeline":[{"$match":{}},{"$out":"copy"}]}}`,
		`{"op":"getmore","ns":"shop.users","cmd":{"getMore":1}}`,
		`{"op":"find","ns":"shop.orders","cmd":{"find":"orders"}}`,
	}
	var ops []*operation.Operation
	for i, l := range lines {
		op, err := operation.ParseLine([]byte(l), int64(i))
		require.NoError(t, err)
		ops = append(ops, op)
	}

	t.Run("read only", func(t *testing.T) {
		src := Filter(FromSlice(ops), All(ReadOnly, Replayable))
		got := drain(t, src)
		require.Len(t, got, 2)
		assert.Equal(t, int64(3), src.Dropped())
	})

	t.Run("jmespath", func(t *testing.T) {
		pred, err := JMESPath("coll == 'orders'")
		require.NoError(t, err)
		got := drain(t, Filter(FromSlice(ops), pred))
		require.Len(t, got, 1)
		assert.Equal(t, "shop.orders", got[0].Namespace())
	})

	t.Run("invalid jmespath", func(t *testing.T) {
		_, err := JMESPath("coll ==")
		assert.Error(t, err)
	})
}

func TestWriterRoundTrip(t *testing.T) {
	src := FromSlice(nil)
	for i, l := range strings.Split(strings.TrimSpace(sampleTrace), "\n") {
		if l == "" {
			continue
		}
		op, err := operation.ParseLine([]byte(l), int64(i))
		require.NoError(t, err)
		src.ops = append(src.ops, op)
	}

	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := CreateFile(path)
	require.NoError(t, err)
	for _, op := range drain(t, src) {
		require.NoError(t, w.Write(op))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, int64(3), w.Written())

	back, err := OpenFile(path, FileOptions{Strict: true})
	require.NoError(t, err)
	defer back.Close()
	ops := drain(t, back)
	require.Len(t, ops, 3)
	assert.Equal(t, int64(100), ops[1].Timestamp.UnixMilli())
}
