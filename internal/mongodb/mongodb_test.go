package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func mustOp(t *testing.T, kind, ns string, payload bson.D) *operation.Operation {
	t.Helper()
	op, err := operation.New(0, kind, ns, time.Unix(0, 0), payload)
	require.NoError(t, err)
	return op
}

func keys(doc bson.D) []string {
	out := make([]string, len(doc))
	for i, e := range doc {
		out[i] = e.Key
	}
	return out
}

func TestBuildCommandStripsSessionFields(t *testing.T) {
	op := mustOp(t, "find", "shop.users", bson.D{
		{Key: "find", Value: "users"},
		{Key: "filter", Value: bson.D{{Key: "_id", Value: 1}}},
		{Key: "lsid", Value: bson.D{{Key: "id", Value: "x"}}},
		{Key: "$db", Value: "shop"},
		{Key: "$clusterTime", Value: bson.D{}},
	})

	cmd, err := BuildCommand(op, operation.SessionFields)
	require.NoError(t, err)
	assert.Equal(t, []string{"find", "filter"}, keys(cmd))
	assert.Len(t, op.Payload, 5, "payload must not be modified")
}

func TestBuildCommandLeadsWithName(t *testing.T) {
	op := mustOp(t, "query", "shop.users", bson.D{
		{Key: "filter", Value: bson.D{}},
		{Key: "find", Value: "users"},
	})

	cmd, err := BuildCommand(op, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"find", "filter"}, keys(cmd))
	assert.Equal(t, "users", cmd[0].Value)
}

func TestBuildCommandWrapsUpdateStatement(t *testing.T) {
	op := mustOp(t, "update", "shop.users", bson.D{
		{Key: "q", Value: bson.D{{Key: "_id", Value: 1}}},
		{Key: "u", Value: bson.D{{Key: "$set", Value: bson.D{{Key: "a", Value: 2}}}}},
		{Key: "multi", Value: false},
	})

	cmd, err := BuildCommand(op, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"update", "updates"}, keys(cmd))
	assert.Equal(t, "users", cmd[0].Value)
	stmts, ok := cmd[1].Value.(bson.A)
	require.True(t, ok)
	require.Len(t, stmts, 1)
	assert.Equal(t, []string{"q", "u", "multi"}, keys(stmts[0].(bson.D)))
}

func TestBuildCommandWrapsDeleteStatement(t *testing.T) {
	op := mustOp(t, "remove", "shop.users", bson.D{
		{Key: "q", Value: bson.D{{Key: "_id", Value: 1}}},
	})

	cmd, err := BuildCommand(op, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete", "deletes"}, keys(cmd))
	stmt := cmd[1].Value.(bson.A)[0].(bson.D)
	assert.Equal(t, []string{"q", "limit"}, keys(stmt))
	assert.Len(t, op.Payload, 1)
}

func TestBuildCommandAggregateCursor(t *testing.T) {
	op := mustOp(t, "aggregate", "shop.orders", bson.D{
		{Key: "aggregate", Value: "orders"},
		{Key: "pipeline", Value: bson.A{}},
	})

	cmd, err := BuildCommand(op, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"aggregate", "pipeline", "cursor"}, keys(cmd))
}

func TestBuildCommandGeneric(t *testing.T) {
	op := mustOp(t, "command", "admin.$cmd", bson.D{{Key: "ping", Value: 1}})
	cmd, err := BuildCommand(op, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, keys(cmd))
}

func TestBuildCommandRejectsGetMore(t *testing.T) {
	op := mustOp(t, "getmore", "shop.users", bson.D{{Key: "getMore", Value: int64(42)}})
	_, err := BuildCommand(op, nil)
	assert.ErrorIs(t, err, ErrNotReplayable)
}

func TestBuildCommandIgnoreFields(t *testing.T) {
	op := mustOp(t, "find", "shop.users", bson.D{
		{Key: "find", Value: "users"},
		{Key: "comment", Value: "from app"},
		{Key: "filter", Value: bson.D{{Key: "a", Value: 1}, {Key: "tenant", Value: 2}}},
	})
	cmd, err := BuildCommand(op, []string{"comment", "filter.tenant"})
	require.NoError(t, err)
	assert.Equal(t, []string{"find", "filter"}, keys(cmd))
	assert.Equal(t, []string{"a"}, keys(cmd[1].Value.(bson.D)))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want replay.ErrorKind
	}{
		{"nil", nil, replay.ErrorNone},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), replay.ErrorTimeout},
		{"disconnected", mongo.ErrClientDisconnected, replay.ErrorConnection},
		{"command error", mongo.CommandError{Code: 2, Name: "BadValue", Message: "bad"}, replay.ErrorServerRejected},
		{"duplicate key", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}, replay.ErrorServerRejected},
		{"explicit", &replay.ExecutionError{Kind: replay.ErrorConnection, Err: errors.New("x")}, replay.ErrorConnection},
		{"fallback", errors.New("something odd"), replay.ErrorOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestConvertProfile(t *testing.T) {
	ts := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	op, ok := ConvertProfile(ProfileEntry{
		Op: "query", NS: "shop.users", TS: ts,
		Command: bson.D{{Key: "find", Value: "users"}, {Key: "filter", Value: bson.D{}}},
	}, 3)
	require.True(t, ok)
	assert.Equal(t, operation.KindFind, op.Kind)
	assert.Equal(t, "users", op.Collection)
	assert.Equal(t, int64(3), op.Seq)
	assert.True(t, op.Timestamp.Equal(ts))

	op, ok = ConvertProfile(ProfileEntry{
		Op: "command", NS: "shop.orders", TS: ts,
		Command: bson.D{{Key: "aggregate", Value: "orders"}, {Key: "pipeline", Value: bson.A{}}},
	}, 0)
	require.True(t, ok)
	assert.Equal(t, operation.KindAggregate, op.Kind)

	skipped := []ProfileEntry{
		{Op: "query", NS: "shop.system.profile", Command: bson.D{{Key: "find", Value: "system.profile"}}},
		{Op: "insert", NS: "shop.users", Command: bson.D{{Key: "insert", Value: "users"}}},
		{Op: "update", NS: "shop.users", Command: bson.D{{Key: "q", Value: bson.D{}}}},
		{Op: "killcursors", NS: "shop.users", Command: bson.D{{Key: "killCursors", Value: "users"}}},
		{Op: "query", NS: "shop.users"},
	}
	for _, e := range skipped {
		_, ok := ConvertProfile(e, 0)
		assert.False(t, ok, "%s %s", e.Op, e.NS)
	}
}
