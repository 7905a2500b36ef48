package operation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseLine(t *testing.T) {
	line := []byte(`{"id":"a1","op":"query","ns":"shop.users","ts":1700000000123,"cmd":{"find":"users","filter":{"age":{"$gt":30}}}}`)

	op, err := ParseLine(line, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), op.Seq)
	assert.Equal(t, "a1", op.ID)
	assert.Equal(t, KindFind, op.Kind)
	assert.Equal(t, "shop", op.Database)
	assert.Equal(t, "users", op.Collection)
	assert.Equal(t, "shop.users", op.Namespace())
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), op.Timestamp)
	require.Len(t, op.Payload, 2)
	assert.Equal(t, "find", op.Payload[0].Key)
	assert.Equal(t, "filter", op.Payload[1].Key)
}

func TestNormalizeDBAndCollFields(t *testing.T) {
	op, err := Normalize(Record{Op: "insert", DB: "shop", Coll: "orders", Cmd: []byte(`{"insert":"orders"}`)}, 1)
	require.NoError(t, err)
	assert.Equal(t, "shop.orders", op.Namespace())
	assert.Equal(t, ClassWrite, op.Class())
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"missing namespace", Record{Op: "find", Cmd: []byte(`{}`)}},
		{"missing kind", Record{NS: "a.b", Cmd: []byte(`{}`)}},
		{"unknown kind", Record{Op: "teleport", NS: "a.b"}},
		{"array payload", Record{Op: "find", NS: "a.b", Cmd: []byte(`[1,2]`)}},
		{"scalar payload", Record{Op: "find", NS: "a.b", Cmd: []byte(`"find"`)}},
		{"collection required", Record{Op: "find", NS: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.rec, 3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTrace))

			var me *MalformedError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, int64(3), me.Seq)
		})
	}
}

func TestParseLineInvalidJSON(t *testing.T) {
	_, err := ParseLine([]byte(`{"op":`), 1)
	assert.ErrorIs(t, err, ErrMalformedTrace)
}

func TestParseKindRefinesCommands(t *testing.T) {
	kind, ok := ParseKind("command", bson.D{{Key: "aggregate", Value: "orders"}, {Key: "pipeline", Value: bson.A{}}})
	require.True(t, ok)
	assert.Equal(t, KindAggregate, kind)

	kind, ok = ParseKind("command", bson.D{{Key: "ping", Value: 1}})
	require.True(t, ok)
	assert.Equal(t, KindCommand, kind)

	kind, ok = ParseKind("remove", nil)
	require.True(t, ok)
	assert.Equal(t, KindDelete, kind)
	assert.True(t, kind.Class().Mutates())
}

func TestDatabaseCommandNamespace(t *testing.T) {
	op, err := Normalize(Record{Op: "command", NS: "admin.$cmd", Cmd: []byte(`{"ping":1}`)}, 1)
	require.NoError(t, err)
	assert.Equal(t, "admin", op.Namespace())
	assert.Equal(t, "", op.Collection)
}

func TestToRecordRoundTrip(t *testing.T) {
	op, err := ParseLine([]byte(`{"op":"find","ns":"a.b","ts":5,"cmd":{"find":"b","filter":{"x":1}}}`), 1)
	require.NoError(t, err)

	rec, err := ToRecord(op)
	require.NoError(t, err)
	back, err := Normalize(rec, 1)
	require.NoError(t, err)

	assert.Equal(t, op.Namespace(), back.Namespace())
	assert.Equal(t, op.Timestamp, back.Timestamp)
	assert.Equal(t, op.PayloadJSON(), back.PayloadJSON())
}

func TestStripFields(t *testing.T) {
	doc := bson.D{
		{Key: "find", Value: "users"},
		{Key: "lsid", Value: bson.D{{Key: "id", Value: "x"}}},
		{Key: "readConcern", Value: bson.D{{Key: "level", Value: "majority"}, {Key: "afterClusterTime", Value: 1}}},
	}

	out := StripFields(doc, SessionFields)

	require.Len(t, out, 2)
	assert.Equal(t, "find", out[0].Key)
	assert.Equal(t, bson.D{{Key: "level", Value: "majority"}}, out[1].Value)
	assert.Len(t, doc, 3, "input must not be modified")
}
