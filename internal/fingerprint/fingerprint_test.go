package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/mongobar/internal/operation"
)

func mustOp(t *testing.T, line string) *operation.Operation {
	t.Helper()
	op, err := operation.ParseLine([]byte(line), 1)
	require.NoError(t, err)
	return op
}

func TestLiteralValuesCollapse(t *testing.T) {
	a := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"_id":{"$oid":"64b7f0a1c2d3e4f5a6b7c8d9"},"age":31}}}`)
	b := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"_id":{"$oid":"650000000000000000000001"},"age":5000000000}}}`)

	assert.Equal(t, Of(a), Of(b))
	assert.Len(t, Of(a).ID, IDLength)
}

func TestQueriedFieldsDiffer(t *testing.T) {
	a := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"email":"a@b.c"}}}`)
	b := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"name":"a@b.c"}}}`)

	assert.NotEqual(t, Of(a).ID, Of(b).ID)
}

func TestFieldOrderIgnored(t *testing.T) {
	a := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"a":1,"b":"x"}}}`)
	b := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"filter":{"b":"y","a":2},"find":"users"}}`)

	assert.Equal(t, Of(a).ID, Of(b).ID)
}

func TestArrayOrderMatters(t *testing.T) {
	a := mustOp(t, `{"op":"aggregate","ns":"shop.orders","cmd":{"aggregate":"orders","pipeline":[{"$match":{"s":1}},{"$sort":{"t":-1}}]}}`)
	b := mustOp(t, `{"op":"aggregate","ns":"shop.orders","cmd":{"aggregate":"orders","pipeline":[{"$sort":{"t":-1}},{"$match":{"s":1}}]}}`)

	assert.NotEqual(t, Of(a).ID, Of(b).ID)
}

func TestHomogeneousArraysCollapse(t *testing.T) {
	a := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"_id":{"$in":[1,2,3]}}}}`)
	b := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"_id":{"$in":[9]}}}}`)

	assert.Equal(t, Of(a).ID, Of(b).ID)
}

func TestKindAndNamespaceAreHashed(t *testing.T) {
	find := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"filter":{"a":1}}}`)
	count := mustOp(t, `{"op":"count","ns":"shop.users","cmd":{"filter":{"a":1}}}`)
	other := mustOp(t, `{"op":"find","ns":"shop.admins","cmd":{"filter":{"a":1}}}`)

	assert.NotEqual(t, Of(find).ID, Of(count).ID)
	assert.NotEqual(t, Of(find).ID, Of(other).ID)
}

func TestIgnoredFields(t *testing.T) {
	a := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"a":1},"comment":"x"}}`)
	b := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"a":1}}}`)

	assert.NotEqual(t, Of(a).ID, Of(b).ID)
	fp := New("comment")
	assert.Equal(t, fp.Of(a).ID, fp.Of(b).ID)
}

func TestSessionFieldsIgnored(t *testing.T) {
	a := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"a":1},"lsid":{"id":"abc"},"$db":"shop"}}`)
	b := mustOp(t, `{"op":"find","ns":"shop.users","cmd":{"find":"users","filter":{"a":1}}}`)

	assert.Equal(t, Of(a), Of(b))
}

func TestShapePlaceholders(t *testing.T) {
	op := mustOp(t, `{"op":"find","ns":"s.u","cmd":{"find":"u","filter":{"n":"x","ok":true,"d":{"$date":"2024-01-01T00:00:00Z"},"z":null}}}`)

	_, shape := New().Tag(op)
	assert.Equal(t, `{"filter":{"d":<date>,"n":<string>,"ok":<bool>,"z":<null>},"find":<string>}`, shape)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line  string
		class string
	}{
		{`{"op":"find","ns":"s.u","cmd":{"find":"u"}}`, "read.scan"},
		{`{"op":"find","ns":"s.u","cmd":{"find":"u","filter":{"a":1}}}`, "read.point"},
		{`{"op":"find","ns":"s.u","cmd":{"find":"u","filter":{"a":{"$gte":1}}}}`, "read.range"},
		{`{"op":"find","ns":"s.u","cmd":{"find":"u","filter":{"$or":[{"a":1},{"b":2}]}}}`, "read.complex"},
		{`{"op":"find","ns":"s.u","cmd":{"find":"u","filter":{"a":{"$regex":"^x"}}}}`, "read.complex"},
		{`{"op":"insert","ns":"s.u","cmd":{"insert":"u","documents":[{"a":1}]}}`, "write.insert"},
		{`{"op":"update","ns":"s.u","cmd":{"update":"u","updates":[{"q":{"a":{"$lt":3}},"u":{"$set":{"b":1}}}]}}`, "update.range"},
		{`{"op":"remove","ns":"s.u","cmd":{"delete":"u","deletes":[{"q":{"a":1},"limit":1}]}}`, "delete.point"},
		{`{"op":"command","ns":"s.u","cmd":{"aggregate":"u","pipeline":[]}}`, "aggregate.pipeline"},
		{`{"op":"command","ns":"s.$cmd","cmd":{"ping":1}}`, "command.ping"},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			assert.Equal(t, tt.class, Of(mustOp(t, tt.line)).Class)
		})
	}
}
