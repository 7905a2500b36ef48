// Package fingerprint derives stable shape identities for operations.
//
// Literal scalar values are replaced by type placeholders while field
// names, query operators and array structure are kept, so operations that
// differ only in their literal values share a fingerprint. Object keys are
// sorted before hashing; arrays keep their order, except that arrays whose
// elements all normalize to the same shape collapse to a single
// "[shape...]" element so batch and $in sizes do not split groups.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/studiowebux/mongobar/internal/operation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDLength is the number of hex characters in a fingerprint id
const IDLength = 16

// Fingerprint is the grouping key for operations of the same shape
type Fingerprint struct {
	ID    string
	Class string
}

func (f Fingerprint) String() string {
	return f.ID + " " + f.Class
}

// IsZero reports whether the fingerprint is unset
func (f Fingerprint) IsZero() bool {
	return f.ID == ""
}

// Fingerprinter computes fingerprints, optionally ignoring some fields
type Fingerprinter struct {
	ignore []string
}

// New creates a fingerprinter that drops the given dotted field paths
// (in addition to driver session fields) before normalizing
func New(ignore ...string) *Fingerprinter {
	paths := make([]string, 0, len(operation.SessionFields)+len(ignore))
	paths = append(paths, operation.SessionFields...)
	paths = append(paths, ignore...)
	return &Fingerprinter{ignore: paths}
}

var defaultFingerprinter = New()

// Of fingerprints an operation with the default settings
func Of(op *operation.Operation) Fingerprint {
	return defaultFingerprinter.Of(op)
}

// Of returns the fingerprint of op
func (f *Fingerprinter) Of(op *operation.Operation) Fingerprint {
	fp, _ := f.Tag(op)
	return fp
}

// Tag returns the fingerprint of op together with its normalized shape text
func (f *Fingerprinter) Tag(op *operation.Operation) (Fingerprint, string) {
	payload := operation.StripFields(op.Payload, f.ignore)
	shape := Shape(payload)

	h := sha256.New()
	h.Write([]byte(op.Kind))
	h.Write([]byte{0})
	h.Write([]byte(op.Namespace()))
	h.Write([]byte{0})
	h.Write([]byte(shape))
	sum := h.Sum(nil)

	return Fingerprint{
		ID:    hex.EncodeToString(sum)[:IDLength],
		Class: Classify(op.Kind, payload),
	}, shape
}

// Shape renders the normalized structure of a document
func Shape(doc bson.D) string {
	var b strings.Builder
	writeValue(&b, doc)
	return b.String()
}

func writeValue(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case bson.D:
		keys := make([]string, 0, len(val))
		values := make(map[string]interface{}, len(val))
		for _, e := range val {
			keys = append(keys, e.Key)
			values[e.Key] = e.Value
		}
		writeObject(b, keys, values)
	case bson.M:
		writeMap(b, val)
	case map[string]interface{}:
		writeMap(b, val)
	case bson.A:
		writeArray(b, val)
	case []interface{}:
		writeArray(b, val)
	default:
		b.WriteString(placeholder(v))
	}
}

func writeMap(b *strings.Builder, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	writeObject(b, keys, m)
}

func writeObject(b *strings.Builder, keys []string, values map[string]interface{}) {
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		writeValue(b, values[k])
	}
	b.WriteByte('}')
}

func writeArray(b *strings.Builder, items []interface{}) {
	shapes := make([]string, len(items))
	uniform := len(items) > 0
	for i, item := range items {
		var sb strings.Builder
		writeValue(&sb, item)
		shapes[i] = sb.String()
		if i > 0 && shapes[i] != shapes[0] {
			uniform = false
		}
	}

	b.WriteByte('[')
	if uniform {
		b.WriteString(shapes[0])
		b.WriteString("...")
	} else {
		b.WriteString(strings.Join(shapes, ","))
	}
	b.WriteByte(']')
}

func placeholder(v interface{}) string {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return "<null>"
	case string, primitive.Symbol:
		return "<string>"
	case bool:
		return "<bool>"
	case int, int32, int64, float32, float64, primitive.Decimal128:
		return "<number>"
	case primitive.ObjectID:
		return "<objectId>"
	case primitive.DateTime:
		return "<date>"
	case primitive.Timestamp:
		return "<timestamp>"
	case primitive.Regex:
		return "<regex>"
	case primitive.Binary:
		return "<binary>"
	case primitive.MinKey, primitive.MaxKey:
		return "<bound>"
	case primitive.JavaScript, primitive.CodeWithScope:
		return "<code>"
	default:
		return "<other>"
	}
}
