package mongodb

import (
	"errors"
	"fmt"

	"github.com/studiowebux/mongobar/internal/operation"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotReplayable is returned for operations that cannot be re-issued on
// their own, such as getMore against a cursor of the captured deployment
var ErrNotReplayable = errors.New("operation cannot be replayed")

// BuildCommand turns op into the command document sent to the server.
// Fields listed in strip are removed first. Single update and delete
// statements, as recorded by the profiler, are wrapped in their batch
// command form, and the command name always leads the document.
func BuildCommand(op *operation.Operation, strip []string) (bson.D, error) {
	payload := operation.StripFields(op.Payload, strip)

	switch op.Kind {
	case operation.KindGetMore:
		return nil, fmt.Errorf("%w: %s", ErrNotReplayable, op.Kind)
	case operation.KindCommand:
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: empty command", ErrNotReplayable)
		}
		return payload, nil
	case operation.KindUpdate:
		if !has(payload, "updates") && has(payload, "u") {
			return bson.D{
				{Key: "update", Value: op.Collection},
				{Key: "updates", Value: bson.A{payload}},
			}, nil
		}
	case operation.KindDelete:
		if !has(payload, "deletes") && has(payload, "q") {
			stmt := payload
			if !has(stmt, "limit") {
				stmt = append(copyDoc(stmt), bson.E{Key: "limit", Value: 0})
			}
			return bson.D{
				{Key: "delete", Value: op.Collection},
				{Key: "deletes", Value: bson.A{stmt}},
			}, nil
		}
	case operation.KindAggregate:
		if !has(payload, "cursor") {
			payload = append(copyDoc(payload), bson.E{Key: "cursor", Value: bson.D{}})
		}
	}

	return lead(payload, op.Kind.CommandName(), op.Collection), nil
}

// lead returns doc with {name: coll} as its first element
func lead(doc bson.D, name, coll string) bson.D {
	if len(doc) > 0 && doc[0].Key == name {
		return doc
	}
	out := make(bson.D, 0, len(doc)+1)
	out = append(out, bson.E{Key: name, Value: coll})
	for _, e := range doc {
		if e.Key != name {
			out = append(out, e)
		}
	}
	return out
}

func has(doc bson.D, key string) bool {
	for _, e := range doc {
		if e.Key == key {
			return true
		}
	}
	return false
}

func copyDoc(doc bson.D) bson.D {
	out := make(bson.D, len(doc), len(doc)+1)
	copy(out, doc)
	return out
}
