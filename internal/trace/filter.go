package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/jmespath/go-jmespath"
	"github.com/studiowebux/mongobar/internal/operation"
	"go.mongodb.org/mongo-driver/bson"
)

// Predicate decides whether an operation is replayed
type Predicate func(op *operation.Operation) bool

// FilteredSource drops operations rejected by a predicate
type FilteredSource struct {
	src     Source
	keep    Predicate
	dropped atomic.Int64
}

// Filter wraps src so that only operations accepted by keep are returned
func Filter(src Source, keep Predicate) *FilteredSource {
	return &FilteredSource{src: src, keep: keep}
}

func (f *FilteredSource) Next(ctx context.Context) (*operation.Operation, error) {
	for {
		op, err := f.src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if f.keep(op) {
			return op, nil
		}
		f.dropped.Add(1)
	}
}

// Reset rewinds the wrapped source when it is restartable
func (f *FilteredSource) Reset() error {
	r, ok := f.src.(Restartable)
	if !ok {
		return fmt.Errorf("source %T is not restartable", f.src)
	}
	f.dropped.Store(0)
	return r.Reset()
}

// Dropped returns how many operations the predicate rejected, plus any
// dropped by the wrapped source
func (f *FilteredSource) Dropped() int64 {
	n := f.dropped.Load()
	if c, ok := f.src.(Counter); ok {
		n += c.Dropped()
	}
	return n
}

func (f *FilteredSource) Close() error {
	return f.src.Close()
}

// ReadOnly keeps operations that do not change data. Aggregations ending
// in $out or $merge are treated as writes.
func ReadOnly(op *operation.Operation) bool {
	if op.Class().Mutates() {
		return false
	}
	if op.Kind == operation.KindAggregate {
		for _, e := range op.Payload {
			if e.Key != "pipeline" {
				continue
			}
			stages, ok := e.Value.(bson.A)
			if !ok || len(stages) == 0 {
				break
			}
			if last, ok := stages[len(stages)-1].(bson.D); ok && len(last) > 0 {
				return last[0].Key != "$out" && last[0].Key != "$merge"
			}
		}
	}
	return true
}

// Replayable drops getMore records, whose captured cursor ids cannot be
// valid on the replay target
func Replayable(op *operation.Operation) bool {
	return op.Kind != operation.KindGetMore
}

// All combines predicates; an operation is kept when every one accepts it
func All(preds ...Predicate) Predicate {
	return func(op *operation.Operation) bool {
		for _, p := range preds {
			if !p(op) {
				return false
			}
		}
		return true
	}
}

// JMESPath compiles an expression evaluated against the record form of
// each operation ({id, op, db, coll, ns, ts, cmd}). Operations for which
// the expression yields a falsy value are dropped.
func JMESPath(expression string) (Predicate, error) {
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}

	return func(op *operation.Operation) bool {
		doc, err := recordDocument(op)
		if err != nil {
			return false
		}
		result, err := jp.Search(doc)
		if err != nil {
			return false
		}
		return truthy(result)
	}, nil
}

func recordDocument(op *operation.Operation) (interface{}, error) {
	rec, err := operation.ToRecord(op)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// truthy follows JMESPath truthiness: false, null and empty values are false
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}
