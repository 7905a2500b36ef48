package fingerprint

import (
	"strings"

	"github.com/studiowebux/mongobar/internal/operation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter shapes, from cheapest to most expensive to serve
const (
	FilterScan    = "scan"
	FilterPoint   = "point"
	FilterRange   = "range"
	FilterComplex = "complex"
)

var rangeOperators = map[string]bool{
	"$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$ne": true, "$exists": true,
	"$type": true, "$size": true, "$all": true, "$mod": true,
}

// Classify returns the coarse shape class of an operation, such as
// "read.point", "update.range", "aggregate.pipeline" or "write.insert"
func Classify(kind operation.Kind, payload bson.D) string {
	class := string(kind.Class())
	switch kind {
	case operation.KindInsert:
		return class + ".insert"
	case operation.KindGetMore:
		return class + ".cursor"
	case operation.KindAggregate:
		return class + ".pipeline"
	case operation.KindCommand:
		if len(payload) > 0 {
			return class + "." + payload[0].Key
		}
		return class
	}
	return class + "." + filterShape(filterOf(kind, payload))
}

// filterOf locates the query filter inside a command payload
func filterOf(kind operation.Kind, payload bson.D) interface{} {
	switch kind {
	case operation.KindUpdate:
		if f := firstStatementFilter(lookup(payload, "updates")); f != nil {
			return f
		}
	case operation.KindDelete:
		if f := firstStatementFilter(lookup(payload, "deletes")); f != nil {
			return f
		}
	}
	for _, key := range []string{"filter", "query", "q"} {
		if f := lookup(payload, key); f != nil {
			return f
		}
	}
	return nil
}

func firstStatementFilter(v interface{}) interface{} {
	stmts, ok := v.(bson.A)
	if !ok || len(stmts) == 0 {
		return nil
	}
	if stmt, ok := stmts[0].(bson.D); ok {
		return lookup(stmt, "q")
	}
	return nil
}

func lookup(doc bson.D, key string) interface{} {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func filterShape(filter interface{}) string {
	doc, ok := filter.(bson.D)
	if !ok || len(doc) == 0 {
		return FilterScan
	}
	shape := FilterPoint
	for _, e := range doc {
		if strings.HasPrefix(e.Key, "$") {
			// $and, $or, $nor, $expr, $text, $where
			return FilterComplex
		}
		switch v := e.Value.(type) {
		case primitive.Regex:
			return FilterComplex
		case bson.D:
			for _, op := range v {
				switch {
				case op.Key == "$eq":
				case rangeOperators[op.Key]:
					shape = FilterRange
				case strings.HasPrefix(op.Key, "$"):
					return FilterComplex
				}
			}
		}
	}
	return shape
}
