package operation

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// SessionFields are driver-managed command fields that must not be
// replayed verbatim against another deployment
var SessionFields = []string{
	"$db",
	"lsid",
	"$clusterTime",
	"$readPreference",
	"$audit",
	"$client",
	"txnNumber",
	"autocommit",
	"startTransaction",
	"readConcern.afterClusterTime",
}

// StripFields returns a copy of doc without the given dotted paths.
// The input document is never modified.
func StripFields(doc bson.D, paths []string) bson.D {
	if len(paths) == 0 {
		return doc
	}
	tree := make(map[string][]string)
	for _, p := range paths {
		head, rest, _ := strings.Cut(p, ".")
		tree[head] = append(tree[head], rest)
	}
	return stripDoc(doc, tree)
}

func stripDoc(doc bson.D, tree map[string][]string) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, elem := range doc {
		rests, ok := tree[elem.Key]
		if !ok {
			out = append(out, elem)
			continue
		}
		var nested []string
		drop := false
		for _, r := range rests {
			if r == "" {
				drop = true
				break
			}
			nested = append(nested, r)
		}
		if drop {
			continue
		}
		if sub, ok := elem.Value.(bson.D); ok {
			elem.Value = StripFields(sub, nested)
		}
		out = append(out, elem)
	}
	return out
}
