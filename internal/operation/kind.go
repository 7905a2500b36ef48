package operation

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Kind is the database command an operation replays
type Kind string

const (
	KindFind          Kind = "find"
	KindCount         Kind = "count"
	KindDistinct      Kind = "distinct"
	KindInsert        Kind = "insert"
	KindUpdate        Kind = "update"
	KindDelete        Kind = "delete"
	KindAggregate     Kind = "aggregate"
	KindGetMore       Kind = "getMore"
	KindFindAndModify Kind = "findAndModify"
	KindCommand       Kind = "command"
)

// Class groups kinds into read/write/update/delete/aggregate/command families
type Class string

const (
	ClassRead      Class = "read"
	ClassWrite     Class = "write"
	ClassUpdate    Class = "update"
	ClassDelete    Class = "delete"
	ClassAggregate Class = "aggregate"
	ClassCommand   Class = "command"
)

// kindAliases maps lowercase op names (including profiler spellings) to kinds
var kindAliases = map[string]Kind{
	"find":          KindFind,
	"query":         KindFind,
	"count":         KindCount,
	"distinct":      KindDistinct,
	"insert":        KindInsert,
	"update":        KindUpdate,
	"delete":        KindDelete,
	"remove":        KindDelete,
	"aggregate":     KindAggregate,
	"getmore":       KindGetMore,
	"findandmodify": KindFindAndModify,
	"command":       KindCommand,
}

// ParseKind resolves an op name to a Kind. Generic "command" records are
// refined by the first key of their payload, so a profiled aggregate or
// count is replayed and grouped as such.
func ParseKind(name string, payload bson.D) (Kind, bool) {
	kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	if kind == KindCommand && len(payload) > 0 {
		if refined, ok := kindAliases[strings.ToLower(payload[0].Key)]; ok && refined != KindCommand {
			return refined, true
		}
	}
	return kind, true
}

// Class returns the family the kind belongs to
func (k Kind) Class() Class {
	switch k {
	case KindFind, KindCount, KindDistinct, KindGetMore:
		return ClassRead
	case KindInsert:
		return ClassWrite
	case KindUpdate, KindFindAndModify:
		return ClassUpdate
	case KindDelete:
		return ClassDelete
	case KindAggregate:
		return ClassAggregate
	default:
		return ClassCommand
	}
}

// Mutates reports whether operations of this class change data
func (c Class) Mutates() bool {
	return c == ClassWrite || c == ClassUpdate || c == ClassDelete
}

// CommandName returns the database command name for the kind, or "" for
// generic commands whose payload already names the command
func (k Kind) CommandName() string {
	if k == KindCommand {
		return ""
	}
	return string(k)
}
