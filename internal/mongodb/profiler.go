package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/studiowebux/mongobar/internal/operation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Profiling levels accepted by the profile command
const (
	ProfileOff  = 0
	ProfileSlow = 1
	ProfileAll  = 2
)

const profileCollection = "system.profile"

// Profiler reads and controls the profiler of one database
type Profiler struct {
	db  *mongo.Database
	log *logrus.Entry
}

type profileStatus struct {
	Was int `bson:"was"`
}

// Level returns the current profiling level
func (p *Profiler) Level(ctx context.Context) (int, error) {
	var status profileStatus
	if err := p.db.RunCommand(ctx, bson.D{{Key: "profile", Value: -1}}).Decode(&status); err != nil {
		return 0, fmt.Errorf("failed to read profiling level: %w", err)
	}
	return status.Was, nil
}

// SetLevel changes the profiling level and returns the previous one
func (p *Profiler) SetLevel(ctx context.Context, level int) (int, error) {
	var status profileStatus
	if err := p.db.RunCommand(ctx, bson.D{{Key: "profile", Value: level}}).Decode(&status); err != nil {
		return 0, fmt.Errorf("failed to set profiling level %d: %w", level, err)
	}
	p.log.WithFields(logrus.Fields{"was": status.Was, "now": level}).Info("Profiling level changed")
	return status.Was, nil
}

// Guard sets level for the duration of a run. The returned restore func
// puts the previous level back.
func (p *Profiler) Guard(ctx context.Context, level int) (func(context.Context) error, error) {
	was, err := p.SetLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		_, err := p.SetLevel(ctx, was)
		return err
	}, nil
}

// PullOptions selects the profiler entries to convert
type PullOptions struct {
	Start time.Time
	End   time.Time
	// Namespace restricts the pull to one "db.collection" when set
	Namespace string
}

// OperationWriter receives converted operations
type OperationWriter interface {
	Write(op *operation.Operation) error
}

// ProfileEntry is the subset of a system.profile document a trace needs
type ProfileEntry struct {
	Op      string    `bson:"op"`
	NS      string    `bson:"ns"`
	TS      time.Time `bson:"ts"`
	Command bson.D    `bson:"command"`
}

// Pull converts profiler entries in [Start, End) into operations, oldest
// first, and returns how many were written
func (p *Profiler) Pull(ctx context.Context, opts PullOptions, w OperationWriter) (int64, error) {
	tsRange := bson.D{{Key: "$gte", Value: opts.Start}}
	if !opts.End.IsZero() {
		tsRange = append(tsRange, bson.E{Key: "$lt", Value: opts.End})
	}
	ns := bson.D{{Key: "$ne", Value: p.db.Name() + "." + profileCollection}}
	var filter bson.D
	if opts.Namespace != "" {
		filter = bson.D{{Key: "ns", Value: opts.Namespace}, {Key: "ts", Value: tsRange}}
	} else {
		filter = bson.D{{Key: "ns", Value: ns}, {Key: "ts", Value: tsRange}}
	}

	cursor, err := p.db.Collection(profileCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "ts", Value: 1}}))
	if err != nil {
		return 0, fmt.Errorf("failed to query profiler: %w", err)
	}
	defer cursor.Close(ctx)

	var written, skipped int64
	for cursor.Next(ctx) {
		var entry ProfileEntry
		if err := cursor.Decode(&entry); err != nil {
			return written, fmt.Errorf("failed to decode profiler entry: %w", err)
		}
		op, ok := ConvertProfile(entry, written)
		if !ok {
			skipped++
			continue
		}
		if err := w.Write(op); err != nil {
			return written, err
		}
		written++
	}
	if err := cursor.Err(); err != nil {
		return written, fmt.Errorf("failed to read profiler: %w", err)
	}

	p.log.WithFields(logrus.Fields{"written": written, "skipped": skipped}).Info("Profiler pull complete")
	return written, nil
}

// ConvertProfile turns one profiler entry into an operation. Entries that
// cannot be replayed (profiler writes, incomplete commands, unknown op
// types) report false.
func ConvertProfile(entry ProfileEntry, seq int64) (*operation.Operation, bool) {
	if entry.NS == "" || strings.HasSuffix(entry.NS, "."+profileCollection) || len(entry.Command) == 0 {
		return nil, false
	}

	switch entry.Op {
	case "query":
		if !has(entry.Command, "find") {
			return nil, false
		}
	case "insert":
		if !has(entry.Command, "documents") {
			return nil, false
		}
	case "update":
		if !has(entry.Command, "u") && !has(entry.Command, "updates") {
			return nil, false
		}
	case "remove":
		if !has(entry.Command, "q") && !has(entry.Command, "deletes") {
			return nil, false
		}
	case "command", "getmore":
	default:
		return nil, false
	}

	op, err := operation.New(seq, entry.Op, entry.NS, entry.TS, entry.Command)
	if err != nil {
		return nil, false
	}
	return op, true
}
