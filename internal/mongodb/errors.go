package mongodb

import (
	"context"
	"errors"

	"github.com/studiowebux/mongobar/internal/replay"
	"go.mongodb.org/mongo-driver/mongo"
)

// Classify maps a driver error to its replay.ErrorKind. Driver predicates
// are consulted before the generic classifier.
func Classify(err error) replay.ErrorKind {
	if err == nil {
		return replay.ErrorNone
	}

	var ee *replay.ExecutionError
	if errors.As(err, &ee) && ee.Kind != replay.ErrorNone {
		return ee.Kind
	}

	switch {
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return replay.ErrorTimeout
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return replay.ErrorConnection
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return replay.ErrorServerRejected
	}

	return replay.Classify(err)
}
