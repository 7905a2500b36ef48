package operation

import (
	"errors"
	"fmt"
)

// ErrMalformedTrace is matched by every record-level parse failure
var ErrMalformedTrace = errors.New("malformed trace record")

// MalformedError describes why a single trace record was rejected
type MalformedError struct {
	Seq    int64
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed trace record %d: %s: %v", e.Seq, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed trace record %d: %s", e.Seq, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedTrace) true for any MalformedError
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedTrace
}

func malformed(seq int64, reason string, err error) error {
	return &MalformedError{Seq: seq, Reason: reason, Err: err}
}
