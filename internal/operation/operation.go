package operation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Record is the on-disk and on-wire form of one captured operation.
// Cmd holds the command document as relaxed or canonical extended JSON.
type Record struct {
	ID   string          `json:"id,omitempty"`
	Op   string          `json:"op"`
	DB   string          `json:"db,omitempty"`
	Coll string          `json:"coll,omitempty"`
	NS   string          `json:"ns,omitempty"`
	TS   int64           `json:"ts"`
	Cmd  json.RawMessage `json:"cmd,omitempty"`
}

// Operation is one immutable unit of replay
type Operation struct {
	Seq        int64
	ID         string
	Database   string
	Collection string
	Kind       Kind
	Payload    bson.D
	Timestamp  time.Time
}

// Namespace returns "db.collection", or just the database for
// database-level commands
func (o *Operation) Namespace() string {
	if o.Collection == "" {
		return o.Database
	}
	return o.Database + "." + o.Collection
}

// Class returns the kind family of the operation
func (o *Operation) Class() Class {
	return o.Kind.Class()
}

// PayloadJSON renders the payload as relaxed extended JSON
func (o *Operation) PayloadJSON() string {
	data, err := bson.MarshalExtJSON(o.Payload, false, false)
	if err != nil {
		return fmt.Sprintf("<unrenderable payload: %v>", err)
	}
	return string(data)
}

// Validate checks the fields every operation must carry
func (o *Operation) Validate() error {
	if o.Database == "" {
		return malformed(o.Seq, "missing namespace", nil)
	}
	if o.Collection == "" && o.Kind != KindCommand {
		return malformed(o.Seq, fmt.Sprintf("%s without a collection", o.Kind), nil)
	}
	if o.Kind == "" {
		return malformed(o.Seq, "missing kind", nil)
	}
	return nil
}

// New builds an operation from already decoded parts
func New(seq int64, op string, namespace string, ts time.Time, payload bson.D) (*Operation, error) {
	if strings.TrimSpace(op) == "" {
		return nil, malformed(seq, "missing kind", nil)
	}
	if payload == nil {
		payload = bson.D{}
	}
	kind, ok := ParseKind(op, payload)
	if !ok {
		return nil, malformed(seq, fmt.Sprintf("unknown kind %q", op), nil)
	}

	db, coll := SplitNamespace(namespace)
	o := &Operation{
		Seq:        seq,
		Database:   db,
		Collection: coll,
		Kind:       kind,
		Payload:    payload,
		Timestamp:  ts.UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Normalize converts a trace record into an Operation, failing with a
// MalformedError when the namespace or kind is missing or the payload is
// not a document
func Normalize(rec Record, seq int64) (*Operation, error) {
	ns := rec.NS
	if ns == "" && rec.DB != "" {
		ns = rec.DB
		if rec.Coll != "" {
			ns = rec.DB + "." + rec.Coll
		}
	}
	if ns == "" {
		return nil, malformed(seq, "missing namespace", nil)
	}

	payload := bson.D{}
	if raw := bytes.TrimSpace(rec.Cmd); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := bson.UnmarshalExtJSON(raw, false, &payload); err != nil {
			return nil, malformed(seq, "payload is not a document", err)
		}
	}

	o, err := New(seq, rec.Op, ns, time.UnixMilli(rec.TS), payload)
	if err != nil {
		return nil, err
	}
	o.ID = rec.ID
	return o, nil
}

// ParseLine decodes one JSON line into an Operation
func ParseLine(line []byte, seq int64) (*Operation, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, malformed(seq, "invalid JSON", err)
	}
	return Normalize(rec, seq)
}

// ToRecord converts an operation back into its trace record form
func ToRecord(o *Operation) (Record, error) {
	cmd, err := bson.MarshalExtJSON(o.Payload, false, false)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	return Record{
		ID:   o.ID,
		Op:   string(o.Kind),
		DB:   o.Database,
		Coll: o.Collection,
		NS:   o.Namespace(),
		TS:   o.Timestamp.UnixMilli(),
		Cmd:  cmd,
	}, nil
}

// SplitNamespace splits "db.coll.with.dots" at the first dot.
// Namespaces ending in ".$cmd" are database-level.
func SplitNamespace(ns string) (string, string) {
	db, coll, _ := strings.Cut(ns, ".")
	if coll == "$cmd" {
		coll = ""
	}
	return db, coll
}
