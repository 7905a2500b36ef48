package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/studiowebux/mongobar/internal/operation"
)

// Writer appends operations to a JSON-lines trace
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
	written int64
}

// CreateFile creates (or truncates) a trace file
func CreateFile(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	w := NewWriter(f)
	w.file = f
	return w, nil
}

// NewWriter writes trace records to w
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{buf: buf, enc: json.NewEncoder(buf)}
}

// Write appends one operation as a trace record
func (w *Writer) Write(op *operation.Operation) error {
	rec, err := operation.ToRecord(op)
	if err != nil {
		return err
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	w.written++
	return nil
}

// Written returns the number of records written
func (w *Writer) Written() int64 {
	return w.written
}

// Close flushes buffered records and closes the file, if any
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
