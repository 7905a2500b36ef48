package trace

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/studiowebux/mongobar/internal/operation"
)

// FileOptions controls how a file-backed source treats corrupt records
type FileOptions struct {
	// Strict makes a malformed record fatal. When false the record is
	// logged, counted and skipped.
	Strict bool
	Logger *logrus.Entry
}

// FileSource reads a JSON-lines trace from disk. Files ending in .gz are
// decompressed on the fly.
type FileSource struct {
	path    string
	opts    FileOptions
	file    *os.File
	reader  *bufio.Reader
	line    int64
	seq     int64
	skipped atomic.Int64
}

// OpenFile opens a trace file for replay
func OpenFile(path string, opts FileOptions) (*FileSource, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &FileSource{path: path, opts: opts}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSource) open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return &ReadError{Path: s.path, Err: err}
	}

	var r io.Reader = f
	if strings.HasSuffix(s.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return &ReadError{Path: s.path, Err: err}
		}
		r = gz
	}

	s.file = f
	s.reader = bufio.NewReaderSize(r, 64*1024)
	s.line = 0
	s.seq = 0
	s.skipped.Store(0)
	return nil
}

// Next returns the next well-formed operation in file order
func (s *FileSource) Next(ctx context.Context) (*operation.Operation, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := s.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &ReadError{Path: s.path, Err: err}
		}
		if len(raw) == 0 && errors.Is(err, io.EOF) {
			return nil, ErrEndOfTrace
		}
		s.line++

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		op, perr := operation.ParseLine(raw, s.seq)
		if perr != nil {
			if s.opts.Strict {
				return nil, perr
			}
			s.skipped.Add(1)
			s.opts.Logger.WithFields(logrus.Fields{
				"path": s.path,
				"line": s.line,
			}).WithError(perr).Warn("Skipping malformed trace record")
			continue
		}
		s.seq++
		return op, nil
	}
}

// Reset rewinds the source to the first record
func (s *FileSource) Reset() error {
	if err := s.Close(); err != nil {
		return &ReadError{Path: s.path, Err: err}
	}
	return s.open()
}

// Dropped returns the number of malformed records skipped so far
func (s *FileSource) Dropped() int64 {
	return s.skipped.Load()
}

// Close releases the underlying file
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
