package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/studiowebux/mongobar/internal/operation"
)

const (
	// HandshakeTimeout bounds the websocket upgrade of a capture feed
	HandshakeTimeout = 15 * time.Second

	// LiveBuffer is the default number of operations buffered between the
	// capture feed and the scheduler
	LiveBuffer = 1024
)

// WebSocketFeed streams trace records from a capture endpoint into a
// LiveSource. Each text or binary message carries one or more JSON lines.
type WebSocketFeed struct {
	URL    string
	Header http.Header
	Strict bool
	Logger *logrus.Entry
}

// Run dials the capture endpoint and pushes records into dst until the
// peer closes the connection or ctx is done. dst is always closed on
// return: cleanly on a normal close, with the failure otherwise.
func (f *WebSocketFeed) Run(ctx context.Context, dst *LiveSource) error {
	log := f.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("url", f.URL)

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, f.URL, f.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		rerr := &ReadError{Path: f.URL, Err: err}
		dst.CloseWithError(rerr)
		return rerr
	}
	defer conn.Close()
	log.Info("Connected to capture feed")

	// Unblock ReadMessage when the caller gives up
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || isNormalClose(err) {
				log.Info("Capture feed closed")
				dst.Close()
				return nil
			}
			rerr := &ReadError{Path: f.URL, Err: err}
			dst.CloseWithError(rerr)
			return rerr
		}

		for _, line := range bytes.Split(message, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			op, perr := operation.ParseLine(line, dst.NextSeq())
			if perr != nil {
				if f.Strict {
					dst.CloseWithError(perr)
					return perr
				}
				log.WithError(perr).Warn("Skipping malformed capture record")
				continue
			}
			if err := dst.Push(ctx, op); err != nil {
				if errors.Is(err, ErrClosed) || ctx.Err() != nil {
					dst.Close()
					return nil
				}
				return err
			}
		}
	}
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}
