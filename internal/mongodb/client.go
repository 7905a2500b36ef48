// Package mongodb adapts the official driver to the replay engine: it
// executes traced operations as database commands, classifies driver
// failures, and reads the database profiler.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/studiowebux/mongobar/internal/operation"
	"github.com/studiowebux/mongobar/internal/replay"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultConnectTimeout bounds the initial connection and ping
	DefaultConnectTimeout = 10 * time.Second

	appName = "mongobar"
)

// Options configures the connection
type Options struct {
	URI            string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
	// IgnoreFields are removed from every executed command in addition to
	// the session fields
	IgnoreFields []string
	Logger       *logrus.Entry
}

// Client executes operations against one deployment. It implements
// replay.Client.
type Client struct {
	client *mongo.Client
	strip  []string
	log    *logrus.Entry
}

var _ replay.Client = (*Client)(nil)

// Connect opens a connection pool and verifies the primary is reachable
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetAppName(appName).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb primary: %w", err)
	}

	strip := append(append([]string{}, operation.SessionFields...), opts.IgnoreFields...)
	log.WithField("pool", opts.MaxPoolSize).Info("Connected to mongodb")
	return &Client{client: client, strip: strip, log: log}, nil
}

// Execute runs op as a database command. Failures come back as
// *replay.ExecutionError carrying their kind.
func (c *Client) Execute(ctx context.Context, op *operation.Operation) error {
	cmd, err := BuildCommand(op, c.strip)
	if err != nil {
		return &replay.ExecutionError{Kind: replay.ErrorOther, Err: err}
	}

	res := c.client.Database(op.Database).RunCommand(ctx, cmd)
	if err := res.Err(); err != nil {
		return &replay.ExecutionError{Kind: Classify(err), Err: err}
	}
	return nil
}

// Profiler returns a profiler handle for database db
func (c *Client) Profiler(db string) *Profiler {
	return &Profiler{db: c.client.Database(db), log: c.log.WithField("database", db)}
}

// Disconnect closes the connection pool
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}
