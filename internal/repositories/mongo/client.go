// Package mongo implements the question bank document store on MongoDB.
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// Client owns the driver connection and the configured database name
type Client struct {
	raw *mongo.Client
	cfg config.MongoConfig
}

// NewClient connects to MongoDB and verifies the connection with a ping
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidConfiguration, "mongo.uri is empty")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = config.DefaultMongoConnect
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreUnavailable, "failed to connect to mongo: %w", err)
	}
	if err := raw.Ping(ctx, readpref.Primary()); err != nil {
		_ = raw.Disconnect(context.Background())
		return nil, contextutils.WrapErrorf(contextutils.ErrStoreUnavailable, "failed to ping mongo: %w", err)
	}

	return &Client{raw: raw, cfg: cfg}, nil
}

// DB returns the configured database handle
func (c *Client) DB() (*mongo.Database, error) {
	if c == nil || c.raw == nil {
		return nil, errors.New("mongo client not initialized")
	}
	name := c.cfg.Database
	if name == "" {
		name = config.DefaultMongoDatabase
	}
	return c.raw.Database(name), nil
}

// Ping checks that the server is still reachable
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return errors.New("mongo client not initialized")
	}
	return c.raw.Ping(ctx, readpref.Primary())
}

// Close disconnects from the server
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Disconnect(ctx)
}
