// Package store talks to the shared Redis backend that holds the durable
// conversation log and the user directory. Every client process connects to
// the same backend; Redis serializes concurrent writes to one message key.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("store: record not found")
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the Redis connection shared by message and profile operations.
type Client struct {
	rdb *redis.Client
	log *zap.Logger
}

// New creates a store client. The connection is established lazily; call
// Ping to verify reachability at startup.
func New(opts Options, log *zap.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{rdb: rdb, log: log}
}

// Ping verifies the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping store backend: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func conversationKey(conversationID string) string {
	return "chat:conv:" + conversationID
}

func eventChannel(conversationID string) string {
	return "chat:events:" + conversationID
}

func profileKey(userID string) string {
	return "chat:user:" + userID
}
