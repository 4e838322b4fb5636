package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDBFileName is the SQLite filename under the app data dir.
	DefaultDBFileName = "cache.db"
	// DefaultSnapshotLimit caps how many recent messages are retained per
	// conversation. Zero means unbounded.
	DefaultSnapshotLimit = 500
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS cached_messages (
  conversation_id TEXT NOT NULL,
  message_id      TEXT NOT NULL,
  sender_id       TEXT NOT NULL,
  recipient_id    TEXT NOT NULL,
  text            TEXT NOT NULL DEFAULT '',
  image_url       TEXT NOT NULL DEFAULT '',
  created_at      INTEGER NOT NULL,
  status          TEXT NOT NULL CHECK(status IN ('sent','delivered','seen')),
  PRIMARY KEY (conversation_id, message_id)
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_cached_messages_conversation_time
ON cached_messages (conversation_id, created_at, message_id);
`,
}

// Cache is the offline mirror of the last message snapshot per conversation.
type Cache struct {
	db            *sql.DB
	snapshotLimit int
	closeOnce     sync.Once
}

// Open opens (or creates) cache.db under the given data directory and runs
// migrations. limit bounds the retained messages per conversation; pass
// DefaultSnapshotLimit unless the caller has a reason not to.
func Open(dataDir string, limit int) (*Cache, string, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create storage directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	cache, err := OpenPath(dbPath, limit)
	if err != nil {
		return nil, "", err
	}

	return cache, dbPath, nil
}

// OpenPath opens SQLite at an explicit path and runs schema migrations.
func OpenPath(dbPath string, limit int) (*Cache, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if limit < 0 {
		limit = 0
	}
	cache := &Cache{
		db:            db,
		snapshotLimit: limit,
	}
	if err := cache.enableWALMode(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := cache.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return cache, nil
}

// Close closes the SQLite connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.db.Close()
		c.db = nil
	})
	return closeErr
}

func (c *Cache) applyMigrations() error {
	var version int
	if err := c.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= len(migrations) {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}

	return nil
}

func (c *Cache) enableWALMode() error {
	var journalMode string
	if err := c.db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return fmt.Errorf("enable WAL mode: unexpected journal mode %q", journalMode)
	}
	return nil
}
