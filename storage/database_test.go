package storage

import (
	"path/filepath"
	"testing"

	"chatsync/models"
)

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dataDir := t.TempDir()

	cache, dbPath, err := Open(dataDir, DefaultSnapshotLimit)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cache.Close()

	expected := filepath.Join(dataDir, DefaultDBFileName)
	if dbPath != expected {
		t.Fatalf("expected database path %q, got %q", expected, dbPath)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	dataDir := t.TempDir()

	cache, _, err := Open(dataDir, 0)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := cache.ReplaceSnapshot("u1_u2", []models.Message{
		testMessage("msg-1", "u1", "u2", "persisted", 1_000),
	}); err != nil {
		t.Fatalf("ReplaceSnapshot failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, _, err := Open(dataDir, 0)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Snapshot("u1_u2")
	if err != nil {
		t.Fatalf("Snapshot after reopen failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Text != "persisted" {
		t.Fatalf("expected persisted snapshot after reopen, got %+v", loaded)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	cache := newTestCache(t, 0)

	if err := cache.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
