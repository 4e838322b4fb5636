package storage

import (
	"testing"

	"chatsync/models"
)

func newTestCache(t *testing.T, limit int) *Cache {
	t.Helper()

	dataDir := t.TempDir()
	cache, _, err := Open(dataDir, limit)
	if err != nil {
		t.Fatalf("open test cache: %v", err)
	}
	t.Cleanup(func() {
		if err := cache.Close(); err != nil {
			t.Fatalf("close test cache: %v", err)
		}
	})

	return cache
}

func testMessage(id, sender, recipient, text string, createdAt int64) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: models.ConversationID(sender, recipient),
		SenderID:       sender,
		RecipientID:    recipient,
		Text:           text,
		CreatedAt:      createdAt,
		Status:         models.StatusSent,
	}
}
