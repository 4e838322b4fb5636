package storage

import (
	"errors"
	"fmt"
	"sort"

	"chatsync/models"
)

type scanner interface {
	Scan(dest ...any) error
}

// ReplaceSnapshot overwrites the stored snapshot for a conversation wholesale.
// The last successfully received snapshot wins; there is no merging with
// prior cache contents. When a snapshot limit is configured, only the
// most-recent messages within the limit are retained.
func (c *Cache) ReplaceSnapshot(conversationID string, messages []models.Message) error {
	if conversationID == "" {
		return errors.New("conversation_id is required")
	}
	for _, message := range messages {
		if message.ConversationID != conversationID {
			return fmt.Errorf("message %q belongs to conversation %q, not %q",
				message.ID, message.ConversationID, conversationID)
		}
	}

	ordered := make([]models.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt != ordered[j].CreatedAt {
			return ordered[i].CreatedAt < ordered[j].CreatedAt
		}
		return ordered[i].ID < ordered[j].ID
	})

	if c.snapshotLimit > 0 && len(ordered) > c.snapshotLimit {
		ordered = ordered[len(ordered)-c.snapshotLimit:]
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(
		`DELETE FROM cached_messages WHERE conversation_id = ?`,
		conversationID,
	); err != nil {
		return fmt.Errorf("clear snapshot for conversation %q: %w", conversationID, err)
	}

	for _, message := range ordered {
		if _, err := tx.Exec(
			`INSERT INTO cached_messages (
				conversation_id,
				message_id,
				sender_id,
				recipient_id,
				text,
				image_url,
				created_at,
				status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			conversationID,
			message.ID,
			message.SenderID,
			message.RecipientID,
			message.Text,
			message.ImageURL,
			message.CreatedAt,
			string(message.Status),
		); err != nil {
			return fmt.Errorf("insert cached message %q: %w", message.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot transaction: %w", err)
	}

	return nil
}

// Snapshot returns the last stored snapshot for a conversation ordered by
// creation time ascending. An unknown conversation yields an empty slice.
func (c *Cache) Snapshot(conversationID string) ([]models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id is required")
	}

	rows, err := c.db.Query(
		`SELECT
			conversation_id,
			message_id,
			sender_id,
			recipient_id,
			text,
			image_url,
			created_at,
			status
		FROM cached_messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, message_id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for conversation %q: %w", conversationID, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanCachedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cached message row: %w", err)
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached message rows: %w", err)
	}

	return messages, nil
}

func scanCachedMessage(row scanner) (*models.Message, error) {
	var (
		message models.Message
		status  string
	)

	if err := row.Scan(
		&message.ConversationID,
		&message.ID,
		&message.SenderID,
		&message.RecipientID,
		&message.Text,
		&message.ImageURL,
		&message.CreatedAt,
		&status,
	); err != nil {
		return nil, err
	}

	message.Status = models.Status(status)
	return &message, nil
}
