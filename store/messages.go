package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatsync/models"
)

// Append durably writes a message into its conversation log, keyed by the
// message ID. Re-appending the same ID overwrites in place rather than
// duplicating, so retries by callers are safe.
func (c *Client) Append(ctx context.Context, message models.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message %q: %w", message.ID, err)
	}

	key := conversationKey(message.ConversationID)
	if err := c.rdb.HSet(ctx, key, message.ID, raw).Err(); err != nil {
		return fmt.Errorf("append message %q: %w", message.ID, err)
	}

	c.signal(ctx, message.ConversationID)
	return nil
}

// advanceStatusScript applies the status progression atomically server-side,
// so two clients racing on the same message cannot interleave between read
// and write and lose the higher-ranked state.
// KEYS[1] = conversation hash key
// ARGV[1] = message ID
// ARGV[2] = requested status
// Returns 1 when updated, 0 when dropped as a regression or no-op,
// -1 when the message does not exist.
var advanceStatusScript = redis.NewScript(`
local raw = redis.call("HGET", KEYS[1], ARGV[1])
if not raw then
    return -1
end

local ranks = {sent = 0, delivered = 1, seen = 2}
local message = cjson.decode(raw)
local current = ranks[message["status"]]
local requested = ranks[ARGV[2]]
if current == nil or requested == nil or requested <= current then
    return 0
end

message["status"] = ARGV[2]
redis.call("HSET", KEYS[1], ARGV[1], cjson.encode(message))
return 1
`)

// UpdateStatus advances the delivery state of one message. Updates that would
// regress the sent -> delivered -> seen progression are dropped without error,
// so a late best-effort refinement can never undo a seen mark. Re-applying
// the current state is a no-op, which makes repeated seen-marking harmless.
// The compare-and-set runs as one server-side script; concurrent updates to
// the same message serialize there rather than racing client-side.
func (c *Client) UpdateStatus(ctx context.Context, conversationID, messageID string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid delivery status %q", status)
	}

	key := conversationKey(conversationID)
	outcome, err := advanceStatusScript.Run(ctx, c.rdb, []string{key}, messageID, string(status)).Int()
	if err != nil {
		return fmt.Errorf("update status for message %q: %w", messageID, err)
	}

	switch outcome {
	case -1:
		return ErrNotFound
	case 0:
		c.log.Debug("dropping status regression or no-op",
			zap.String("message_id", messageID),
			zap.String("requested", string(status)))
		return nil
	}

	c.signal(ctx, conversationID)
	return nil
}

// Snapshot reads the full current contents of a conversation, sorted
// ascending by creation time. Callers must treat the result as authoritative
// and replace any prior state with it.
func (c *Client) Snapshot(ctx context.Context, conversationID string) ([]models.Message, error) {
	raw, err := c.rdb.HGetAll(ctx, conversationKey(conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation %q: %w", conversationID, err)
	}

	messages := make([]models.Message, 0, len(raw))
	for id, encoded := range raw {
		var message models.Message
		if err := json.Unmarshal([]byte(encoded), &message); err != nil {
			c.log.Warn("skipping undecodable message",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", id),
				zap.Error(err))
			continue
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt != messages[j].CreatedAt {
			return messages[i].CreatedAt < messages[j].CreatedAt
		}
		return messages[i].ID < messages[j].ID
	})

	return messages, nil
}

// Subscribe emits full conversation snapshots: one immediately, then one per
// observed change until ctx is canceled. Each emission supersedes the last.
// The returned channel is closed on cancellation.
func (c *Client) Subscribe(ctx context.Context, conversationID string) (<-chan []models.Message, error) {
	pubsub := c.rdb.Subscribe(ctx, eventChannel(conversationID))

	// Confirm the subscription before the first read so no change signal
	// between snapshot and subscribe is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to conversation %q: %w", conversationID, err)
	}

	events := pubsub.Channel()
	snapshots := make(chan []models.Message, 1)

	go func() {
		defer close(snapshots)
		defer func() {
			_ = pubsub.Close()
		}()

		emit := func() bool {
			snapshot, err := c.Snapshot(ctx, conversationID)
			if err != nil {
				c.log.Warn("snapshot read failed, keeping subscription",
					zap.String("conversation_id", conversationID),
					zap.Error(err))
				return true
			}
			select {
			case snapshots <- snapshot:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return snapshots, nil
}

// signal is best-effort; a missed publish only delays the next snapshot until
// the following write.
func (c *Client) signal(ctx context.Context, conversationID string) {
	if err := c.rdb.Publish(ctx, eventChannel(conversationID), "changed").Err(); err != nil {
		c.log.Warn("publish conversation change",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}
