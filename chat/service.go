// Package chat orchestrates the send pipeline: validation, the durable store
// write, and the decoupled best-effort follow-ups (delivery refinement, push
// notification, cache mirroring). A user-visible "message sent" outcome
// depends only on the primary store write; everything secondary degrades to
// a log line.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatsync/models"
)

var (
	// ErrNotAuthenticated means the service has no signed-in identity.
	ErrNotAuthenticated = errors.New("chat: no authenticated user")
	// ErrSenderMismatch means a send was attempted under a foreign identity.
	ErrSenderMismatch = errors.New("chat: sender does not match authenticated user")
	// ErrEmptyMessage means a send carried neither text nor an image.
	ErrEmptyMessage = errors.New("chat: message has no text or image")
	// ErrNoUploader means an image send was attempted without object storage.
	ErrNoUploader = errors.New("chat: object storage is not configured")
)

// refineTimeout bounds each detached follow-up after Send has returned.
const refineTimeout = 15 * time.Second

// Store is the remote conversation log.
type Store interface {
	Append(ctx context.Context, message models.Message) error
	UpdateStatus(ctx context.Context, conversationID, messageID string, status models.Status) error
	Snapshot(ctx context.Context, conversationID string) ([]models.Message, error)
	Subscribe(ctx context.Context, conversationID string) (<-chan []models.Message, error)
}

// Directory resolves recipient push tokens, fresh per send.
type Directory interface {
	LookupToken(ctx context.Context, userID string) (string, error)
}

// Cache is the local offline mirror.
type Cache interface {
	ReplaceSnapshot(conversationID string, messages []models.Message) error
	Snapshot(conversationID string) ([]models.Message, error)
}

// Notifier relays advisory push alerts.
type Notifier interface {
	Dispatch(ctx context.Context, alert Alert)
}

// Alert mirrors notify.Alert without importing it, keeping the dependency
// direction pointing at this package.
type Alert struct {
	SenderID    string
	RecipientID string
	Token       string
	Title       string
	Body        string
	Data        map[string]string
}

// Uploader stores image attachments and returns fetchable URLs.
type Uploader interface {
	Upload(ctx context.Context, conversationID, contentType string, data []byte) (string, error)
}

// Deps carries the collaborators injected into a Service.
type Deps struct {
	UserID      string
	DisplayName string
	Store       Store
	Directory   Directory
	Cache       Cache
	Notifier    Notifier
	Uploader    Uploader
	Log         *zap.Logger
}

// Service is one signed-in client's view of the chat system.
type Service struct {
	userID      string
	displayName string
	store       Store
	directory   Directory
	cache       Cache
	notifier    Notifier
	uploader    Uploader
	log         *zap.Logger

	detached sync.WaitGroup
}

// NewService wires a service from explicit dependencies.
func NewService(deps Deps) (*Service, error) {
	if deps.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	if deps.Store == nil {
		return nil, errors.New("chat: store is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("chat: cache is required")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		userID:      deps.UserID,
		displayName: deps.DisplayName,
		store:       deps.Store,
		directory:   deps.Directory,
		cache:       deps.Cache,
		notifier:    deps.Notifier,
		uploader:    deps.Uploader,
		log:         log,
	}, nil
}

// Send validates and durably appends one message, then returns. Delivery
// refinement and notification run detached; their failures never reach the
// caller. The returned message reflects the state as written (status sent).
func (s *Service) Send(ctx context.Context, senderID, recipientID, text, imageURL string) (*models.Message, error) {
	if senderID != s.userID {
		return nil, ErrSenderMismatch
	}
	if recipientID == "" {
		return nil, errors.New("chat: recipient is required")
	}
	if text == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}

	message := models.Message{
		ID:             uuid.NewString(),
		ConversationID: models.ConversationID(senderID, recipientID),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Text:           text,
		ImageURL:       imageURL,
		CreatedAt:      time.Now().UnixMilli(),
		Status:         models.StatusSent,
	}

	if err := s.store.Append(ctx, message); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	s.detached.Add(2)
	go s.refineDelivered(message)
	go s.notifyRecipient(message)

	return &message, nil
}

// SendImage uploads the attachment first, then sends a message referencing
// it. Upload failure aborts the send before any store write.
func (s *Service) SendImage(ctx context.Context, senderID, recipientID, contentType string, data []byte) (*models.Message, error) {
	if senderID != s.userID {
		return nil, ErrSenderMismatch
	}
	if s.uploader == nil {
		return nil, ErrNoUploader
	}

	conversationID := models.ConversationID(senderID, recipientID)
	url, err := s.uploader.Upload(ctx, conversationID, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}

	return s.Send(ctx, senderID, recipientID, "", url)
}

// MarkSeen records that this client displayed a message. Repeated calls are
// idempotent; failures are advisory and only logged.
func (s *Service) MarkSeen(ctx context.Context, conversationID, messageID string) {
	if err := s.store.UpdateStatus(ctx, conversationID, messageID, models.StatusSeen); err != nil {
		s.log.Warn("mark seen",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

// Mirror subscribes to a conversation and rewrites the local cache with each
// received snapshot until ctx is canceled. Cache write failures degrade to
// log lines; the subscription keeps going.
func (s *Service) Mirror(ctx context.Context, conversationID string) error {
	snapshots, err := s.store.Subscribe(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("subscribe to conversation %q: %w", conversationID, err)
	}

	for snapshot := range snapshots {
		if err := s.cache.ReplaceSnapshot(conversationID, snapshot); err != nil {
			s.log.Warn("cache snapshot write failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
	}

	return nil
}

// History returns the current conversation snapshot, falling back to the
// local cache when the remote store is unreachable and to an empty slice
// when the cache fails too. Callers accept that the fallback may be stale.
func (s *Service) History(ctx context.Context, conversationID string) []models.Message {
	snapshot, err := s.store.Snapshot(ctx, conversationID)
	if err == nil {
		return snapshot
	}
	s.log.Debug("remote snapshot unavailable, falling back to cache",
		zap.String("conversation_id", conversationID),
		zap.Error(err))

	cached, err := s.cache.Snapshot(conversationID)
	if err != nil {
		s.log.Warn("cache snapshot read failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return []models.Message{}
	}
	return cached
}

// Wait blocks until all detached follow-ups have finished. Intended for
// shutdown and tests.
func (s *Service) Wait() {
	s.detached.Wait()
}

// refineDelivered advances the message to delivered after the durable write,
// with at most one retry. A message that stays at sent is an accepted gap,
// not a failure of the send itself.
func (s *Service) refineDelivered(message models.Message) {
	defer s.detached.Done()

	ctx, cancel := context.WithTimeout(context.Background(), refineTimeout)
	defer cancel()

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	err := backoff.Retry(func() error {
		return s.store.UpdateStatus(ctx, message.ConversationID, message.ID, models.StatusDelivered)
	}, policy)
	if err != nil {
		s.log.Warn("delivery refinement failed, message stays at sent",
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

func (s *Service) notifyRecipient(message models.Message) {
	defer s.detached.Done()

	if s.notifier == nil || message.SenderID == message.RecipientID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refineTimeout)
	defer cancel()

	token := ""
	if s.directory != nil {
		var err error
		token, err = s.directory.LookupToken(ctx, message.RecipientID)
		if err != nil {
			s.log.Warn("push token lookup failed",
				zap.String("recipient_id", message.RecipientID),
				zap.Error(err))
			return
		}
	}

	body := message.Text
	if body == "" {
		body = "Sent a photo"
	}
	title := s.displayName
	if title == "" {
		title = message.SenderID
	}

	s.notifier.Dispatch(ctx, Alert{
		SenderID:    message.SenderID,
		RecipientID: message.RecipientID,
		Token:       token,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"conversation_id": message.ConversationID,
			"message_id":      message.ID,
			"sender_id":       message.SenderID,
			"recipient_id":    message.RecipientID,
		},
	})
}
