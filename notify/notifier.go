// Package notify relays best-effort push alerts to message recipients over
// the vendor's HTTP messaging endpoint. Dispatch never affects message
// durability; by the time a notification is attempted the message is already
// stored, so every outcome here is logged and swallowed.
package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout      = 10 * time.Second
	androidPriorityHigh = "high"
	androidChannelID    = "chat_messages"
)

// TokenSource mints bearer credentials for the messaging endpoint.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Notifier posts notification payloads to the configured endpoint.
type Notifier struct {
	client   *resty.Client
	tokens   TokenSource
	endpoint string
	log      *zap.Logger
}

// New creates a dispatcher. endpoint and tokens may be empty/nil when push
// delivery is not configured; Dispatch then skips silently.
func New(endpoint string, tokens TokenSource, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		client:   resty.New().SetTimeout(defaultTimeout),
		tokens:   tokens,
		endpoint: endpoint,
		log:      log,
	}
}

// Alert describes one push notification to a single recipient device.
type Alert struct {
	SenderID    string
	RecipientID string
	Token       string
	Title       string
	Body        string
	Data        map[string]string
}

type pushPayload struct {
	Message pushMessage `json:"message"`
}

type pushMessage struct {
	Token        string            `json:"token"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority     string               `json:"priority"`
	Notification *androidNotification `json:"notification,omitempty"`
}

type androidNotification struct {
	ChannelID string `json:"channel_id"`
}

// Dispatch attempts one push delivery. It skips silently when the sender is
// also the recipient, when the recipient has no registered token, or when
// delivery credentials are not configured. Transport errors are logged only.
func (n *Notifier) Dispatch(ctx context.Context, alert Alert) {
	if alert.SenderID == alert.RecipientID {
		return
	}
	if alert.Token == "" {
		n.log.Debug("skipping push, recipient has no token",
			zap.String("recipient_id", alert.RecipientID))
		return
	}
	if n.endpoint == "" || n.tokens == nil {
		n.log.Debug("skipping push, delivery not configured")
		return
	}

	bearer, err := n.tokens.Token(ctx)
	if err != nil {
		n.log.Warn("mint push credentials", zap.Error(err))
		return
	}

	payload := pushPayload{
		Message: pushMessage{
			Token: alert.Token,
			Notification: pushNotification{
				Title: alert.Title,
				Body:  alert.Body,
			},
			Data: alert.Data,
			Android: &androidConfig{
				Priority:     androidPriorityHigh,
				Notification: &androidNotification{ChannelID: androidChannelID},
			},
		},
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetAuthToken(bearer).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.endpoint)
	if err != nil {
		n.log.Warn("push dispatch failed",
			zap.String("recipient_id", alert.RecipientID),
			zap.Error(err))
		return
	}
	if resp.IsError() {
		n.log.Warn("push endpoint rejected dispatch",
			zap.String("recipient_id", alert.RecipientID),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("response", resp.Body()))
		return
	}

	n.log.Info("push dispatched",
		zap.String("recipient_id", alert.RecipientID),
		zap.Int("status", resp.StatusCode()))
}
