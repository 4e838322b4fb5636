package models

import "errors"

// Status tracks how far a message has progressed toward its recipient.
type Status string

const (
	// StatusSent means the message is durably stored but not yet confirmed
	// at the recipient side.
	StatusSent Status = "sent"
	// StatusDelivered means the store write was acknowledged end to end.
	StatusDelivered Status = "delivered"
	// StatusSeen means the recipient's client has displayed the message.
	StatusSeen Status = "seen"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusSeen:      2,
}

// Valid reports whether s is one of the known delivery states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next respects the
// sent -> delivered -> seen progression. Re-applying the current state
// is allowed so repeated seen-marking stays idempotent; regressions are not.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return statusRank[next] >= statusRank[s]
}

// Message is one chat message exchanged between two participants.
type Message struct {
	ID             string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	Text           string `json:"text,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	Status         Status `json:"status"`
}

// Seen derives the read flag from the delivery state. The state enum is the
// single source of truth; there is no separate boolean to drift from it.
func (m Message) Seen() bool {
	return m.Status == StatusSeen
}

// Validate checks the structural invariants required before a message may be
// written anywhere. A message must carry text, an image reference, or both.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("message_id is required")
	}
	if m.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	if m.SenderID == "" {
		return errors.New("sender_id is required")
	}
	if m.RecipientID == "" {
		return errors.New("recipient_id is required")
	}
	if m.Text == "" && m.ImageURL == "" {
		return errors.New("message needs text or an image reference")
	}
	if !m.Status.Valid() {
		return errors.New("invalid delivery status")
	}
	return nil
}
