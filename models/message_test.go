package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() Message {
	return Message{
		ID:             "msg-1",
		ConversationID: "u1_u2",
		SenderID:       "u1",
		RecipientID:    "u2",
		Text:           "hi",
		CreatedAt:      1700000000000,
		Status:         StatusSent,
	}
}

func TestMessageValidate(t *testing.T) {
	require.NoError(t, validMessage().Validate())

	imageOnly := validMessage()
	imageOnly.Text = ""
	imageOnly.ImageURL = "https://example.com/photo.jpg"
	require.NoError(t, imageOnly.Validate())

	empty := validMessage()
	empty.Text = ""
	empty.ImageURL = ""
	assert.Error(t, empty.Validate(), "a message with neither text nor image must be rejected")

	noSender := validMessage()
	noSender.SenderID = ""
	assert.Error(t, noSender.Validate())

	badStatus := validMessage()
	badStatus.Status = Status("queued")
	assert.Error(t, badStatus.Validate())
}

func TestStatusProgression(t *testing.T) {
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusSeen))
	assert.True(t, StatusSent.CanAdvanceTo(StatusSeen))

	// Re-applying the current state is idempotent.
	assert.True(t, StatusSeen.CanAdvanceTo(StatusSeen))

	// Regressions are refused.
	assert.False(t, StatusSeen.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusSent))

	assert.False(t, StatusSent.CanAdvanceTo(Status("bogus")))
}

func TestSeenDerivedFromStatus(t *testing.T) {
	msg := validMessage()
	assert.False(t, msg.Seen())

	msg.Status = StatusDelivered
	assert.False(t, msg.Seen())

	msg.Status = StatusSeen
	assert.True(t, msg.Seen())
}

func TestMessageJSONRoundTrip(t *testing.T) {
	original := validMessage()
	original.Text = ""
	original.ImageURL = "https://example.com/p.png"
	original.Status = StatusDelivered

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)

	// Absent optional fields survive the trip too.
	textOnly := validMessage()
	raw, err = json.Marshal(textOnly)
	require.NoError(t, err)

	decoded = Message{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, textOnly, decoded)
	assert.Empty(t, decoded.ImageURL)
}
