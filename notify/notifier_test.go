package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) {
	return string(s), nil
}

func newRecordingServer(t *testing.T) (*httptest.Server, *[]pushPayload) {
	t.Helper()

	received := make([]pushPayload, 0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload pushPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received = append(received, payload)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, &received
}

func TestDispatchPostsPayload(t *testing.T) {
	server, received := newRecordingServer(t)
	notifier := New(server.URL, staticTokens("bearer-token"), zap.NewNop())

	notifier.Dispatch(context.Background(), Alert{
		SenderID:    "u1",
		RecipientID: "u2",
		Token:       "device-token",
		Title:       "Alice",
		Body:        "hi there",
		Data: map[string]string{
			"conversation_id": "u1_u2",
			"sender_id":       "u1",
		},
	})

	require.Len(t, *received, 1)
	payload := (*received)[0]
	assert.Equal(t, "device-token", payload.Message.Token)
	assert.Equal(t, "Alice", payload.Message.Notification.Title)
	assert.Equal(t, "hi there", payload.Message.Notification.Body)
	assert.Equal(t, "u1_u2", payload.Message.Data["conversation_id"])
	require.NotNil(t, payload.Message.Android)
	assert.Equal(t, androidPriorityHigh, payload.Message.Android.Priority)
}

func TestDispatchSkipsSelfNotification(t *testing.T) {
	server, received := newRecordingServer(t)
	notifier := New(server.URL, staticTokens("bearer-token"), zap.NewNop())

	notifier.Dispatch(context.Background(), Alert{
		SenderID:    "u1",
		RecipientID: "u1",
		Token:       "device-token",
		Title:       "Alice",
		Body:        "note to self",
	})

	assert.Empty(t, *received, "sending to yourself must never hit the transport")
}

func TestDispatchSkipsWithoutToken(t *testing.T) {
	server, received := newRecordingServer(t)
	notifier := New(server.URL, staticTokens("bearer-token"), zap.NewNop())

	notifier.Dispatch(context.Background(), Alert{
		SenderID:    "u1",
		RecipientID: "u2",
		Token:       "",
		Title:       "Alice",
		Body:        "hi",
	})

	assert.Empty(t, *received)
}

func TestDispatchSkipsWhenUnconfigured(t *testing.T) {
	notifier := New("", nil, zap.NewNop())

	// Must not panic or attempt any transport call.
	notifier.Dispatch(context.Background(), Alert{
		SenderID:    "u1",
		RecipientID: "u2",
		Token:       "device-token",
		Title:       "Alice",
		Body:        "hi",
	})
}

func TestDispatchSurvivesEndpointErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	notifier := New(server.URL, staticTokens("bearer-token"), zap.NewNop())

	// Failure is advisory only; the call must return normally.
	notifier.Dispatch(context.Background(), Alert{
		SenderID:    "u1",
		RecipientID: "u2",
		Token:       "device-token",
		Title:       "Alice",
		Body:        "hi",
	})
}
