package upload

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPathNamespacedAndFresh(t *testing.T) {
	first := ObjectPath("u1_u2")
	second := ObjectPath("u1_u2")

	assert.True(t, strings.HasPrefix(first, "conversations/u1_u2/"))
	assert.NotEqual(t, first, second, "each upload must get a fresh object name")

	suffix := strings.TrimPrefix(first, "conversations/u1_u2/")
	_, err := uuid.Parse(suffix)
	require.NoError(t, err, "object name suffix should be a UUID")
}

func TestPublicURL(t *testing.T) {
	url := PublicURL("chat-media", "conversations/u1_u2/abc")
	assert.Equal(t, "https://storage.googleapis.com/chat-media/conversations/u1_u2/abc", url)
}
