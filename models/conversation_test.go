package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationIDSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"zeta", "alpha"},
		{"same", "same"},
	}

	for _, pair := range pairs {
		forward := ConversationID(pair[0], pair[1])
		backward := ConversationID(pair[1], pair[0])
		assert.Equal(t, forward, backward, "pair %v must converge on one identifier", pair)
	}
}

func TestConversationIDDeterministic(t *testing.T) {
	assert.Equal(t, "u1_u2", ConversationID("u1", "u2"))
	assert.Equal(t, "u1_u2", ConversationID("u2", "u1"))
	assert.Equal(t, "alpha_zeta", ConversationID("zeta", "alpha"))
}
