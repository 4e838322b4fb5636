package models

import (
	"sort"
	"strings"
)

// conversationSeparator joins the two participant IDs of a thread.
const conversationSeparator = "_"

// ConversationID derives the shared thread identifier for two participants.
// The pair is sorted lexicographically before joining, so both clients
// converge on the same identifier no matter who initiates.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, conversationSeparator)
}
