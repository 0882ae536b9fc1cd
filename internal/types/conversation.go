package types

import "time"

// SummaryPlaceholder is stored as the user message of a compaction turn.
const SummaryPlaceholder = "(Summary of older chat messages)"

// ConversationTurn is one user/bot exchange. Append-only.
type ConversationTurn struct {
	ID          int       `json:"id"`
	UserID      string    `json:"userID"`
	UserMessage string    `json:"userMessage"`
	BotReply    string    `json:"botReply"`
	Timestamp   time.Time `json:"timestamp"`
}

// IsSummary reports whether the turn was synthesized by history compaction.
func (t ConversationTurn) IsSummary() bool {
	return t.UserMessage == SummaryPlaceholder
}
