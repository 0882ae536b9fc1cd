package types

// Usage is the token accounting for one provider call. Ephemeral, used
// only for cost logging, never persisted.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TotalTokens returns the combined token count.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}
