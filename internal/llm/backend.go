// Package llm adapts hosted model providers behind small interfaces: a
// chat-completion backend with tool calling and an embedding provider.
package llm

import (
	"context"
	"fmt"

	"github.com/caardbot/caard/internal/types"
)

// Message roles understood by the completion backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a completion request.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Tools       []types.ToolDefinition
	Temperature float64
	MaxTokens   int
}

// ToolCall is a structured request from the model to invoke a named
// function. Arguments may be a JSON-encoded string or an already
// structured map; the dispatcher accepts both.
type ToolCall struct {
	ID        string
	Name      string
	Arguments any
}

// Part is one ordered element of a model response: free text or a tool
// call, never both.
type Part struct {
	Text     string
	ToolCall *ToolCall
}

// Completion is the parsed result of one model call.
type Completion struct {
	Parts []Part
	Usage types.Usage
}

// TextParts returns every free-text fragment in response order.
func (c *Completion) TextParts() []string {
	var texts []string
	for _, p := range c.Parts {
		if p.ToolCall == nil && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return texts
}

// Backend is a hosted chat-completion provider.
type Backend interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// ProviderError wraps a transport or parse failure from an upstream
// model provider. Internals never reach the client.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
