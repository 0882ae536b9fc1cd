// Package history manages the rolling, auto-summarizing conversation
// history.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caardbot/caard/internal/llm"
	"github.com/caardbot/caard/internal/types"
)

const summaryInstruction = "You are an assistant summarizing chat histories concisely for records. " +
	"Summarize the key points of the following conversation history in 5 sentences or less. " +
	"Ensure the summary is direct and avoids unnecessary detail."

// TurnStore is the persistence surface the manager needs.
type TurnStore interface {
	List(ctx context.Context, userID string) ([]types.ConversationTurn, error)
	Insert(ctx context.Context, turns []types.ConversationTurn) error
	DeleteByIDs(ctx context.Context, ids []int) error
}

// Manager fetches, appends, and compacts per-user conversation history.
// Append and CompactIfNeeded are serialized per user so compaction can
// never delete a turn concurrently being written.
type Manager struct {
	store       TurnStore
	backend     llm.Backend
	minTurns    int
	recentTurns int
	maxTokens   int
	temperature float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a history Manager. Compaction triggers at minTurns
// total turns and always preserves the latest recentTurns verbatim.
func NewManager(store TurnStore, backend llm.Backend, minTurns, recentTurns, maxTokens int, temperature float64) *Manager {
	if minTurns <= 0 {
		minTurns = 10
	}
	if recentTurns <= 0 {
		recentTurns = 5
	}
	return &Manager{
		store:       store,
		backend:     backend,
		minTurns:    minTurns,
		recentTurns: recentTurns,
		maxTokens:   maxTokens,
		temperature: temperature,
		locks:       map[string]*sync.Mutex{},
	}
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// Fetch returns the user's turns in chronological order.
func (m *Manager) Fetch(ctx context.Context, userID string) ([]types.ConversationTurn, error) {
	return m.store.List(ctx, userID)
}

// Append persists one turn per reply, all sharing the same user message.
func (m *Manager) Append(ctx context.Context, userID, userMessage string, replies []string) error {
	if len(replies) == 0 {
		return nil
	}
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	turns := make([]types.ConversationTurn, 0, len(replies))
	for _, reply := range replies {
		turns = append(turns, types.ConversationTurn{
			UserID:      userID,
			UserMessage: userMessage,
			BotReply:    reply,
		})
	}
	if err := m.store.Insert(ctx, turns); err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}
	return nil
}

// CompactIfNeeded collapses older turns into a single summary turn once
// the history reaches the trigger size. The latest recentTurns are never
// touched. The summary turn is inserted before the older turns are
// deleted, so a failure can duplicate content but never lose it. Any
// failure aborts compaction without deleting anything.
func (m *Manager) CompactIfNeeded(ctx context.Context, userID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	turns, err := m.store.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load history for compaction: %w", err)
	}
	if len(turns) < m.minTurns {
		return nil
	}

	older := turns[:len(turns)-m.recentTurns]
	summary, err := m.summarize(ctx, older)
	if err != nil {
		slog.Error("failed to summarize chat history, aborting compaction", "error", err.Error(), "user_id", userID)
		return fmt.Errorf("failed to summarize history: %w", err)
	}

	if err := m.store.Insert(ctx, []types.ConversationTurn{{
		UserID:      userID,
		UserMessage: types.SummaryPlaceholder,
		BotReply:    summary,
	}}); err != nil {
		slog.Error("failed to insert summary turn, aborting compaction", "error", err.Error(), "user_id", userID)
		return fmt.Errorf("failed to insert summary turn: %w", err)
	}

	ids := make([]int, 0, len(older))
	for _, t := range older {
		ids = append(ids, t.ID)
	}
	if err := m.store.DeleteByIDs(ctx, ids); err != nil {
		// The summary is already persisted; deletion will be retried on
		// the next compaction pass.
		slog.Error("failed to delete summarized turns", "error", err.Error(), "user_id", userID)
		return fmt.Errorf("failed to delete summarized turns: %w", err)
	}

	slog.Info("compacted chat history", "user_id", userID, "summarized_turns", len(older))
	return nil
}

func (m *Manager) summarize(ctx context.Context, older []types.ConversationTurn) (string, error) {
	messages := make([]llm.Message, 0, len(older)*2+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: summaryInstruction})
	for _, t := range older {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.UserMessage},
			llm.Message{Role: llm.RoleAssistant, Content: t.BotReply},
		)
	}
	// The model backend may require the sequence to end on a user turn.
	if messages[len(messages)-1].Role == llm.RoleAssistant {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: "Please summarize the above conversation."})
	}

	completion, err := m.backend.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	})
	if err != nil {
		return "", err
	}
	texts := completion.TextParts()
	if len(texts) == 0 {
		return "", fmt.Errorf("empty summary response")
	}
	return texts[0], nil
}
