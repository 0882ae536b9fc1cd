// Package chat drives one conversation request end-to-end: prompt
// assembly, model call, tool dispatch, optional follow-up, persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caardbot/caard/internal/llm"
	"github.com/caardbot/caard/internal/prompt"
	"github.com/caardbot/caard/internal/retrieval"
	"github.com/caardbot/caard/internal/tool"
	"github.com/caardbot/caard/internal/types"
)

// ErrBadRequest marks an invalid inbound request (empty message).
var ErrBadRequest = errors.New("message is required")

// noReplyFallback is returned when the model produced neither a tool
// call nor usable text.
const noReplyFallback = "No response available."

// state names the steps of one orchestrator run.
type state string

const (
	stateBuildingPrompt   state = "building_prompt"
	stateAwaitingModel    state = "awaiting_model"
	statePlainReply       state = "plain_reply"
	stateToolExecuting    state = "tool_executing"
	stateAwaitingFollowUp state = "awaiting_follow_up"
	statePersisting       state = "persisting"
	stateDone             state = "done"
)

// Request is one parsed inbound chat message. The HTTP layer has
// already authenticated the user.
type Request struct {
	Message       string
	CharacterID   string
	UserID        string
	RequesterName string
}

// Response carries the ordered rendered replies for one request.
type Response struct {
	Replies []string
}

// Reply returns the single-reply view: the last reply produced.
func (r *Response) Reply() string {
	if len(r.Replies) == 0 {
		return ""
	}
	return r.Replies[len(r.Replies)-1]
}

// CharacterSource fetches persona records.
type CharacterSource interface {
	GetByID(ctx context.Context, id string) (*types.Character, error)
}

// AdminSource reports whether a user is privileged.
type AdminSource interface {
	Lookup(ctx context.Context, userID string) (string, bool, error)
}

// ToolLister lists the tool definitions available to a caller.
type ToolLister interface {
	List(ctx context.Context, isAdmin bool) ([]types.ToolDefinition, error)
}

// ToolDispatcher executes one model-issued tool call.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, rawArgs any, userMessage string) tool.Result
}

// KnowledgeLookup retrieves the best knowledge-base match.
type KnowledgeLookup interface {
	Lookup(ctx context.Context, message string) (*retrieval.Match, error)
}

// HistoryManager is the conversation history surface.
type HistoryManager interface {
	Fetch(ctx context.Context, userID string) ([]types.ConversationTurn, error)
	Append(ctx context.Context, userID, userMessage string, replies []string) error
	CompactIfNeeded(ctx context.Context, userID string) error
}

// Orchestrator wires the pipeline together. One Handle call per
// inbound request; the orchestrator itself is stateless across calls.
type Orchestrator struct {
	backend    llm.Backend
	characters CharacterSource
	admins     AdminSource
	tools      ToolLister
	dispatcher ToolDispatcher
	retriever  KnowledgeLookup
	history    HistoryManager
	prompts    *prompt.Builder
	nowFunc    func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	backend llm.Backend,
	characters CharacterSource,
	admins AdminSource,
	tools ToolLister,
	dispatcher ToolDispatcher,
	retriever KnowledgeLookup,
	history HistoryManager,
	prompts *prompt.Builder,
) *Orchestrator {
	return &Orchestrator{
		backend:    backend,
		characters: characters,
		admins:     admins,
		tools:      tools,
		dispatcher: dispatcher,
		retriever:  retriever,
		history:    history,
		prompts:    prompts,
		nowFunc:    time.Now,
	}
}

// run holds the intermediate results of one request as it moves through
// the state machine.
type run struct {
	req          Request
	systemPrompt string
	toolDefs     []types.ToolDefinition
	turns        []types.ConversationTurn
	completion   *llm.Completion
	replies      []string
	toolInvoked  bool
	textKept     bool
}

// Handle drives one request through the state machine. Any panic below
// the orchestrator collapses into a generic error; side effects already
// committed by tools are not rolled back.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (resp *Response, err error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrBadRequest
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in chat pipeline", "panic", fmt.Sprint(r))
			resp = nil
			err = fmt.Errorf("chat pipeline failure: %v", r)
		}
	}()

	r := &run{req: req}
	for st := stateBuildingPrompt; st != stateDone; {
		next, err := o.step(ctx, st, r)
		if err != nil {
			return nil, err
		}
		slog.Debug("chat state transition", "from", string(st), "to", string(next), "user_id", req.UserID)
		st = next
	}
	return &Response{Replies: r.replies}, nil
}

func (o *Orchestrator) step(ctx context.Context, st state, r *run) (state, error) {
	switch st {
	case stateBuildingPrompt:
		return o.buildPrompt(ctx, r)
	case stateAwaitingModel:
		return o.callModel(ctx, r)
	case statePlainReply:
		return o.plainReply(r)
	case stateToolExecuting:
		return o.executeTools(ctx, r)
	case stateAwaitingFollowUp:
		return o.followUp(ctx, r)
	case statePersisting:
		return o.persist(ctx, r)
	default:
		return stateDone, fmt.Errorf("invalid state %q", st)
	}
}

func (o *Orchestrator) buildPrompt(ctx context.Context, r *run) (state, error) {
	adminName, isAdmin, err := o.admins.Lookup(ctx, r.req.UserID)
	if err != nil {
		slog.Warn("failed to check admin status, treating as regular user", "error", err.Error(), "user_id", r.req.UserID)
		adminName, isAdmin = "", false
	}

	character, err := o.characters.GetByID(ctx, r.req.CharacterID)
	if err != nil {
		return stateDone, fmt.Errorf("failed to load character: %w", err)
	}

	var knowledge string
	match, err := o.retriever.Lookup(ctx, r.req.Message)
	if err != nil {
		// Retrieval is an enhancement; its failure must not kill the chat.
		slog.Warn("knowledge retrieval failed", "error", err.Error())
	} else if match != nil {
		knowledge = match.Render()
	}

	r.toolDefs, err = o.tools.List(ctx, isAdmin)
	if err != nil {
		return stateDone, fmt.Errorf("failed to list tools: %w", err)
	}

	r.turns, err = o.history.Fetch(ctx, r.req.UserID)
	if err != nil {
		return stateDone, fmt.Errorf("failed to fetch history: %w", err)
	}

	r.systemPrompt = o.prompts.Build(prompt.Input{
		Character:     character,
		RequesterName: r.req.RequesterName,
		AdminName:     adminName,
		IsAdmin:       isAdmin,
		Knowledge:     knowledge,
		Now:           o.nowFunc(),
	})
	return stateAwaitingModel, nil
}

func (o *Orchestrator) callModel(ctx context.Context, r *run) (state, error) {
	completion, err := o.backend.Complete(ctx, llm.CompletionRequest{
		Messages: o.messageList(r),
		Tools:    r.toolDefs,
	})
	if err != nil {
		return stateDone, fmt.Errorf("failed to call model: %w", err)
	}
	r.completion = completion

	for _, part := range completion.Parts {
		if part.ToolCall != nil {
			return stateToolExecuting, nil
		}
	}
	return statePlainReply, nil
}

// plainReply handles a response with no tool calls: the first text part
// becomes the reply; with no usable parts at all, raw fragments are
// concatenated or a static placeholder is used.
func (o *Orchestrator) plainReply(r *run) (state, error) {
	for _, part := range r.completion.Parts {
		if part.ToolCall == nil && part.Text != "" && !r.textKept {
			r.replies = append(r.replies, RenderMarkdownLinks(part.Text))
			r.textKept = true
		}
	}
	if !r.textKept {
		fallbackText := strings.TrimSpace(strings.Join(r.completion.TextParts(), " "))
		if fallbackText == "" {
			fallbackText = noReplyFallback
		}
		r.replies = append(r.replies, RenderMarkdownLinks(fallbackText))
	}
	return statePersisting, nil
}

// executeTools walks the response parts in order: every tool call is
// dispatched immediately; only the first text part is kept, later text
// parts are discarded to avoid duplicate replies.
func (o *Orchestrator) executeTools(ctx context.Context, r *run) (state, error) {
	for _, part := range r.completion.Parts {
		switch {
		case part.ToolCall != nil:
			result := o.dispatcher.Dispatch(ctx, part.ToolCall.Name, part.ToolCall.Arguments, r.req.Message)
			if result.HasMessage && result.Message != "" {
				r.replies = append(r.replies, RenderMarkdownLinks(result.Message))
			}
			r.systemPrompt += fmt.Sprintf("\n\nYou have used a tool. Inform the user about result: %s", result.Text)
			r.toolInvoked = true
		case part.Text != "" && !r.textKept:
			r.replies = append(r.replies, RenderMarkdownLinks(part.Text))
			r.textKept = true
		}
	}
	if r.toolInvoked && !r.textKept {
		return stateAwaitingFollowUp, nil
	}
	return statePersisting, nil
}

// followUp issues exactly one more model call, without tools, so the
// character can confirm the tool outcome in natural language.
func (o *Orchestrator) followUp(ctx context.Context, r *run) (state, error) {
	completion, err := o.backend.Complete(ctx, llm.CompletionRequest{
		Messages: o.messageList(r),
	})
	if err != nil {
		return stateDone, fmt.Errorf("failed to call model for follow-up: %w", err)
	}

	followUpText := "Follow-up not generated."
	if texts := completion.TextParts(); len(texts) > 0 {
		followUpText = RenderMarkdownLinks(texts[0])
	}
	r.replies = append(r.replies, followUpText)
	return statePersisting, nil
}

// persist appends the replies as history turns and triggers compaction.
// Persistence is best-effort relative to the user-facing response: the
// generated replies are returned even when saving fails.
func (o *Orchestrator) persist(ctx context.Context, r *run) (state, error) {
	if err := o.history.Append(ctx, r.req.UserID, r.req.Message, r.replies); err != nil {
		slog.Error("failed to save conversation", "error", err.Error(), "user_id", r.req.UserID)
		return stateDone, nil
	}
	if err := o.history.CompactIfNeeded(ctx, r.req.UserID); err != nil {
		slog.Error("failed to compact chat history", "error", err.Error(), "user_id", r.req.UserID)
	}
	return stateDone, nil
}

// messageList flattens the system prompt, stored history, and the new
// user message into the model's message sequence, oldest turn first.
func (o *Orchestrator) messageList(r *run) []llm.Message {
	messages := make([]llm.Message, 0, len(r.turns)*2+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: r.systemPrompt})
	for _, turn := range r.turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.UserMessage},
			llm.Message{Role: llm.RoleAssistant, Content: turn.BotReply},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: r.req.Message})
	return messages
}
