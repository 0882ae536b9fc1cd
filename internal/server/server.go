// Package server is the HTTP edge: request parsing, response shaping,
// status codes. All chat semantics live behind the chat.Orchestrator.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/caardbot/caard/internal/chat"
	"github.com/caardbot/caard/internal/types"
)

// Handler is the conversation entry point the server delegates to.
type Handler interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Response, error)
}

// HistorySource lists stored conversation turns for a user, newest
// first for display.
type HistorySource interface {
	ListDesc(ctx context.Context, userID string) ([]types.ConversationTurn, error)
}

type Server struct {
	chat    Handler
	history HistorySource
}

func NewServer(chatHandler Handler, history HistorySource) *Server {
	return &Server{chat: chatHandler, history: history}
}

// SetupRouter builds the gin engine with middleware and routes.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), cors())

	r.POST("/api/chat", s.Chat)
	r.POST("/api/reply", s.Reply)
	r.GET("/api/history", s.History)

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.HandleMethodNotAllowed = true

	return r
}

// requestID tags every request with a correlation ID for log lines and
// echoes it back in the X-Request-ID header.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()

		slog.Info("request handled",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ChatRequest is the inbound payload for both chat endpoints.
type ChatRequest struct {
	Message     string `json:"message"`
	CharacterID string `json:"characterId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
}

func (r ChatRequest) toChat() chat.Request {
	return chat.Request{
		Message:       r.Message,
		CharacterID:   r.CharacterID,
		UserID:        r.UserID,
		RequesterName: r.UserName,
	}
}

// Chat returns every reply produced for the request, in order.
func (s *Server) Chat(c *gin.Context) {
	resp, ok := s.handleChat(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": resp.Replies})
}

// Reply returns the single-reply view for clients that render one
// bubble per request.
func (s *Server) Reply(c *gin.Context) {
	resp, ok := s.handleChat(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": resp.Reply()})
}

func (s *Server) handleChat(c *gin.Context) (*chat.Response, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, false
	}

	resp, err := s.chat.Handle(c.Request.Context(), req.toChat())
	if err != nil {
		if errors.Is(err, chat.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
			return nil, false
		}
		slog.Error("chat request failed", "error", err.Error(), "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return nil, false
	}
	return resp, true
}

// History lists the stored turns for a user, newest first.
func (s *Server) History(c *gin.Context) {
	userID := c.Query("userID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userID is required"})
		return
	}

	turns, err := s.history.ListDesc(c.Request.Context(), userID)
	if err != nil {
		slog.Error("failed to fetch history", "error", err.Error(), "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	if turns == nil {
		turns = []types.ConversationTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"history": turns})
}
