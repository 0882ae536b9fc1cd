package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caardbot/caard/internal/chat"
	"github.com/caardbot/caard/internal/types"
)

type fakeHandler struct {
	resp *chat.Response
	err  error
	got  chat.Request
}

func (f *fakeHandler) Handle(_ context.Context, req chat.Request) (*chat.Response, error) {
	f.got = req
	return f.resp, f.err
}

type fakeHistory struct {
	turns []types.ConversationTurn
	err   error
}

func (f *fakeHistory) ListDesc(context.Context, string) ([]types.ConversationTurn, error) {
	return f.turns, f.err
}

func newTestRouter(h *fakeHandler, hist *fakeHistory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if hist == nil {
		hist = &fakeHistory{}
	}
	return NewServer(h, hist).SetupRouter()
}

func TestChatReturnsReplies(t *testing.T) {
	handler := &fakeHandler{resp: &chat.Response{Replies: []string{"one", "two"}}}
	router := newTestRouter(handler, nil)

	w := httptest.NewRecorder()
	body := `{"message":"Hello","characterId":"vivian","userId":"u1","userName":"Ana"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"replies":["one","two"]}`, w.Body.String())
	assert.Equal(t, "Hello", handler.got.Message)
	assert.Equal(t, "vivian", handler.got.CharacterID)
	assert.Equal(t, "Ana", handler.got.RequesterName)
}

func TestReplyReturnsLastReply(t *testing.T) {
	handler := &fakeHandler{resp: &chat.Response{Replies: []string{"tool output", "final words"}}}
	router := newTestRouter(handler, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reply", strings.NewReader(`{"message":"hi","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"final words"}`, w.Body.String())
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	handler := &fakeHandler{err: chat.ErrBadRequest}
	router := newTestRouter(handler, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Message is required")
}

func TestChatRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(&fakeHandler{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatPipelineFailureIsGeneric(t *testing.T) {
	handler := &fakeHandler{err: errors.New("model exploded: secret detail")}
	router := newTestRouter(handler, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
	assert.Contains(t, w.Body.String(), "Failed to process message")
}

func TestHistoryEndpoint(t *testing.T) {
	hist := &fakeHistory{turns: []types.ConversationTurn{
		{ID: 1, UserID: "u1", UserMessage: "hi", BotReply: "hello"},
	}}
	router := newTestRouter(&fakeHandler{}, hist)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history?userID=u1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userMessage":"hi"`)
	assert.Contains(t, w.Body.String(), `"botReply":"hello"`)
	assert.Contains(t, w.Body.String(), `"userID":"u1"`)
	assert.NotContains(t, w.Body.String(), `"user_id"`)
}

func TestHistoryRequiresUserID(t *testing.T) {
	router := newTestRouter(&fakeHandler{}, &fakeHistory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeHandler{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/chat", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&fakeHandler{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDEchoed(t *testing.T) {
	handler := &fakeHandler{resp: &chat.Response{Replies: []string{"ok"}}}
	router := newTestRouter(handler, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "fixed-id")
	router.ServeHTTP(w, req)

	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}
