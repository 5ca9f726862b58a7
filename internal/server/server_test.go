package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broadwaybot/internal/storage"
	"broadwaybot/pkg"
)

type fakeProcessor struct {
	messages []pkg.Message
	calls    int
}

func (f *fakeProcessor) ProcessTurn(ctx context.Context, sessionID string, session *pkg.ConversationState, input pkg.TurnInput) ([]pkg.Message, error) {
	f.calls++
	session.ContextSummary = "updated"
	return f.messages, nil
}

func newTestServer() (*Server, *fakeProcessor, storage.Registry) {
	registry := storage.NewMemoryRegistry(time.Minute)
	processor := &fakeProcessor{messages: []pkg.Message{
		{Type: pkg.MessageIntent, Text: "general"},
		{Type: pkg.MessageBot, Text: "hello!", MessageType: "text"},
	}}
	srv := New(registry, processor, "welcome!", "test")
	return srv, processor, registry
}

func TestCreateSession(t *testing.T) {
	srv, _, registry := newTestServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp sessionResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, pkg.MessageBot, resp.Messages[0].Type)
	assert.Equal(t, "welcome!", resp.Messages[0].Text)

	_, found, err := registry.Get(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.True(t, found, "created session must be persisted")
}

func TestPostMessage(t *testing.T) {
	srv, processor, registry := newTestServer()
	require.NoError(t, registry.Save(context.Background(), "s1", pkg.NewConversationState()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages",
		strings.NewReader(`{"text": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, processor.calls)

	var resp turnResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, pkg.MessageIntent, resp.Messages[0].Type)

	state, _, err := registry.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "updated", state.ContextSummary, "mutated state must be saved after the turn")
}

func TestPostMessageFollowupAnswers(t *testing.T) {
	srv, processor, registry := newTestServer()
	require.NoError(t, registry.Save(context.Background(), "s1", pkg.NewConversationState()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages",
		strings.NewReader(`{"followup_answers": {"gender": "Female"}}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, processor.calls)
}

func TestPostMessageValidation(t *testing.T) {
	srv, _, registry := newTestServer()
	require.NoError(t, registry.Save(context.Background(), "s1", pkg.NewConversationState()))

	// Neither text nor answers.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Both at once.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/sessions/s1/messages",
		strings.NewReader(`{"text": "hi", "followup_answers": {"gender": "Male"}}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageUnknownSession(t *testing.T) {
	srv, _, _ := newTestServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/nope/messages",
		strings.NewReader(`{"text": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndSession(t *testing.T) {
	srv, _, registry := newTestServer()
	require.NoError(t, registry.Save(context.Background(), "s1", pkg.NewConversationState()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil)
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)

	_, found, _ := registry.Get(context.Background(), "s1")
	assert.False(t, found, "ended session must be discarded")
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
