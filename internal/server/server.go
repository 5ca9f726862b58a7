package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"broadwaybot/internal/logger"
	"broadwaybot/internal/storage"
	"broadwaybot/pkg"
)

// TurnProcessor runs one conversational turn against session state.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID string, session *pkg.ConversationState, input pkg.TurnInput) ([]pkg.Message, error)
}

// Server exposes the assistant over HTTP. Turns within one session are
// serialized; separate sessions run concurrently.
type Server struct {
	engine       *gin.Engine
	registry     storage.Registry
	orchestrator TurnProcessor
	welcomeText  string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds the router. Mode should be one of gin's release/debug/test.
func New(registry storage.Registry, orchestrator TurnProcessor, welcomeText, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{
		engine:       gin.New(),
		registry:     registry,
		orchestrator: orchestrator,
		welcomeText:  welcomeText,
		locks:        make(map[string]*sync.Mutex),
	}

	s.engine.Use(gin.Recovery())

	api := s.engine.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.POST("/sessions/:id/messages", s.postMessage)
		api.DELETE("/sessions/:id", s.endSession)
	}
	s.engine.GET("/healthz", s.health)

	return s
}

// Run starts the HTTP listener.
func (s *Server) Run(addr string) error {
	logger.Info().Str("addr", addr).Msg("HTTP server starting")
	return s.engine.Run(addr)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []pkg.Message `json:"messages"`
}

type turnResponse struct {
	Messages []pkg.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// createSession opens a session and greets the shopper.
func (s *Server) createSession(c *gin.Context) {
	sessionID := uuid.NewString()
	state := pkg.NewConversationState()

	if err := s.registry.Save(c.Request.Context(), sessionID, state); err != nil {
		logger.Error().Err(err).Msg("Failed to create session")
		s.writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "failed to create session"})
		return
	}

	logger.Info().Str("session_id", sessionID).Msg("Session created")
	s.writeJSON(c, http.StatusCreated, sessionResponse{
		SessionID: sessionID,
		Messages: []pkg.Message{{
			Type:        pkg.MessageBot,
			Text:        s.welcomeText,
			MessageType: "text",
		}},
	})
}

// postMessage runs one turn. Exactly one of text or followup_answers
// must be present.
func (s *Server) postMessage(c *gin.Context) {
	sessionID := c.Param("id")

	var input pkg.TurnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if (input.Text == "") == (len(input.FollowupAnswers) == 0) {
		s.writeJSON(c, http.StatusBadRequest, errorResponse{Error: "exactly one of text or followup_answers is required"})
		return
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	ctx := c.Request.Context()
	state, found, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load session")
		s.writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "failed to load session"})
		return
	}
	if !found {
		s.writeJSON(c, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	messages, err := s.orchestrator.ProcessTurn(ctx, sessionID, state, input)
	if err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("Turn processing failed")
		s.writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "turn processing failed"})
		return
	}

	if err := s.registry.Save(ctx, sessionID, state); err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to save session")
	}

	s.writeJSON(c, http.StatusOK, turnResponse{Messages: messages})
}

// endSession discards the session state.
func (s *Server) endSession(c *gin.Context) {
	sessionID := c.Param("id")

	if err := s.registry.Delete(c.Request.Context(), sessionID); err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to delete session")
		s.writeJSON(c, http.StatusInternalServerError, errorResponse{Error: "failed to delete session"})
		return
	}

	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()

	logger.Info().Str("session_id", sessionID).Msg("Session ended")
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	s.writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// sessionLock returns the mutex serializing turns for one session.
func (s *Server) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, exists := s.locks[sessionID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// writeJSON renders through sonic, matching the encoder used on the
// storage side.
func (s *Server) writeJSON(c *gin.Context, status int, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}
