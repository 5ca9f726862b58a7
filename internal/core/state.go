package core

import (
	"broadwaybot/pkg"
)

// TurnState is the mutable working state for one turn. Nodes read and
// write it as the graph walks; only the final commit node writes back
// into the session's ConversationState.
type TurnState struct {
	// Turn input
	SessionID       string
	UserInput       string
	FollowupAnswers map[string]string

	// Session state being operated on
	Session *pkg.ConversationState

	// Working copy of the rolling summary. Committed to the session at
	// the end of the turn.
	Summary string

	// Routing
	Intent       pkg.Intent
	ErrorMessage string

	// Strategy output
	ResponseMessage   string
	Recommendations   []pkg.Recommendation
	FollowUpNeeded    bool
	FollowUpQuestions []pkg.FollowUpQuestion
	IsGenderLoop      bool

	// Outbound
	Messages []pkg.Message

	// Diagnostics
	ExecutionPath []string
	Degraded      []string
}

// newTurnState seeds the working state from the session.
func newTurnState(sessionID string, session *pkg.ConversationState, input pkg.TurnInput) *TurnState {
	return &TurnState{
		SessionID:       sessionID,
		UserInput:       input.Text,
		FollowupAnswers: input.FollowupAnswers,
		Session:         session,
		Summary:         session.ContextSummary,
		Intent:          session.CurrentIntent,
	}
}

// IsFollowupResume reports whether this turn is a follow-up form
// submission rather than a free-text message.
func (s *TurnState) IsFollowupResume() bool {
	return len(s.FollowupAnswers) > 0
}

// Fail records a turn-level error. The first error wins; later nodes
// see the turn as failed and route straight to response assembly.
func (s *TurnState) Fail(message string) {
	if s.ErrorMessage == "" {
		s.ErrorMessage = message
	}
}

// Failed reports whether the turn hit an unrecoverable error.
func (s *TurnState) Failed() bool {
	return s.ErrorMessage != ""
}

// NoteDegraded records that a component fell back to static behavior.
func (s *TurnState) NoteDegraded(component string) {
	s.Degraded = append(s.Degraded, component)
}
