package core

import (
	"context"
	"fmt"
	"strings"

	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
	"broadwaybot/internal/profile"
	"broadwaybot/internal/services"
	"broadwaybot/pkg"
)

// Summarizer maintains the rolling conversation summary.
type Summarizer interface {
	FoldUserTurn(ctx context.Context, summary, message string) llm.Result[string]
	FoldBotTurn(ctx context.Context, summary, message string) llm.Result[string]
}

// IntentClassifier routes a message to a shopping strategy.
type IntentClassifier interface {
	Classify(ctx context.Context, summary, message string) llm.Result[pkg.Intent]
}

// GenderExtractor infers who is being shopped for.
type GenderExtractor interface {
	Extract(ctx context.Context, summary, message string) llm.Result[string]
}

// Texts are the operator-tunable outbound strings.
type Texts struct {
	GenderPrompt string
	ErrorReply   string
}

// Orchestrator runs the per-turn state machine: summarize, classify,
// gate on gender, dispatch to the strategy, assemble the outbound
// message list, and fold the reply back into the summary.
type Orchestrator struct {
	summarizer Summarizer
	classifier IntentClassifier
	gender     GenderExtractor
	handlers   map[pkg.Intent]services.Handler
	texts      Texts
	graph      *Graph
}

// NewOrchestrator wires the turn graph. Handlers must cover every
// intent; a missing handler is a wiring bug and fails construction.
func NewOrchestrator(
	summarizer Summarizer,
	classifier IntentClassifier,
	gender GenderExtractor,
	handlers map[pkg.Intent]services.Handler,
	texts Texts,
) (*Orchestrator, error) {
	for _, intent := range pkg.AllIntents {
		if handlers[intent] == nil {
			return nil, fmt.Errorf("no handler registered for intent %s", intent)
		}
	}

	o := &Orchestrator{
		summarizer: summarizer,
		classifier: classifier,
		gender:     gender,
		handlers:   handlers,
		texts:      texts,
	}
	o.graph = o.buildGraph()
	return o, nil
}

// buildGraph lays out the turn flow. The gender gate sits between
// classification and dispatch; errors short-circuit to response
// assembly, and the final summary fold always runs.
func (o *Orchestrator) buildGraph() *Graph {
	failed := func(s *TurnState) bool { return s.Failed() }

	graph := NewGraph(Flow{
		StartNode: "process_conversation",
		Edges: map[string][]Edge{
			"process_conversation": {
				{To: "prepare_response", Condition: failed, Priority: 1},
				{To: "extract_gender", Priority: 2},
			},
			"extract_gender": {
				{To: "prepare_response", Condition: failed, Priority: 1},
				{To: "route_to_service", Condition: genderResolved, Priority: 2},
				{To: "generate_followup", Priority: 3},
			},
			"merge_followup_answers": {
				{To: "route_to_service", Condition: genderResolved, Priority: 1},
				{To: "generate_followup", Priority: 2},
			},
			"generate_followup": {
				{To: "prepare_response", Priority: 1},
			},
			"route_to_service": {
				{To: "prepare_response", Priority: 1},
			},
			"prepare_response": {
				{To: "process_bot_response", Priority: 1},
			},
			"process_bot_response": {
				{To: nodeComplete, Priority: 1},
			},
		},
	})

	nodes := []Node{
		nodeFunc{"process_conversation", o.processConversation},
		nodeFunc{"extract_gender", o.extractGender},
		nodeFunc{"merge_followup_answers", o.mergeFollowupAnswers},
		nodeFunc{"generate_followup", o.generateGenderFollowup},
		nodeFunc{"route_to_service", o.routeToService},
		nodeFunc{"prepare_response", o.prepareResponse},
		nodeFunc{"process_bot_response", o.processBotResponse},
	}
	for _, node := range nodes {
		if err := graph.AddNode(node); err != nil {
			panic(err)
		}
	}
	return graph
}

func genderResolved(s *TurnState) bool {
	return s.Session.Profile.GenderResolved()
}

// ProcessTurn runs one turn against the session state and returns the
// ordered outbound message list. The session state is mutated in place
// and should be persisted by the caller afterwards.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID string, session *pkg.ConversationState, input pkg.TurnInput) ([]pkg.Message, error) {
	state := newTurnState(sessionID, session, input)

	// Follow-up submissions skip classification entirely and resume
	// the strategy that asked the question.
	start := ""
	if state.IsFollowupResume() {
		start = "merge_followup_answers"
	} else if strings.TrimSpace(state.UserInput) == "" {
		state.Fail("empty message")
		start = "prepare_response"
	}

	if err := o.graph.Execute(ctx, state, start); err != nil {
		return nil, err
	}

	logger.Info().
		Str("session_id", sessionID).
		Str("intent", string(state.Intent)).
		Bool("followup", state.FollowUpNeeded).
		Bool("error", state.Failed()).
		Int("recommendations", len(state.Recommendations)).
		Strs("degraded", state.Degraded).
		Msg("Turn processed")

	return state.Messages, nil
}

// processConversation folds the user message into the summary and
// classifies the turn's intent.
func (o *Orchestrator) processConversation(ctx context.Context, state *TurnState) error {
	folded := o.summarizer.FoldUserTurn(ctx, state.Summary, state.UserInput)
	if folded.Degraded() {
		state.NoteDegraded("summarizer")
	}
	state.Summary = folded.Value

	classified := o.classifier.Classify(ctx, state.Summary, state.UserInput)
	if classified.Degraded() {
		state.NoteDegraded("classifier")
	}
	state.Intent = classified.Value
	state.Session.CurrentIntent = classified.Value
	return nil
}

// extractGender resolves the shopper's gender from the conversation
// when the profile hasn't settled it yet.
func (o *Orchestrator) extractGender(ctx context.Context, state *TurnState) error {
	if state.Session.Profile.GenderResolved() {
		return nil
	}

	extracted := o.gender.Extract(ctx, state.Summary, state.UserInput)
	if extracted.Degraded() {
		state.NoteDegraded("gender")
	}
	if extracted.Value != "" {
		state.Session.Profile.Set("gender", extracted.Value)
		logger.Debug().
			Str("session_id", state.SessionID).
			Str("gender", extracted.Value).
			Msg("Gender inferred from conversation")
	}
	return nil
}

// mergeFollowupAnswers applies a submitted follow-up form to the
// profile. The turn then resumes the stored intent without
// re-classifying.
func (o *Orchestrator) mergeFollowupAnswers(ctx context.Context, state *TurnState) error {
	state.Session.Profile.Merge(state.FollowupAnswers)
	state.Intent = state.Session.CurrentIntent

	logger.Debug().
		Str("session_id", state.SessionID).
		Str("resumed_intent", string(state.Intent)).
		Int("answers", len(state.FollowupAnswers)).
		Msg("Follow-up answers merged")
	return nil
}

// generateGenderFollowup raises the gender prompt. No products go out
// on a gender-gated turn.
func (o *Orchestrator) generateGenderFollowup(ctx context.Context, state *TurnState) error {
	state.FollowUpNeeded = true
	state.IsGenderLoop = true
	state.FollowUpQuestions = profile.GenderQuestion()
	return nil
}

// routeToService dispatches to the strategy for the turn's intent.
func (o *Orchestrator) routeToService(ctx context.Context, state *TurnState) error {
	handler := o.handlers[state.Intent]
	if handler == nil {
		handler = o.handlers[pkg.IntentGeneral]
	}

	resp, err := handler.Handle(ctx, services.Request{
		UserInput: state.UserInput,
		Summary:   state.Summary,
		State:     state.Session,
	})
	if err != nil {
		logger.Error().Err(err).
			Str("session_id", state.SessionID).
			Str("intent", string(state.Intent)).
			Msg("Strategy handler failed")
		state.Fail(err.Error())
		return nil
	}

	state.ResponseMessage = resp.Dialogue
	state.Recommendations = resp.Recommendations
	state.FollowUpNeeded = resp.FollowUpNeeded
	state.FollowUpQuestions = resp.FollowUps
	return nil
}

// prepareResponse assembles the ordered outbound list. Priority within
// a turn: error beats follow-up beats the gender prompt beats the
// normal reply. The intent message always leads.
func (o *Orchestrator) prepareResponse(ctx context.Context, state *TurnState) error {
	state.Messages = append(state.Messages, pkg.Message{
		Type: pkg.MessageIntent,
		Text: string(state.Intent),
	})

	switch {
	case state.Failed():
		state.Messages = append(state.Messages, pkg.Message{
			Type:        pkg.MessageError,
			Text:        o.texts.ErrorReply,
			MessageType: "text",
		})

	case state.FollowUpNeeded && state.IsGenderLoop:
		state.Messages = append(state.Messages, pkg.Message{
			Type:      pkg.MessageGenderPrompt,
			Text:      o.texts.GenderPrompt,
			Questions: state.FollowUpQuestions,
		})

	case state.FollowUpNeeded:
		if state.ResponseMessage != "" {
			state.Messages = append(state.Messages, pkg.Message{
				Type:        pkg.MessageBot,
				Text:        state.ResponseMessage,
				MessageType: "text",
			})
		}
		state.Messages = append(state.Messages, pkg.Message{
			Type:      pkg.MessageFollowUp,
			Title:     "A few quick questions",
			Questions: state.FollowUpQuestions,
		})

	default:
		if state.ResponseMessage != "" {
			state.Messages = append(state.Messages, pkg.Message{
				Type:        pkg.MessageBot,
				Text:        state.ResponseMessage,
				MessageType: "text",
			})
		}
		if len(state.Recommendations) > 0 {
			recommendations := state.Recommendations
			if len(recommendations) > pkg.MaxRecommendations {
				recommendations = recommendations[:pkg.MaxRecommendations]
			}
			state.Messages = append(state.Messages, pkg.Message{
				Type:            pkg.MessageRecommendations,
				Recommendations: recommendations,
			})
			state.Session.LastRecommendations = recommendations
		}
	}

	return nil
}

// processBotResponse folds the outgoing reply into the summary and
// commits the summary to the session. This runs on every turn,
// degraded ones included, so the context never forgets what was sent.
func (o *Orchestrator) processBotResponse(ctx context.Context, state *TurnState) error {
	var outgoing []string
	for _, msg := range state.Messages {
		if msg.Text != "" && msg.Type != pkg.MessageIntent {
			outgoing = append(outgoing, msg.Text)
		}
		if msg.Type == pkg.MessageRecommendations {
			var titles []string
			for _, rec := range msg.Recommendations {
				titles = append(titles, rec.Title)
			}
			outgoing = append(outgoing, "Recommended products: "+strings.Join(titles, ", "))
		}
	}

	if len(outgoing) > 0 {
		folded := o.summarizer.FoldBotTurn(ctx, state.Summary, strings.Join(outgoing, " "))
		if folded.Degraded() {
			state.NoteDegraded("summarizer")
		}
		state.Summary = folded.Value
	}

	state.Session.ContextSummary = state.Summary
	return nil
}
