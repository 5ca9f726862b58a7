package services

import (
	"context"

	"broadwaybot/pkg"
)

// Request carries everything a strategy needs for one turn. State is
// the live session state; strategies may refine it (occasion
// parameters, last recommendations) but never touch routing fields.
type Request struct {
	UserInput string
	Summary   string
	State     *pkg.ConversationState
}

// Response is a strategy's contribution to the turn. FollowUpNeeded
// with questions suspends recommendations until the shopper answers.
type Response struct {
	Dialogue        string
	Recommendations []pkg.Recommendation
	FollowUps       []pkg.FollowUpQuestion
	FollowUpNeeded  bool
}

// Handler is one shopping strategy. Handle must not fail the turn for
// model trouble; it degrades to static dialogue instead. A returned
// error means the strategy itself could not run at all.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}
