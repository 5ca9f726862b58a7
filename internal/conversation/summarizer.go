package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
)

// Summarizer maintains the rolling conversation summary. The summary is
// the only cross-turn memory of what was said, so folds must always
// produce something usable even when the model is down.
type Summarizer struct {
	gen      llm.Generator
	maxChars int
	userTmpl prompt.ChatTemplate
	botTmpl  prompt.ChatTemplate
}

const summarizeUserSystem = `You maintain a running summary of a conversation between a fashion shopper and a shopping assistant.
Fold the user's newest message into the existing summary. Keep every detail that matters for shopping:
occasions, destinations, garments mentioned, preferences, constraints, budget, and who is being shopped for.
Drop greetings and filler. Respond with ONLY the updated summary text, no preamble.`

const summarizeUserUser = `<current_summary>
{summary}
</current_summary>

<new_user_message>
{message}
</new_user_message>`

const summarizeBotSystem = `You maintain a running summary of a conversation between a fashion shopper and a shopping assistant.
Fold the assistant's reply into the existing summary so the next turn knows what was already suggested or asked.
Keep it brief. Respond with ONLY the updated summary text, no preamble.`

const summarizeBotUser = `<current_summary>
{summary}
</current_summary>

<assistant_reply>
{message}
</assistant_reply>`

// NewSummarizer wires the fold templates onto the shared generator.
func NewSummarizer(gen llm.Generator, maxChars int) *Summarizer {
	return &Summarizer{
		gen:      gen,
		maxChars: maxChars,
		userTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(summarizeUserSystem),
			schema.UserMessage(summarizeUserUser),
		),
		botTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(summarizeBotSystem),
			schema.UserMessage(summarizeBotUser),
		),
	}
}

// FoldUserTurn merges the user's new message into the summary. On any
// model failure the prior summary is returned unchanged; only a failing
// first turn seeds the summary from the raw message, so the summary is
// never empty after a user turn.
func (s *Summarizer) FoldUserTurn(ctx context.Context, summary, message string) llm.Result[string] {
	return s.fold(ctx, s.userTmpl, summary, message, "User said: ")
}

// FoldBotTurn merges the assistant's outgoing reply into the summary.
// It runs at the end of every turn, including degraded ones.
func (s *Summarizer) FoldBotTurn(ctx context.Context, summary, message string) llm.Result[string] {
	return s.fold(ctx, s.botTmpl, summary, message, "Assistant replied: ")
}

func (s *Summarizer) fold(ctx context.Context, tmpl prompt.ChatTemplate, summary, message, staticPrefix string) llm.Result[string] {
	if strings.TrimSpace(message) == "" {
		return llm.Ok(summary)
	}

	messages, err := tmpl.Format(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			folded := strings.TrimSpace(out.Content)
			if folded != "" {
				return llm.Ok(s.clamp(folded))
			}
			err = fmt.Errorf("model returned empty summary")
		}
	}

	logger.Warn().Err(err).Msg("Summary fold failed, retaining prior context")
	if strings.TrimSpace(summary) != "" {
		return llm.Fallback(summary, err.Error())
	}
	return llm.Fallback(s.clamp(staticPrefix+message), err.Error())
}

// clamp trims the summary to the configured budget, keeping the tail
// because recent turns matter more than old ones.
func (s *Summarizer) clamp(summary string) string {
	if s.maxChars <= 0 || len(summary) <= s.maxChars {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= s.maxChars {
		return summary
	}
	return string(runes[len(runes)-s.maxChars:])
}
