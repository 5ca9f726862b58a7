package conversation

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
	"broadwaybot/pkg"
)

// Classifier routes each user message to one of the five shopping
// strategies. It weighs the current message over the accumulated
// summary, so a topic change is picked up on the turn it happens.
type Classifier struct {
	gen      llm.Generator
	template prompt.ChatTemplate
}

const classifySystem = `You are an intent classifier for a fashion shopping assistant.
Classify the user's CURRENT message into exactly one of these intents:

- occasion: shopping for a specific event (wedding, party, office, date, festival)
- pairing: asking what goes with a garment they already have or just mentioned
- vacation: shopping for a trip or destination
- styling: asking for personal styling advice based on their body, looks, or overall wardrobe
- general: anything else, including greetings and vague requests

The conversation summary is background only. If the current message clearly changes topic,
classify the current message, not the history.

Respond with ONLY the intent word.`

const classifyUser = `<conversation_summary>
{summary}
</conversation_summary>

<current_message>
{message}
</current_message>`

// NewClassifier builds the classifier on the shared generator.
func NewClassifier(gen llm.Generator) *Classifier {
	return &Classifier{
		gen: gen,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(classifySystem),
			schema.UserMessage(classifyUser),
		),
	}
}

// Classify determines the intent of the current message. A model
// failure or an unparseable label falls back to keyword rules, so the
// turn always gets a usable intent.
func (c *Classifier) Classify(ctx context.Context, summary, message string) llm.Result[pkg.Intent] {
	messages, err := c.template.Format(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = c.gen.Generate(ctx, messages)
		if err == nil {
			if intent, ok := parseIntentLabel(out.Content); ok {
				logger.Debug().Str("intent", string(intent)).Msg("Intent classified")
				return llm.Ok(intent)
			}
			logger.Warn().Str("output", out.Content).Msg("Unparseable intent label, using keyword fallback")
			return llm.Fallback(keywordIntent(message), "unparseable intent label")
		}
	}

	logger.Warn().Err(err).Msg("Intent classification failed, using keyword fallback")
	return llm.Fallback(keywordIntent(message), err.Error())
}

// parseIntentLabel pulls a known intent out of the model output. The
// first recognized token wins, so a chatty model still parses.
func parseIntentLabel(content string) (pkg.Intent, bool) {
	for _, field := range strings.Fields(strings.ToLower(content)) {
		field = strings.Trim(field, ".,:;\"'`")
		if intent, ok := pkg.ParseIntent(field); ok {
			return intent, true
		}
	}
	return pkg.IntentGeneral, false
}

// keywordIntent is the rule-based fallback classifier. It reads only
// the current message, never the summary.
func keywordIntent(message string) pkg.Intent {
	text := strings.ToLower(message)

	contains := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("go with", "goes with", "pair", "match with", "wear with", "combine with"):
		return pkg.IntentPairing
	case contains("vacation", "trip", "travel", "holiday", "getaway", "beach", "honeymoon"):
		return pkg.IntentVacation
	case contains("wedding", "party", "office", "interview", "date night", "festival", "reception", "occasion", "event"):
		return pkg.IntentOccasion
	case contains("style me", "styling", "my style", "wardrobe", "makeover", "what suits me"):
		return pkg.IntentStyling
	}
	return pkg.IntentGeneral
}
