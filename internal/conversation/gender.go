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

// GenderExtractor infers who is being shopped for from the conversation
// so far. Product search is gender-filtered, so nothing is recommended
// until this resolves or the shopper answers the prompt.
type GenderExtractor struct {
	gen      llm.Generator
	template prompt.ChatTemplate
}

const genderSystem = `You determine who a fashion conversation is shopping for.
Read the summary and the current message and answer with a SINGLE word:

Male    - shopping for a man
Female  - shopping for a woman
Unisex  - explicitly gender-neutral
None    - not determinable yet

Only infer a gender from explicit signals such as garment types, pronouns, or statements like
"for my husband". Do not guess from names. Respond with ONLY the single word.`

const genderUser = `<conversation_summary>
{summary}
</conversation_summary>

<current_message>
{message}
</current_message>`

// NewGenderExtractor builds the extractor on the shared generator.
func NewGenderExtractor(gen llm.Generator) *GenderExtractor {
	return &GenderExtractor{
		gen: gen,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(genderSystem),
			schema.UserMessage(genderUser),
		),
	}
}

// Extract returns a resolved gender value or "" when undeterminable.
// Failures resolve to "" as well, which routes the turn into the
// gender prompt instead of recommending mis-filtered products.
func (g *GenderExtractor) Extract(ctx context.Context, summary, message string) llm.Result[string] {
	messages, err := g.template.Format(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = g.gen.Generate(ctx, messages)
		if err == nil {
			return llm.Ok(parseGenderWord(out.Content))
		}
	}

	logger.Warn().Err(err).Msg("Gender extraction failed, treating as unresolved")
	return llm.Fallback("", err.Error())
}

// parseGenderWord maps the model's single-word answer to a normalized
// gender. "None" and anything unrecognized read as unresolved.
func parseGenderWord(content string) string {
	word := strings.ToLower(strings.TrimSpace(content))
	if i := strings.IndexAny(word, " \n\t.,"); i >= 0 {
		word = word[:i]
	}
	if gender, ok := pkg.NormalizeGender(word); ok {
		return gender
	}
	return ""
}
