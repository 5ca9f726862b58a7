package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
)

// GeneralService handles everything the specific strategies don't. It
// first sorts the message into informational (answer directly, no
// products) or product-seeking (clarify, and recommend only when the
// assessment explicitly says so).
type GeneralService struct {
	gen          llm.Generator
	rec          *Recommender
	fallbackText string
	assessTmpl   prompt.ChatTemplate
}

// generalAssessment is the model's read on a message that didn't fit a
// specific shopping flow.
type generalAssessment struct {
	Informational  bool     `json:"informational"`
	Recommendation bool     `json:"recommendation"`
	Reply          string   `json:"reply"`
	SearchTags     []string `json:"search_tags"`
	Questions      []string `json:"clarifying_questions"`
}

const generalAssessSystem = `You are a friendly fashion shopping assistant. The shopper's message doesn't fit a specific
shopping flow yet. Assess it and respond with ONLY this JSON, no markdown fences:

{{"informational": false, "recommendation": false, "reply": "your warm 2-3 sentence reply", "search_tags": [], "clarifying_questions": ["a question nudging toward an event, trip, pairing, or styling flow"]}}

Rules:
- "informational" true when they ask a fashion question answerable directly (fabric care, fit terms,
  trends). Answer it in "reply". No search_tags, no clarifying_questions.
- Otherwise they are product-seeking: reply warmly and give one to three clarifying_questions.
- Set "recommendation" true ONLY when the message names something concrete enough to search for,
  and fill "search_tags" with short lowercase tags for it.`

const generalAssessUser = `<conversation_summary>
{summary}
</conversation_summary>

<current_message>
{message}
</current_message>`

// NewGeneralService wires the assessment template.
func NewGeneralService(gen llm.Generator, rec *Recommender, fallbackText string) *GeneralService {
	return &GeneralService{
		gen:          gen,
		rec:          rec,
		fallbackText: fallbackText,
		assessTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(generalAssessSystem),
			schema.UserMessage(generalAssessUser),
		),
	}
}

// Handle answers informational questions directly and clarifies
// product-seeking ones. Products go out only on an explicit
// recommendation signal, and an empty search despite that signal
// rewrites the reply into an apology with no dangling questions.
func (s *GeneralService) Handle(ctx context.Context, req Request) (Response, error) {
	assessment := s.assess(ctx, req.Summary, req.UserInput)
	a := assessment.Value

	if a.Informational {
		return Response{Dialogue: a.Reply}, nil
	}

	dialogue := a.Reply
	if len(a.Questions) > 0 {
		dialogue = strings.TrimSpace(dialogue + " " + strings.Join(a.Questions, " "))
	}

	if !a.Recommendation {
		return Response{Dialogue: dialogue}, nil
	}

	recommendations := s.rec.Recommend(ctx, req.UserInput, req.Summary, a.SearchTags, Options{
		Gender: req.State.Profile.Gender,
	})
	if len(recommendations) == 0 {
		// The assessment promised products the catalog couldn't deliver.
		return Response{
			Dialogue: "I'm sorry, I couldn't find anything quite right for that just yet. Tell me a bit more about what you have in mind and I'll keep looking.",
		}, nil
	}

	return Response{
		Dialogue:        dialogue,
		Recommendations: recommendations,
	}, nil
}

func (s *GeneralService) assess(ctx context.Context, summary, message string) llm.Result[generalAssessment] {
	messages, err := s.assessTmpl.Format(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			assessment, parseErr := parseGeneralAssessment(out.Content)
			if parseErr == nil {
				return llm.Ok(assessment)
			}
			err = parseErr
		}
	}

	logger.Warn().Err(err).Msg("General assessment failed, using static reply")
	return llm.Fallback(generalAssessment{Reply: s.fallbackText}, err.Error())
}

func parseGeneralAssessment(content string) (generalAssessment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return generalAssessment{}, fmt.Errorf("no JSON object in model output")
	}

	var assessment generalAssessment
	if err := sonic.Unmarshal([]byte(content[start:end+1]), &assessment); err != nil {
		return generalAssessment{}, fmt.Errorf("failed to decode assessment: %w", err)
	}
	if strings.TrimSpace(assessment.Reply) == "" {
		return generalAssessment{}, fmt.Errorf("assessment has no reply")
	}
	return assessment, nil
}
