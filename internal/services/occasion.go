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
	"broadwaybot/pkg"
)

// OccasionService dresses the shopper for a specific event. It refines
// a structured parameter set across turns and keeps recommending with
// whatever it has, asking for missing details in the dialogue rather
// than blocking on them.
type OccasionService struct {
	gen          llm.Generator
	rec          *Recommender
	maxFollowUps int
	extractTmpl  prompt.ChatTemplate
	dialogueTmpl prompt.ChatTemplate
}

// parameterPriority orders which missing details are worth asking
// about first.
var parameterPriority = []string{"gender", "occasion", "mood", "time", "budget", "location", "body_type"}

const occasionExtractSystem = `You extract outfit-planning parameters from a fashion shopping conversation.

Core parameters: occasion, time, location, body_type, budget, gender
Inferred parameters: weather, formality, mood, color, fabric, trend, age

Fill what the conversation supports; infer cautiously; leave unknown parameters out entirely.
Values are short lowercase tags. Respond with ONLY this JSON, no markdown fences:

{{"core_parameters": {{"occasion": ["..."]}}, "inferred_parameters": {{"formality": ["..."]}}}}`

const occasionExtractUser = `<conversation_summary>
{summary}
</conversation_summary>

<current_message>
{message}
</current_message>`

const occasionDialogueSystem = `You are a warm, stylish shopping assistant helping someone dress for an occasion.
Write a short reply (2-3 sentences): one insightful styling observation drawn from what you know,
then, if details are listed as missing, casually bundle questions for them into the reply.
No lists, no emoji spam, no markdown.`

const occasionDialogueUser = `KNOWN PARAMETERS: {known}
MISSING DETAILS TO ASK ABOUT: {missing}
CURRENT MESSAGE: {message}`

// NewOccasionService wires the extraction and dialogue templates.
func NewOccasionService(gen llm.Generator, rec *Recommender, maxFollowUps int) *OccasionService {
	return &OccasionService{
		gen:          gen,
		rec:          rec,
		maxFollowUps: maxFollowUps,
		extractTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(occasionExtractSystem),
			schema.UserMessage(occasionExtractUser),
		),
		dialogueTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(occasionDialogueSystem),
			schema.UserMessage(occasionDialogueUser),
		),
	}
}

// Handle extracts parameters, merges them into the session's running
// set, and recommends from the merged tags.
func (s *OccasionService) Handle(ctx context.Context, req Request) (Response, error) {
	extracted := s.extractParameters(ctx, req.Summary, req.UserInput)

	if req.State.OccasionParams == nil {
		req.State.OccasionParams = pkg.EmptyOccasionParameters()
	}
	req.State.OccasionParams.MergeFrom(extracted.Value)
	params := req.State.OccasionParams

	logger.Debug().
		Float64("confidence", params.ConfidenceScore()).
		Bool("degraded", extracted.Degraded()).
		Msg("Occasion parameters refined")

	core, inferred := params.FlatTags()
	recommendations := s.rec.Recommend(ctx, req.UserInput, req.Summary, append(core, inferred...), Options{
		Gender: req.State.Profile.Gender,
	})

	missing := prioritizedMissing(params.MissingCore(), s.maxFollowUps)
	dialogue := s.generateDialogue(ctx, req.UserInput, params, missing)

	return Response{
		Dialogue:        dialogue,
		Recommendations: recommendations,
	}, nil
}

// extractParameters runs the extraction prompt. Any failure yields an
// empty parameter set so the merge is a no-op rather than a wipe.
func (s *OccasionService) extractParameters(ctx context.Context, summary, message string) llm.Result[*pkg.OccasionParameters] {
	messages, err := s.extractTmpl.Format(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			params, parseErr := parseOccasionParameters(out.Content)
			if parseErr == nil {
				return llm.Ok(params)
			}
			err = parseErr
		}
	}

	logger.Warn().Err(err).Msg("Occasion parameter extraction failed, using keyword fallback")
	return llm.Fallback(fallbackOccasionParameters(message), err.Error())
}

// parseOccasionParameters decodes the JSON payload, tolerating fenced
// or prefixed output by slicing to the outermost braces.
func parseOccasionParameters(content string) (*pkg.OccasionParameters, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var params pkg.OccasionParameters
	if err := sonic.Unmarshal([]byte(content[start:end+1]), &params); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return &params, nil
}

// fallbackOccasionParameters does a minimal keyword extraction so an
// outage still captures the headline occasion.
func fallbackOccasionParameters(message string) *pkg.OccasionParameters {
	params := pkg.EmptyOccasionParameters()
	text := strings.ToLower(message)
	for _, occasion := range []string{"wedding", "party", "office", "interview", "festival", "reception", "date"} {
		if strings.Contains(text, occasion) {
			params.Core["occasion"] = []string{occasion}
			break
		}
	}
	return params
}

func (s *OccasionService) generateDialogue(ctx context.Context, message string, params *pkg.OccasionParameters, missing []string) string {
	known := describeKnownParameters(params)

	messages, err := s.dialogueTmpl.Format(ctx, map[string]any{
		"known":   known,
		"missing": strings.Join(missing, ", "),
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil && strings.TrimSpace(out.Content) != "" {
			return strings.TrimSpace(out.Content)
		}
	}

	logger.Warn().Err(err).Msg("Occasion dialogue generation failed, using static reply")
	if len(missing) > 0 {
		return fmt.Sprintf("Here's what I found so far. To sharpen the picks, could you tell me your %s?", strings.Join(missing, " and "))
	}
	return "Here are some picks I think will work really well for the occasion."
}

func describeKnownParameters(params *pkg.OccasionParameters) string {
	var parts []string
	for _, key := range pkg.CoreParameterKeys {
		if values := params.Core[key]; len(values) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, "/")))
		}
	}
	for _, key := range pkg.InferredParameterKeys {
		if values := params.Inferred[key]; len(values) > 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, "/")))
		}
	}
	if len(parts) == 0 {
		return "none yet"
	}
	return strings.Join(parts, ", ")
}

// prioritizedMissing orders missing parameters by ask-priority and
// caps how many one reply may ask about.
func prioritizedMissing(missing []string, max int) []string {
	inMissing := make(map[string]bool, len(missing))
	for _, p := range missing {
		inMissing[p] = true
	}

	var ordered []string
	for _, p := range parameterPriority {
		if inMissing[p] && p != "gender" {
			ordered = append(ordered, p)
		}
	}
	for _, p := range missing {
		if p == "gender" {
			continue
		}
		found := false
		for _, o := range ordered {
			if o == p {
				found = true
				break
			}
		}
		if !found {
			ordered = append(ordered, p)
		}
	}

	if max > 0 && len(ordered) > max {
		ordered = ordered[:max]
	}
	return ordered
}
