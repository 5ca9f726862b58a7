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
	"broadwaybot/internal/profile"
	"broadwaybot/pkg"
)

// StylingService judges how a product works for the shopper. It resolves
// which product is under discussion (explicit mention, or a pronoun
// pointing at an earlier recommendation), analyzes the fit against the
// profile, and reuses the styling tips as follow-on search tags. It
// refuses to analyze off nearly-empty profiles; below the slot threshold
// it collects answers instead.
type StylingService struct {
	gen          llm.Generator
	rec          *Recommender
	minSlots     int
	maxFollowUps int
	analyzeTmpl  prompt.ChatTemplate
}

// compatibilityAnalysis is the structured verdict on one product.
type compatibilityAnalysis struct {
	Product        string   `json:"product"`
	BodyTypeMatch  string   `json:"body_type_match"`
	ColorHarmony   string   `json:"color_harmony"`
	StyleAlignment string   `json:"style_alignment"`
	OverallRating  string   `json:"overall_rating"`
	StylingTips    []string `json:"styling_tips"`
}

const stylingAnalyzeSystem = `You are a personal stylist judging how well a product works for a shopper.

First work out which product is under discussion: an explicit mention in the message, or a pronoun
("it", "that dress") referring to one of the previously recommended products. If no product is
identifiable, treat the request as general styling for the shopper's profile and leave "product" empty.

Respond with ONLY this JSON, no markdown fences:

{{"product": "the garment under discussion", "body_type_match": "one sentence on fit for their body type", "color_harmony": "one sentence on color against their skin tone", "style_alignment": "one sentence on fit with their style", "overall_rating": "8/10", "styling_tips": ["short concrete tip", "short concrete tip"]}}

Give 2-4 styling tips. Tips should be concrete and reusable as lowercase product search terms.`

const stylingAnalyzeUser = `SHOPPER PROFILE: {profile}
PREVIOUSLY RECOMMENDED: {previous}
CURRENT MESSAGE: {message}`

// NewStylingService wires the compatibility-analysis template.
func NewStylingService(gen llm.Generator, rec *Recommender, minSlots, maxFollowUps int) *StylingService {
	return &StylingService{
		gen:          gen,
		rec:          rec,
		minSlots:     minSlots,
		maxFollowUps: maxFollowUps,
		analyzeTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(stylingAnalyzeSystem),
			schema.UserMessage(stylingAnalyzeUser),
		),
	}
}

// Handle analyzes the product under discussion against the profile, or
// collects missing slots when the profile is too thin to judge honestly.
func (s *StylingService) Handle(ctx context.Context, req Request) (Response, error) {
	p := &req.State.Profile

	if p.FilledStyleSlots() < s.minSlots {
		questions := profile.MissingStyleQuestions(p, s.maxFollowUps)
		logger.Debug().
			Int("filled_slots", p.FilledStyleSlots()).
			Int("questions", len(questions)).
			Msg("Profile too thin for styling advice, asking follow-ups")
		return Response{
			Dialogue:       "I'd love to style you properly, and for that I need to know you a little better first.",
			FollowUpNeeded: true,
			FollowUps:      questions,
		}, nil
	}

	analysis := s.analyze(ctx, p, req.UserInput, req.State.LastRecommendations)

	var dialogue string
	var tags []string
	if analysis.Degraded() {
		dialogue = "Based on what you've told me about yourself, I've pulled some pieces that should flatter you really well."
		tags = profileTags(p)
	} else {
		dialogue = formatAnalysis(analysis.Value)
		tags = tipTags(analysis.Value.StylingTips, p)
	}

	recommendations := s.rec.Recommend(ctx, req.UserInput, req.Summary, tags, Options{
		Gender: p.Gender,
	})

	return Response{
		Dialogue:        dialogue,
		Recommendations: recommendations,
	}, nil
}

// analyze resolves the product under discussion and rates it against
// the profile. Prior recommendations are handed to the model so
// pronouns resolve against what the shopper was actually shown.
func (s *StylingService) analyze(ctx context.Context, p *pkg.UserProfile, message string, prior []pkg.Recommendation) llm.Result[compatibilityAnalysis] {
	var titles []string
	for _, rec := range prior {
		titles = append(titles, rec.Title)
	}
	previous := "none"
	if len(titles) > 0 {
		previous = strings.Join(titles, ", ")
	}

	messages, err := s.analyzeTmpl.Format(ctx, map[string]any{
		"profile":  describeProfile(p),
		"previous": previous,
		"message":  message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			analysis, parseErr := parseCompatibilityAnalysis(out.Content)
			if parseErr == nil {
				return llm.Ok(analysis)
			}
			err = parseErr
		}
	}

	logger.Warn().Err(err).Msg("Compatibility analysis failed, using profile-based advice")
	return llm.Fallback(compatibilityAnalysis{}, err.Error())
}

func parseCompatibilityAnalysis(content string) (compatibilityAnalysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return compatibilityAnalysis{}, fmt.Errorf("no JSON object in model output")
	}

	var analysis compatibilityAnalysis
	if err := sonic.Unmarshal([]byte(content[start:end+1]), &analysis); err != nil {
		return compatibilityAnalysis{}, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if analysis.BodyTypeMatch == "" && analysis.StyleAlignment == "" && len(analysis.StylingTips) == 0 {
		return compatibilityAnalysis{}, fmt.Errorf("analysis is empty")
	}
	return analysis, nil
}

// formatAnalysis renders the verdict as a short summary followed by
// numbered tips.
func formatAnalysis(a compatibilityAnalysis) string {
	var b strings.Builder
	if a.Product != "" {
		fmt.Fprintf(&b, "On the %s: ", a.Product)
	}
	for _, part := range []string{a.BodyTypeMatch, a.ColorHarmony, a.StyleAlignment} {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteString(part)
			if !strings.HasSuffix(part, ".") {
				b.WriteString(".")
			}
			b.WriteString(" ")
		}
	}
	if a.OverallRating != "" {
		fmt.Fprintf(&b, "Overall: %s.", a.OverallRating)
	}
	for i, tip := range a.StylingTips {
		fmt.Fprintf(&b, "\n%d. %s", i+1, tip)
	}
	return strings.TrimSpace(b.String())
}

func describeProfile(p *pkg.UserProfile) string {
	var parts []string
	keys := append([]string{"gender"}, pkg.StyleSlotKeys...)
	for _, key := range keys {
		if value := p.Get(key); value != "" {
			parts = append(parts, key+": "+value)
		}
	}
	return strings.Join(parts, "; ")
}

// tipTags turns the styling tips into search tags, padded with profile
// tags when the tips are too sparse to search on.
func tipTags(tips []string, p *pkg.UserProfile) []string {
	var tags []string
	for _, tip := range tips {
		tags = append(tags, styleWords(tip)...)
	}
	if len(tags) < 2 {
		tags = append(tags, profileTags(p)...)
	}
	return dedupe(tags, 8)
}

// profileTags distills the filled slots into search tags. Option
// labels carry parenthetical explanations that never appear in the
// catalog, so those are stripped first.
func profileTags(p *pkg.UserProfile) []string {
	var tags []string
	for _, key := range pkg.StyleSlotKeys {
		value := p.Get(key)
		if value == "" {
			continue
		}
		if i := strings.Index(value, "("); i >= 0 {
			value = value[:i]
		}
		tags = append(tags, styleWords(value)...)
	}
	return append(tags, "versatile")
}

var styleStopwords = map[string]bool{
	"and": true, "with": true, "not": true, "sure": true, "prefer": true,
	"the": true, "say": true, "for": true, "brand": true, "varies": true,
	"your": true, "this": true, "that": true, "try": true, "wear": true,
	"pair": true, "add": true, "keep": true,
}

func styleWords(s string) []string {
	var words []string
	for _, word := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if len(word) > 2 && !styleStopwords[word] {
			words = append(words, word)
		}
	}
	return words
}
