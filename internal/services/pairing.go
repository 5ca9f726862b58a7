package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"broadwaybot/internal/catalog"
	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
)

// PairingService completes an outfit around a garment the shopper
// already has. It works out which garment types complement the anchor
// piece and searches those subcategories.
type PairingService struct {
	gen          llm.Generator
	store        *catalog.Store
	rec          *Recommender
	extractTmpl  prompt.ChatTemplate
	dialogueTmpl prompt.ChatTemplate
}

// complement holds what the anchor garment pairs with.
type complement struct {
	Anchor        string   `json:"anchor"`
	Tags          []string `json:"tags"`
	Subcategories []string `json:"subcategories"`
}

const pairingExtractSystem = `You are a fashion stylist working out what completes an outfit.
Identify the anchor garment the shopper mentioned, then choose complementary garment types and style tags.

Subcategories must come from the provided list, exact spelling, and must never include the
anchor garment's own subcategory.
Tags are short lowercase style/color/occasion words.
Respond with ONLY this JSON, no markdown fences:

{{"anchor": "black jeans", "tags": ["casual", "streetwear", "white"], "subcategories": ["tshirts", "sneakers", "jackets"]}}`

const pairingExtractUser = `AVAILABLE SUBCATEGORIES: {subcategories}

<conversation_summary>
{summary}
</conversation_summary>

<current_message>
{message}
</current_message>`

const pairingDialogueSystem = `You are a warm, stylish shopping assistant. The shopper wants pieces that go with a garment they have.
Write 1-2 sentences explaining the pairing direction you chose. No lists, no markdown.`

const pairingDialogueUser = `ANCHOR GARMENT: {anchor}
PAIRING DIRECTION: {tags}
CURRENT MESSAGE: {message}`

// NewPairingService wires the complement and dialogue templates.
func NewPairingService(gen llm.Generator, store *catalog.Store, rec *Recommender) *PairingService {
	return &PairingService{
		gen:   gen,
		store: store,
		rec:   rec,
		extractTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(pairingExtractSystem),
			schema.UserMessage(pairingExtractUser),
		),
		dialogueTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(pairingDialogueSystem),
			schema.UserMessage(pairingDialogueUser),
		),
	}
}

// Handle finds complements for the mentioned garment and recommends
// within the complementary subcategories only.
func (s *PairingService) Handle(ctx context.Context, req Request) (Response, error) {
	comp := s.getComplements(ctx, req.Summary, req.UserInput)

	// Complements must genuinely overlap the derived tag direction, not
	// just brush against one tag.
	recommendations := s.rec.Recommend(ctx, req.UserInput, req.Summary, comp.Value.Tags, Options{
		Gender:        req.State.Profile.Gender,
		Subcategories: comp.Value.Subcategories,
		MinMatches:    2,
	})

	dialogue := s.generateDialogue(ctx, req.UserInput, comp.Value)

	return Response{
		Dialogue:        dialogue,
		Recommendations: recommendations,
	}, nil
}

func (s *PairingService) getComplements(ctx context.Context, summary, message string) llm.Result[complement] {
	subcategories := s.subcategoryNames()

	messages, err := s.extractTmpl.Format(ctx, map[string]any{
		"subcategories": strings.Join(subcategories, ", "),
		"summary":       summary,
		"message":       message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			comp, parseErr := parseComplement(out.Content)
			if parseErr == nil {
				return llm.Ok(comp)
			}
			err = parseErr
		}
	}

	logger.Warn().Err(err).Msg("Complement extraction failed, using keyword fallback")
	return llm.Fallback(fallbackComplement(message), err.Error())
}

func parseComplement(content string) (complement, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return complement{}, fmt.Errorf("no JSON object in model output")
	}

	var comp complement
	if err := sonic.Unmarshal([]byte(content[start:end+1]), &comp); err != nil {
		return complement{}, fmt.Errorf("failed to decode complement: %w", err)
	}
	if len(comp.Tags) == 0 {
		return complement{}, fmt.Errorf("complement has no tags")
	}
	return comp, nil
}

// fallbackComplement covers the common anchor garments with a static
// pairing table so an outage still produces sensible search terms.
func fallbackComplement(message string) complement {
	text := strings.ToLower(message)
	table := []struct {
		anchor        string
		tags          []string
		subcategories []string
	}{
		{"jeans", []string{"casual", "everyday", "versatile"}, []string{"tshirts", "shirts", "sneakers", "jackets"}},
		{"saree", []string{"festive", "ethnic-wear", "elegant"}, []string{"jewellery", "heels", "bags"}},
		{"kurta", []string{"ethnic-wear", "festive", "casual"}, []string{"sandals", "jewellery", "trousers"}},
		{"dress", []string{"dressy", "elegant", "versatile"}, []string{"heels", "bags", "jewellery", "jackets"}},
		{"blazer", []string{"formal", "professional", "classic"}, []string{"shirts", "trousers", "loafers", "belts"}},
		{"shirt", []string{"versatile", "classic", "everyday"}, []string{"trousers", "jeans", "loafers", "belts"}},
	}

	for _, entry := range table {
		if strings.Contains(text, entry.anchor) {
			return complement{Anchor: entry.anchor, Tags: entry.tags, Subcategories: entry.subcategories}
		}
	}
	return complement{Anchor: "outfit", Tags: []string{"versatile", "casual", "everyday"}, Subcategories: nil}
}

func (s *PairingService) generateDialogue(ctx context.Context, message string, comp complement) string {
	messages, err := s.dialogueTmpl.Format(ctx, map[string]any{
		"anchor":  comp.Anchor,
		"tags":    strings.Join(comp.Tags, ", "),
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil && strings.TrimSpace(out.Content) != "" {
			return strings.TrimSpace(out.Content)
		}
	}

	logger.Warn().Err(err).Msg("Pairing dialogue generation failed, using static reply")
	return fmt.Sprintf("Great piece to build around. Here's what I'd pair with your %s.", comp.Anchor)
}

func (s *PairingService) subcategoryNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, product := range s.store.AllProducts() {
		if product.Subcategory != "" && !seen[product.Subcategory] {
			seen[product.Subcategory] = true
			names = append(names, product.Subcategory)
		}
	}
	return names
}
