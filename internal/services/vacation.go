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

// VacationService packs the shopper for a trip. It resolves the
// destination, builds a destination-appropriate style palette, and
// keeps the product list short enough to be a packing capsule.
type VacationService struct {
	gen           llm.Generator
	rec           *Recommender
	maxRecs       int
	destTmpl      prompt.ChatTemplate
	locationsTmpl prompt.ChatTemplate
	dialogueTmpl  prompt.ChatTemplate
}

// destinationMap anchors known destinations to their highlights, used
// when the model can't be reached.
var destinationMap = map[string][]string{
	"goa":         {"Baga Beach", "Old Goa Churches", "Dudhsagar Falls"},
	"kerala":      {"Munnar Hill Station", "Alleppey Backwaters", "Fort Kochi"},
	"rajasthan":   {"Jaipur City Palace", "Udaipur Lake Palace", "Jaisalmer Desert"},
	"himachal":    {"Manali Adventure Sports", "Shimla Mall Road", "Kasol Valleys"},
	"kashmir":     {"Dal Lake Srinagar", "Gulmarg Skiing", "Pahalgam Meadows"},
	"thailand":    {"Bangkok Temples", "Phuket Beaches", "Chiang Mai Mountains"},
	"bali":        {"Ubud Rice Terraces", "Seminyak Beaches", "Mount Batur Volcano"},
	"singapore":   {"Gardens by the Bay", "Marina Bay Sands", "Sentosa Island"},
	"dubai":       {"Burj Khalifa", "Dubai Mall", "Desert Safari"},
	"maldives":    {"Water Villas", "Coral Reefs", "Beach Resorts"},
	"sri lanka":   {"Kandy Temple", "Ella Tea Country", "Galle Fort"},
	"uttarakhand": {"Rishikesh Rafting", "Nainital Lakes", "Mussoorie Hills"},
}

// alternateNames maps city names to the destination they belong to.
var alternateNames = map[string]string{
	"mumbai":    "maharashtra",
	"jaipur":    "rajasthan",
	"udaipur":   "rajasthan",
	"manali":    "himachal",
	"shimla":    "himachal",
	"munnar":    "kerala",
	"alleppey":  "kerala",
	"rishikesh": "uttarakhand",
	"phuket":    "thailand",
	"bangkok":   "thailand",
	"ubud":      "bali",
	"seminyak":  "bali",
}

const vacationDestSystem = `Extract the main travel destination from the message. Return the destination name in lowercase.
Examples:
- "Planning a trip to Goa" -> goa
- "Want to visit Kerala backwaters" -> kerala
- "Going to Thailand next month" -> thailand
If there is no destination, return: NONE
Respond with ONLY the destination word.`

const vacationDestUser = `<conversation_summary>
{summary}
</conversation_summary>

<current_message>
{message}
</current_message>`

const vacationLocationsSystem = `You are a fashion and travel stylist. For the destination, produce a travel style guide.
Consider the destination's climate, culture, and typical activities.
Respond with ONLY this JSON, no markdown fences:

{{"popular_locations": [{{"name": "Location (short description)", "weather": "concise seasonal weather", "style_palette": ["vibe", "fabric", "color-scheme", "key-accessory", "footwear-style"]}}]}}

Give exactly 3 locations. Style palette entries are short lowercase tags, 5-9 per location.
Keep outfit suggestions respectful of local dress codes at religious or cultural sites.`

const vacationLocationsUser = `DESTINATION: {destination}
CURRENT MESSAGE: {message}`

const vacationDialogueSystem = `You are a warm, stylish shopping assistant helping someone pack for a trip.
Write a short reply (2-3 sentences) that names the destination, nods to the weather, and frames the picks as a packing capsule. No lists, no markdown.`

const vacationDialogueUser = `DESTINATION: {destination}
LOCATIONS AND WEATHER: {locations}
CURRENT MESSAGE: {message}`

type vacationLocation struct {
	Name         string   `json:"name"`
	Weather      string   `json:"weather"`
	StylePalette []string `json:"style_palette"`
}

type vacationGuide struct {
	PopularLocations []vacationLocation `json:"popular_locations"`
}

// NewVacationService wires the destination, guide, and dialogue templates.
func NewVacationService(gen llm.Generator, rec *Recommender, maxRecs int) *VacationService {
	return &VacationService{
		gen:     gen,
		rec:     rec,
		maxRecs: maxRecs,
		destTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(vacationDestSystem),
			schema.UserMessage(vacationDestUser),
		),
		locationsTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(vacationLocationsSystem),
			schema.UserMessage(vacationLocationsUser),
		),
		dialogueTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(vacationDialogueSystem),
			schema.UserMessage(vacationDialogueUser),
		),
	}
}

// Handle resolves the destination and recommends a capped packing
// capsule. A destination answered through the follow-up form is read
// back from the profile, so a resumed turn with an empty message still
// resolves; a current message that names a destination wins over the
// stored answer. Without either it asks instead of guessing.
func (s *VacationService) Handle(ctx context.Context, req Request) (Response, error) {
	destination := storedDestination(&req.State.Profile)
	if strings.TrimSpace(req.UserInput) != "" {
		if extracted := s.extractDestination(ctx, req.Summary, req.UserInput); extracted.Value != "" {
			destination = extracted.Value
		}
	}
	if destination == "" {
		return Response{
			Dialogue:       "A trip! Love that. Where are you headed? I'll put a packing capsule together once I know the destination.",
			FollowUpNeeded: true,
			FollowUps:      []pkg.FollowUpQuestion{profile.TextQuestion("destination", "Where are you travelling to?")},
		}, nil
	}

	guide := s.getGuide(ctx, destination, req.UserInput)

	var palette []string
	var locationLines []string
	for _, loc := range guide.Value.PopularLocations {
		palette = append(palette, loc.StylePalette...)
		locationLines = append(locationLines, fmt.Sprintf("%s (%s)", loc.Name, loc.Weather))
	}
	palette = dedupe(palette, 12)

	recommendations := s.rec.Recommend(ctx, req.UserInput, req.Summary, palette, Options{
		Gender: req.State.Profile.Gender,
		Limit:  s.maxRecs,
	})

	dialogue := s.generateDialogue(ctx, destination, strings.Join(locationLines, "; "), req.UserInput)

	return Response{
		Dialogue:        dialogue,
		Recommendations: recommendations,
	}, nil
}

func (s *VacationService) extractDestination(ctx context.Context, summary, message string) llm.Result[string] {
	messages, err := s.destTmpl.Format(ctx, map[string]any{
		"summary": summary,
		"message": message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			word := strings.ToLower(strings.TrimSpace(out.Content))
			if word != "" && word != "none" && !strings.ContainsAny(word, "{}") {
				return llm.Ok(word)
			}
			return llm.Ok(keywordDestination(message))
		}
	}

	logger.Warn().Err(err).Msg("Destination extraction failed, using keyword scan")
	return llm.Fallback(keywordDestination(message), err.Error())
}

// storedDestination resolves a destination the shopper already gave
// through the follow-up form. The answer is free text, so it runs
// through the keyword tables first and falls back to the raw answer.
func storedDestination(p *pkg.UserProfile) string {
	answer := strings.ToLower(strings.TrimSpace(p.Get("destination")))
	if answer == "" {
		return ""
	}
	if destination := keywordDestination(answer); destination != "" {
		return destination
	}
	return answer
}

// keywordDestination scans the message against the known destination
// and city tables.
func keywordDestination(message string) string {
	text := strings.ToLower(message)
	for destination := range destinationMap {
		if strings.Contains(text, destination) {
			return destination
		}
	}
	for city, destination := range alternateNames {
		if strings.Contains(text, city) {
			return destination
		}
	}
	return ""
}

func (s *VacationService) getGuide(ctx context.Context, destination, message string) llm.Result[vacationGuide] {
	messages, err := s.locationsTmpl.Format(ctx, map[string]any{
		"destination": destination,
		"message":     message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil {
			guide, parseErr := parseVacationGuide(out.Content)
			if parseErr == nil {
				return llm.Ok(guide)
			}
			err = parseErr
		}
	}

	logger.Warn().Err(err).Msg("Travel guide generation failed, using static guide")
	return llm.Fallback(fallbackGuide(destination), err.Error())
}

func parseVacationGuide(content string) (vacationGuide, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return vacationGuide{}, fmt.Errorf("no JSON object in model output")
	}

	var guide vacationGuide
	if err := sonic.Unmarshal([]byte(content[start:end+1]), &guide); err != nil {
		return vacationGuide{}, fmt.Errorf("failed to decode travel guide: %w", err)
	}
	if len(guide.PopularLocations) == 0 {
		return vacationGuide{}, fmt.Errorf("travel guide has no locations")
	}
	return guide, nil
}

// fallbackGuide builds a guide from the static highlight table with a
// generic warm-weather palette.
func fallbackGuide(destination string) vacationGuide {
	highlights, ok := destinationMap[destination]
	if !ok {
		highlights = []string{titleCase(destination)}
	}

	palette := []string{"resort-wear", "vacation", "casual", "breathable", "summer", "comfortable"}
	var locations []vacationLocation
	for _, name := range highlights {
		locations = append(locations, vacationLocation{
			Name:         name,
			Weather:      "seasonal",
			StylePalette: palette,
		})
	}
	return vacationGuide{PopularLocations: locations}
}

func (s *VacationService) generateDialogue(ctx context.Context, destination, locations, message string) string {
	messages, err := s.dialogueTmpl.Format(ctx, map[string]any{
		"destination": destination,
		"locations":   locations,
		"message":     message,
	})
	if err == nil {
		var out *schema.Message
		out, err = s.gen.Generate(ctx, messages)
		if err == nil && strings.TrimSpace(out.Content) != "" {
			return strings.TrimSpace(out.Content)
		}
	}

	logger.Warn().Err(err).Msg("Vacation dialogue generation failed, using static reply")
	return fmt.Sprintf("A trip to %s sounds wonderful. Here's a packing capsule to get you started.", titleCase(destination))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
