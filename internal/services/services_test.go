package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broadwaybot/internal/catalog"
	"broadwaybot/pkg"
)

// scriptedGenerator returns responses in order, or a single error for
// every call.
type scriptedGenerator struct {
	responses []string
	err       error
	calls     int
}

func (f *scriptedGenerator) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return schema.AssistantMessage(f.responses[idx], nil), nil
}

func testStore(t *testing.T) *catalog.Store {
	t.Helper()

	data := `{
		"brands": {"B1": {"brand_name": "Urban Thread"}},
		"categories": {
			"Clothing": {
				"kurtas": [
					{"product_id": "PROD201", "title": "Silk Kurta", "brand_id": "B1", "price": 2000, "average_rating": 4.5, "tags": ["female", "kurta", "wedding", "formal", "ethnic-wear", "festive"]},
					{"product_id": "PROD202", "title": "Cotton Kurta", "brand_id": "B1", "price": 1200, "average_rating": 4.2, "tags": ["male", "kurta", "wedding", "formal", "ethnic-wear", "casual"]}
				],
				"tshirts": [
					{"product_id": "PROD203", "title": "Crew Tee", "brand_id": "B1", "price": 700, "average_rating": 4.3, "tags": ["unisex", "tshirt", "casual", "everyday", "white", "streetwear"]}
				],
				"dresses": [
					{"product_id": "PROD204", "title": "Beach Dress", "brand_id": "B1", "price": 1800, "average_rating": 4.4, "tags": ["female", "dress", "vacation", "beach", "resort-wear", "casual", "summer"]}
				]
			},
			"Footwear": {
				"sneakers": [
					{"product_id": "PROD205", "title": "Court Sneakers", "brand_id": "B1", "price": 2500, "average_rating": 4.6, "tags": ["unisex", "sneakers", "casual", "everyday", "streetwear", "white"]}
				]
			}
		}
	}`

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	store, err := catalog.Load(path)
	require.NoError(t, err)
	return store
}

func newState() *pkg.ConversationState {
	state := pkg.NewConversationState()
	state.Profile.Set("gender", "female")
	return state
}

func TestParseSearchableTags(t *testing.T) {
	content := `CATEGORY:
- Clothing

IMPORTANT:
wedding, formal, ethnic-wear

REGULAR:
festive, elegant`

	important, regular, category := parseSearchableTags(content)
	assert.Equal(t, []string{"wedding", "formal", "ethnic-wear"}, important)
	assert.Equal(t, []string{"festive", "elegant"}, regular)
	assert.Equal(t, "Clothing", category)
}

func TestFallbackTags(t *testing.T) {
	tags := fallbackTags([]string{"wedding", "Evening Wear"})
	assert.Contains(t, tags, "wedding")
	assert.Contains(t, tags, "ethnic-wear")
	assert.Contains(t, tags, "evening-wear")
}

func TestRecommenderDegradesGracefully(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("api down")}
	rec := NewRecommender(gen, testStore(t))

	results := rec.Recommend(context.Background(), "wedding outfit", "", []string{"wedding", "formal"}, Options{Gender: "female"})
	require.NotEmpty(t, results, "fallback tags should still find the wedding kurta")
	assert.LessOrEqual(t, len(results), 3, "unvalidated results are trimmed to the top three")
	assert.Equal(t, "PROD201", results[0].ProductID)
}

func TestRecommenderValidationFilters(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"IMPORTANT:\nwedding, formal\n\nREGULAR:\nfestive",
		"PROD201",
	}}
	rec := NewRecommender(gen, testStore(t))

	results := rec.Recommend(context.Background(), "wedding outfit", "", []string{"wedding"}, Options{Gender: "female"})
	require.Len(t, results, 1)
	assert.Equal(t, "PROD201", results[0].ProductID)
}

func TestRecommenderNoMatches(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"IMPORTANT:\nwedding, formal\n\nREGULAR:\nfestive",
		"NO_MATCHES",
	}}
	rec := NewRecommender(gen, testStore(t))

	results := rec.Recommend(context.Background(), "wedding outfit", "", []string{"wedding"}, Options{Gender: "female"})
	assert.Empty(t, results)
}

func TestOccasionRefinesAcrossTurns(t *testing.T) {
	store := testStore(t)
	state := newState()

	gen := &scriptedGenerator{responses: []string{
		`{"core_parameters": {"occasion": ["wedding"]}, "inferred_parameters": {"formality": ["formal"]}}`,
		"IMPORTANT:\nwedding, formal\n\nREGULAR:\nfestive",
		"PROD201",
		"Here's a first look for the wedding. What's your budget?",
	}}
	svc := NewOccasionService(gen, NewRecommender(gen, store), 2)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "I need a wedding outfit",
		State:     state,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Recommendations)
	assert.False(t, resp.FollowUpNeeded)

	require.NotNil(t, state.OccasionParams)
	assert.Equal(t, []string{"wedding"}, state.OccasionParams.Core["occasion"])

	// A later turn adds budget without losing the occasion.
	gen2 := &scriptedGenerator{responses: []string{
		`{"core_parameters": {"budget": ["mid-range"]}, "inferred_parameters": {}}`,
		"IMPORTANT:\nwedding, formal\n\nREGULAR:\nfestive",
		"PROD201",
		"Noted on budget.",
	}}
	svc2 := NewOccasionService(gen2, NewRecommender(gen2, store), 2)
	_, err = svc2.Handle(context.Background(), Request{
		UserInput: "keep it mid-range",
		State:     state,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wedding"}, state.OccasionParams.Core["occasion"])
	assert.Equal(t, []string{"mid-range"}, state.OccasionParams.Core["budget"])
}

func TestOccasionExtractionFallback(t *testing.T) {
	state := newState()
	gen := &scriptedGenerator{err: fmt.Errorf("api down")}
	svc := NewOccasionService(gen, NewRecommender(gen, testStore(t)), 2)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "something for a wedding please",
		State:     state,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Dialogue, "degraded turns still carry dialogue")
	assert.Equal(t, []string{"wedding"}, state.OccasionParams.Core["occasion"])
}

func TestPrioritizedMissingExcludesGender(t *testing.T) {
	missing := prioritizedMissing([]string{"gender", "budget", "occasion", "location"}, 2)
	assert.Equal(t, []string{"occasion", "budget"}, missing)
}

func TestPairingFallbackComplement(t *testing.T) {
	comp := fallbackComplement("what goes with my black jeans?")
	assert.Equal(t, "jeans", comp.Anchor)
	assert.Contains(t, comp.Subcategories, "tshirts")
}

func TestPairingSearchesComplementarySubcategories(t *testing.T) {
	store := testStore(t)
	state := newState()
	state.Profile.Set("gender", "unisex")

	gen := &scriptedGenerator{responses: []string{
		`{"anchor": "black jeans", "tags": ["casual", "streetwear"], "subcategories": ["tshirts", "sneakers"]}`,
		"IMPORTANT:\ncasual, streetwear\n\nREGULAR:\nwhite",
		"PROD203, PROD205",
		"White layers keep black jeans easy.",
	}}
	svc := NewPairingService(gen, store, NewRecommender(gen, store))

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "what goes with my black jeans?",
		State:     state,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Recommendations)
	for _, rec := range resp.Recommendations {
		assert.NotEqual(t, "PROD204", rec.ProductID, "pairing must stay inside complementary subcategories")
	}
}

func TestVacationAsksWithoutDestination(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"NONE"}}
	svc := NewVacationService(gen, NewRecommender(gen, testStore(t)), 5)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "I'm going on a trip soon",
		State:     newState(),
	})
	require.NoError(t, err)
	assert.True(t, resp.FollowUpNeeded)
	require.Len(t, resp.FollowUps, 1)
	assert.Equal(t, "destination", resp.FollowUps[0].Key)
	assert.Empty(t, resp.Recommendations)
}

func TestVacationCapsRecommendations(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"goa",
		`{"popular_locations": [{"name": "Baga Beach", "weather": "hot and humid", "style_palette": ["beach", "resort-wear", "casual", "summer"]}]}`,
		"IMPORTANT:\nbeach, resort-wear, casual\n\nREGULAR:\nsummer",
		"PROD204",
		"Goa is calling. Pack light and breezy.",
	}}
	svc := NewVacationService(gen, NewRecommender(gen, testStore(t)), 5)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "trip to goa next month",
		State:     newState(),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Recommendations), 5)
	assert.NotEmpty(t, resp.Dialogue)
}

func TestVacationResumesWithDestinationAnswer(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"popular_locations": [{"name": "Baga Beach", "weather": "hot and humid", "style_palette": ["beach", "casual", "summer"]}]}`,
		"IMPORTANT:\nbeach, casual\n\nREGULAR:\nsummer",
		"PROD204",
		"Goa is calling. Pack light, breathable pieces.",
	}}
	svc := NewVacationService(gen, NewRecommender(gen, testStore(t)), 5)

	state := newState()
	state.Profile.Merge(map[string]string{"destination": "I'm headed to Goa"})

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "",
		Summary:   "shopper is planning a trip",
		State:     state,
	})
	require.NoError(t, err)
	assert.False(t, resp.FollowUpNeeded, "An answered destination must not be asked again")
	require.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, "PROD204", resp.Recommendations[0].ProductID)
	assert.NotEmpty(t, resp.Dialogue)
}

func TestVacationCurrentMessageOverridesStoredDestination(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"thailand",
		`{"popular_locations": [{"name": "Phuket Beaches", "weather": "tropical", "style_palette": ["beach", "casual", "summer"]}]}`,
		"IMPORTANT:\nbeach, casual\n\nREGULAR:\nsummer",
		"PROD204",
		"Thailand it is. Light layers all the way.",
	}}
	svc := NewVacationService(gen, NewRecommender(gen, testStore(t)), 5)

	state := newState()
	state.Profile.Merge(map[string]string{"destination": "goa"})

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "actually make it a Thailand trip",
		State:     state,
	})
	require.NoError(t, err)
	assert.False(t, resp.FollowUpNeeded)
	assert.Contains(t, resp.Dialogue, "Thailand")
}

func TestStoredDestination(t *testing.T) {
	p := &pkg.UserProfile{}
	assert.Equal(t, "", storedDestination(p))

	p.Set("destination", "Going to Manali next week")
	assert.Equal(t, "himachal", storedDestination(p))

	p.Set("destination", "Reykjavik")
	assert.Equal(t, "reykjavik", storedDestination(p))
}

func TestKeywordDestination(t *testing.T) {
	assert.Equal(t, "goa", keywordDestination("thinking about Goa in december"))
	assert.Equal(t, "himachal", keywordDestination("maybe manali?"))
	assert.Equal(t, "", keywordDestination("somewhere nice"))
}

func TestStylingAsksWhenProfileThin(t *testing.T) {
	state := newState()
	state.Profile.Set("body_type", "Petite")

	gen := &scriptedGenerator{responses: []string{"should not be needed"}}
	svc := NewStylingService(gen, NewRecommender(gen, testStore(t)), 2, 3)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "style me",
		State:     state,
	})
	require.NoError(t, err)
	assert.True(t, resp.FollowUpNeeded)
	assert.NotEmpty(t, resp.FollowUps)
	assert.Empty(t, resp.Recommendations)
	for _, q := range resp.FollowUps {
		assert.NotEqual(t, "gender", q.Key, "gender has its own gate")
		assert.NotEqual(t, "body_type", q.Key, "filled slots are not re-asked")
	}
}

func TestStylingAnalyzesProduct(t *testing.T) {
	state := newState()
	state.Profile.Set("body_type", "Petite")
	state.Profile.Set("style_preferences", "Casual & Comfortable")
	state.LastRecommendations = []pkg.Recommendation{{ProductID: "PROD204", Title: "Beach Dress"}}

	gen := &scriptedGenerator{responses: []string{
		`{"product": "Beach Dress", "body_type_match": "The flowy cut flatters a petite frame", "color_harmony": "Warm tones suit you", "style_alignment": "Fits your casual lean", "overall_rating": "8/10", "styling_tips": ["casual summer sandals", "beach layers"]}`,
		"IMPORTANT:\ncasual, beach\n\nREGULAR:\nsummer",
		"PROD204",
	}}
	svc := NewStylingService(gen, NewRecommender(gen, testStore(t)), 2, 3)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "would it look good on me?",
		State:     state,
	})
	require.NoError(t, err)
	assert.False(t, resp.FollowUpNeeded)
	assert.Contains(t, resp.Dialogue, "Beach Dress")
	assert.Contains(t, resp.Dialogue, "8/10")
	assert.Contains(t, resp.Dialogue, "1. ", "tips are numbered")
}

func TestStylingDegradesToProfileAdvice(t *testing.T) {
	state := newState()
	state.Profile.Set("body_type", "Petite")
	state.Profile.Set("style_preferences", "Casual & Comfortable")

	gen := &scriptedGenerator{err: fmt.Errorf("api down")}
	svc := NewStylingService(gen, NewRecommender(gen, testStore(t)), 2, 3)

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "what should I wear day to day?",
		State:     state,
	})
	require.NoError(t, err)
	assert.False(t, resp.FollowUpNeeded)
	assert.NotEmpty(t, resp.Dialogue)
}

func TestProfileTagsStripsLabels(t *testing.T) {
	var p pkg.UserProfile
	p.Set("body_type", "Pear (wider hips, narrower shoulders)")
	p.Set("style_preferences", "Classic & Timeless")

	tags := profileTags(&p)
	assert.Contains(t, tags, "pear")
	assert.Contains(t, tags, "classic")
	assert.Contains(t, tags, "timeless")
	assert.NotContains(t, tags, "wider")
}

func TestGeneralInformationalAnswersDirectly(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"informational": true, "recommendation": false, "reply": "Linen breathes well; wash it cold and hang dry.", "search_tags": [], "clarifying_questions": []}`,
	}}
	svc := NewGeneralService(gen, NewRecommender(gen, testStore(t)), "fallback text")

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "how do I care for linen?",
		State:     newState(),
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Recommendations)
	assert.Contains(t, resp.Dialogue, "Linen")
}

func TestGeneralClarifiesWithoutRecommendationSignal(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"informational": false, "recommendation": false, "reply": "Happy to help!", "search_tags": [], "clarifying_questions": ["Is this for an event, a trip, or everyday wear?"]}`,
	}}
	svc := NewGeneralService(gen, NewRecommender(gen, testStore(t)), "fallback text")

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "I want something new",
		State:     newState(),
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Recommendations)
	assert.Contains(t, resp.Dialogue, "event, a trip")
}

func TestGeneralRecommendsOnExplicitSignal(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"informational": false, "recommendation": true, "reply": "Beach dresses coming up.", "search_tags": ["beach", "casual"], "clarifying_questions": []}`,
		"IMPORTANT:\nbeach, casual\n\nREGULAR:\nsummer",
		"PROD204",
	}}
	svc := NewGeneralService(gen, NewRecommender(gen, testStore(t)), "fallback text")

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "show me beach dresses",
		State:     newState(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, "PROD204", resp.Recommendations[0].ProductID)
}

func TestGeneralApologizesWhenSearchComesUpEmpty(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"informational": false, "recommendation": true, "reply": "Let me look.", "search_tags": ["ballgown"], "clarifying_questions": ["What color?"]}`,
		"IMPORTANT:\nballgown\n\nREGULAR:\n",
	}}
	svc := NewGeneralService(gen, NewRecommender(gen, testStore(t)), "fallback text")

	resp, err := svc.Handle(context.Background(), Request{
		UserInput: "show me ballgowns",
		State:     newState(),
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Recommendations)
	assert.Contains(t, resp.Dialogue, "sorry")
	assert.NotContains(t, resp.Dialogue, "What color?", "dangling questions are dropped with the apology")
}

func TestGeneralFallbackText(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("api down")}
	svc := NewGeneralService(gen, NewRecommender(gen, testStore(t)), "static fallback")

	resp, err := svc.Handle(context.Background(), Request{UserInput: "hello", State: newState()})
	require.NoError(t, err)
	assert.Equal(t, "static fallback", resp.Dialogue)
}

func TestDedupe(t *testing.T) {
	out := dedupe([]string{"a", "b", "a", "c", "b", "d"}, 3)
	if strings.Join(out, ",") != "a,b,c" {
		t.Errorf("Expected a,b,c got %v", out)
	}
}
