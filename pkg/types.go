package pkg

import "strings"

// Core types for the Broadway fashion assistant.

// Intent is the classified purpose of the user's current message.
type Intent string

const (
	IntentOccasion Intent = "occasion"
	IntentPairing  Intent = "pairing"
	IntentVacation Intent = "vacation"
	IntentStyling  Intent = "styling"
	IntentGeneral  Intent = "general"
)

// AllIntents lists the intents in specificity order, most specific first.
// The classifier breaks ties by picking the earlier entry.
var AllIntents = []Intent{IntentStyling, IntentPairing, IntentOccasion, IntentVacation, IntentGeneral}

// ParseIntent normalizes a raw label into a known intent. Anything
// unrecognized maps to General, which is the safe catch-all.
func ParseIntent(raw string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentOccasion:
		return IntentOccasion, true
	case IntentPairing:
		return IntentPairing, true
	case IntentVacation:
		return IntentVacation, true
	case IntentStyling:
		return IntentStyling, true
	case IntentGeneral:
		return IntentGeneral, true
	}
	return IntentGeneral, false
}

// Gender values that count as resolved. "None", empty, and anything
// else are treated as missing.
const (
	GenderMale      = "male"
	GenderFemale    = "female"
	GenderUnisex    = "unisex"
	GenderNotNeeded = "not_needed"
)

// NormalizeGender lowercases and validates a gender value. Form answers
// that opt out of a gendered catalog resolve too, so no prompt option
// can leave the gender gate open. The second return is false when the
// value does not resolve.
func NormalizeGender(raw string) (string, bool) {
	g := strings.ToLower(strings.TrimSpace(raw))
	switch g {
	case GenderMale, GenderFemale, GenderUnisex, GenderNotNeeded:
		return g, true
	case "non-binary", "nonbinary":
		return GenderUnisex, true
	case "prefer not to say":
		return GenderNotNeeded, true
	}
	return "", false
}

// UserProfile holds the slot data collected across turns via follow-up
// questions. Slots fill monotonically with last-write-wins merge; Extra
// carries keys that have no dedicated field.
type UserProfile struct {
	Gender           string            `json:"gender,omitempty"`
	BodyType         string            `json:"body_type,omitempty"`
	SkinTone         string            `json:"skin_tone,omitempty"`
	Height           string            `json:"height,omitempty"`
	StylePreferences string            `json:"style_preferences,omitempty"`
	SizePreferences  string            `json:"size_preferences,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// StyleSlotKeys are the five style-profile slots the styling strategy
// draws on, gender excluded.
var StyleSlotKeys = []string{"body_type", "skin_tone", "height", "style_preferences", "size_preferences"}

// Get returns the slot value for a key, consulting Extra for unknown keys.
func (p *UserProfile) Get(key string) string {
	switch key {
	case "gender":
		return p.Gender
	case "body_type":
		return p.BodyType
	case "skin_tone":
		return p.SkinTone
	case "height":
		return p.Height
	case "style_preferences":
		return p.StylePreferences
	case "size_preferences":
		return p.SizePreferences
	}
	return p.Extra[key]
}

// Set writes a slot value by key. Empty values are ignored so a sparse
// follow-up submission never erases a previously confirmed answer.
func (p *UserProfile) Set(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch key {
	case "gender":
		if g, ok := NormalizeGender(value); ok {
			p.Gender = g
		} else {
			p.Gender = strings.ToLower(value)
		}
	case "body_type":
		p.BodyType = value
	case "skin_tone":
		p.SkinTone = value
	case "height":
		p.Height = value
	case "style_preferences":
		p.StylePreferences = value
	case "size_preferences":
		p.SizePreferences = value
	default:
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[key] = value
	}
}

// Merge applies a follow-up answer map with last-write-wins semantics.
func (p *UserProfile) Merge(answers map[string]string) {
	for k, v := range answers {
		p.Set(k, v)
	}
}

// GenderResolved reports whether the profile's gender is one of the
// accepted values.
func (p *UserProfile) GenderResolved() bool {
	_, ok := NormalizeGender(p.Gender)
	return ok
}

// FilledStyleSlots counts how many of the five style slots are set.
func (p *UserProfile) FilledStyleSlots() int {
	n := 0
	for _, key := range StyleSlotKeys {
		if p.Get(key) != "" {
			n++
		}
	}
	return n
}

// Recommendation is an immutable product result produced by the catalog
// search. Downstream code only filters, limits, and repackages these.
type Recommendation struct {
	ProductID   string   `json:"product_id"`
	Title       string   `json:"title"`
	BrandName   string   `json:"brand_name"`
	Price       float64  `json:"price"`
	MatchedTags []string `json:"matched_tags,omitempty"`
}

// FollowUpQuestion is a declarative prompt for one missing slot,
// rendered by the front end as a form field.
type FollowUpQuestion struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Type    string   `json:"type"` // select or text
	Options []string `json:"options,omitempty"`
}

// Outbound message types, in the order they may appear in a turn's
// message list.
const (
	MessageIntent          = "intent"
	MessageError           = "error"
	MessageFollowUp        = "followup"
	MessageGenderPrompt    = "gender_prompt"
	MessageBot             = "bot_message"
	MessageRecommendations = "recommendations"
)

// Message is one item of the ordered outbound list emitted per turn.
type Message struct {
	Type            string             `json:"type"`
	Text            string             `json:"message,omitempty"`
	MessageType     string             `json:"message_type,omitempty"`
	Title           string             `json:"title,omitempty"`
	Questions       []FollowUpQuestion `json:"questions,omitempty"`
	Recommendations []Recommendation   `json:"recommendations,omitempty"`
}

// MaxRecommendations caps how many products one turn may surface.
const MaxRecommendations = 7

// TurnInput is the logical inbound message for one turn. Exactly one of
// Text or FollowupAnswers drives processing.
type TurnInput struct {
	Text            string            `json:"text,omitempty"`
	FollowupAnswers map[string]string `json:"followup_answers,omitempty"`
}

// ConversationState is the per-session state the orchestrator reads and
// writes once per completed turn. It lives only as long as the session.
type ConversationState struct {
	ContextSummary      string              `json:"context_summary"`
	CurrentIntent       Intent              `json:"current_intent"`
	Profile             UserProfile         `json:"profile"`
	LastRecommendations []Recommendation    `json:"last_recommendations,omitempty"`
	OccasionParams      *OccasionParameters `json:"occasion_params,omitempty"`
}

// NewConversationState returns the state for a freshly connected session.
func NewConversationState() *ConversationState {
	return &ConversationState{CurrentIntent: IntentGeneral}
}

// OccasionParameters is the structured parameter set the occasion
// strategy extracts and refines across turns. Core parameters are
// weighted double in the confidence score.
type OccasionParameters struct {
	Core     map[string][]string `json:"core_parameters"`
	Inferred map[string][]string `json:"inferred_parameters"`
}

// CoreParameterKeys and InferredParameterKeys define the occasion schema.
var (
	CoreParameterKeys     = []string{"occasion", "time", "location", "body_type", "budget", "gender"}
	InferredParameterKeys = []string{"weather", "formality", "mood", "color", "fabric", "trend", "age"}
)

// EmptyOccasionParameters returns the all-empty parameter structure used
// as the extraction fallback.
func EmptyOccasionParameters() *OccasionParameters {
	return &OccasionParameters{
		Core:     make(map[string][]string, len(CoreParameterKeys)),
		Inferred: make(map[string][]string, len(InferredParameterKeys)),
	}
}

// MergeFrom overlays newly extracted values. New non-empty values
// overwrite, empty ones never erase prior values.
func (p *OccasionParameters) MergeFrom(next *OccasionParameters) {
	if next == nil {
		return
	}
	if p.Core == nil {
		p.Core = make(map[string][]string)
	}
	if p.Inferred == nil {
		p.Inferred = make(map[string][]string)
	}
	for k, v := range next.Core {
		if len(v) > 0 {
			p.Core[k] = v
		}
	}
	for k, v := range next.Inferred {
		if len(v) > 0 {
			p.Inferred[k] = v
		}
	}
}

// FlatTags flattens the parameter values into core and inferred tag
// lists for catalog search.
func (p *OccasionParameters) FlatTags() (core, inferred []string) {
	for _, key := range CoreParameterKeys {
		core = append(core, p.Core[key]...)
	}
	for _, key := range InferredParameterKeys {
		inferred = append(inferred, p.Inferred[key]...)
	}
	return core, inferred
}

// ConfidenceScore is the weighted fraction of filled parameters, core
// parameters counted twice. Diagnostic only, it gates nothing.
func (p *OccasionParameters) ConfidenceScore() float64 {
	filledCore, filledInferred := 0, 0
	for _, key := range CoreParameterKeys {
		if len(p.Core[key]) > 0 {
			filledCore++
		}
	}
	for _, key := range InferredParameterKeys {
		if len(p.Inferred[key]) > 0 {
			filledInferred++
		}
	}
	total := float64(len(CoreParameterKeys)*2 + len(InferredParameterKeys))
	score := float64(filledCore*2+filledInferred) / total
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// MissingCore lists core parameters still unfilled, in schema order.
func (p *OccasionParameters) MissingCore() []string {
	var missing []string
	for _, key := range CoreParameterKeys {
		if len(p.Core[key]) == 0 {
			missing = append(missing, key)
		}
	}
	return missing
}
