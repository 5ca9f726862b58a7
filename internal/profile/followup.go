package profile

import (
	"broadwaybot/pkg"
)

// The follow-up question catalog. Questions are declarative so the
// front end can render them as form fields; the keys line up with the
// profile slots they fill.
var Questions = map[string]pkg.FollowUpQuestion{
	"gender": {
		Key:     "gender",
		Label:   "What's your gender?",
		Type:    "select",
		Options: []string{"Male", "Female", "Non-binary", "Prefer not to say"},
	},
	"body_type": {
		Key:   "body_type",
		Label: "What's your body type?",
		Type:  "select",
		Options: []string{
			"Pear (wider hips, narrower shoulders)",
			"Apple (broader shoulders, narrower hips)",
			"Hourglass (balanced shoulders and hips, defined waist)",
			"Rectangle (straight up and down, minimal curves)",
			"Inverted Triangle (broad shoulders, narrow hips)",
			"Oval (fuller midsection)",
			"Athletic (muscular, well-defined)",
			"Plus Size",
			"Petite",
			"Tall",
			"Not sure",
		},
	},
	"skin_tone": {
		Key:   "skin_tone",
		Label: "What's your skin tone?",
		Type:  "select",
		Options: []string{
			"Fair (light with pink undertones)",
			"Light (light with neutral undertones)",
			"Medium-Light (light to medium with warm undertones)",
			"Medium (medium with neutral undertones)",
			"Medium-Dark (medium to dark with warm undertones)",
			"Dark (deep with rich undertones)",
			"Deep (very deep with cool or warm undertones)",
			"Warm undertones (yellow/golden base)",
			"Cool undertones (pink/blue base)",
			"Neutral undertones (mix of warm and cool)",
			"Not sure",
		},
	},
	"height": {
		Key:   "height",
		Label: "What's your height range?",
		Type:  "select",
		Options: []string{
			"Under 5'0\" (152 cm)",
			"5'0\" - 5'2\" (152-157 cm)",
			"5'3\" - 5'5\" (160-165 cm)",
			"5'6\" - 5'8\" (168-173 cm)",
			"5'9\" - 5'11\" (175-180 cm)",
			"6'0\" and above (183 cm+)",
			"Prefer not to say",
		},
	},
	"style_preferences": {
		Key:   "style_preferences",
		Label: "What's your preferred style?",
		Type:  "select",
		Options: []string{
			"Classic & Timeless",
			"Casual & Comfortable",
			"Business & Professional",
			"Trendy & Fashion-Forward",
			"Bohemian & Free-Spirited",
			"Minimalist & Clean",
			"Edgy & Bold",
			"Romantic & Feminine",
			"Sporty & Athletic",
			"Vintage & Retro",
			"Eclectic & Mix-and-Match",
			"Glamorous & Elegant",
		},
	},
	"size_preferences": {
		Key:   "size_preferences",
		Label: "What's your usual clothing size?",
		Type:  "select",
		Options: []string{
			"XS (Extra Small)",
			"S (Small)",
			"M (Medium)",
			"L (Large)",
			"XL (Extra Large)",
			"XXL (2X Large)",
			"XXXL (3X Large)",
			"Varies by brand",
			"Prefer not to say",
		},
	},
}

// GenderQuestion returns the one-question set used by the gender gate.
func GenderQuestion() []pkg.FollowUpQuestion {
	return []pkg.FollowUpQuestion{Questions["gender"]}
}

// MissingStyleQuestions selects questions for unfilled style slots, in
// catalog order, capped at limit. Gender is handled by its own gate and
// is never included here.
func MissingStyleQuestions(p *pkg.UserProfile, limit int) []pkg.FollowUpQuestion {
	var questions []pkg.FollowUpQuestion
	for _, key := range pkg.StyleSlotKeys {
		if p.Get(key) != "" {
			continue
		}
		if q, ok := Questions[key]; ok {
			questions = append(questions, q)
		}
		if limit > 0 && len(questions) >= limit {
			break
		}
	}
	return questions
}

// TextQuestion builds an ad-hoc free-text question, used by strategies
// that need an answer the catalog has no select list for.
func TextQuestion(key, label string) pkg.FollowUpQuestion {
	return pkg.FollowUpQuestion{Key: key, Label: label, Type: "text"}
}
