package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"broadwaybot/internal/catalog"
	"broadwaybot/internal/llm"
	"broadwaybot/internal/logger"
	"broadwaybot/pkg"
)

// Recommender turns loose descriptive tags into catalog searches. The
// model rewrites tags into the catalog's vocabulary and vets the final
// shortlist; both steps degrade to deterministic behavior on failure.
type Recommender struct {
	gen       llm.Generator
	store     *catalog.Store
	tagTmpl   prompt.ChatTemplate
	checkTmpl prompt.ChatTemplate
}

const searchableTagsSystem = `Convert the input tags into e-commerce product tags and categorize them.

- IMPORTANT: direct requirements (product types, occasions, formality)
- REGULAR: supporting tags (colors, aesthetics, comfort)

Tags must be lowercase, hyphenated. Respond in exactly this format:

CATEGORY:
- CategoryName

IMPORTANT:
tag1, tag2, tag3

REGULAR:
tag1, tag2, tag3`

const searchableTagsUser = `INPUT TAGS: {tags}

KNOWN CATEGORIES: {categories}`

const checkRecsSystem = `Validate these product recommendations for the user query.
Return ONLY the product IDs that genuinely fit, comma separated, for example: PROD001, PROD002
If none fit, return: NO_MATCHES`

const checkRecsUser = `USER QUERY: {query}
CONTEXT: {context}
PRODUCTS:
{products}`

var productIDPattern = regexp.MustCompile(`PROD\d+`)

// NewRecommender wires the tag-conversion and validation templates.
func NewRecommender(gen llm.Generator, store *catalog.Store) *Recommender {
	return &Recommender{
		gen:   gen,
		store: store,
		tagTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(searchableTagsSystem),
			schema.UserMessage(searchableTagsUser),
		),
		checkTmpl: prompt.FromMessages(schema.FString,
			schema.SystemMessage(checkRecsSystem),
			schema.UserMessage(checkRecsUser),
		),
	}
}

// Options narrows one recommendation run.
type Options struct {
	Gender        string
	Subcategories []string
	Limit         int
	MinMatches    int
}

// Recommend converts the tags, searches the catalog, and validates the
// shortlist. The returned list never exceeds the limit or the global
// cap, whichever is smaller.
func (r *Recommender) Recommend(ctx context.Context, userQuery, summary string, tags []string, opts Options) []pkg.Recommendation {
	if len(tags) == 0 {
		return nil
	}

	important, regular, category := r.convertToSearchableTags(ctx, tags)

	results := r.store.Search(catalog.Query{
		ImportantTags: important,
		RegularTags:   regular,
		Category:      category,
		Subcategories: opts.Subcategories,
		Gender:        opts.Gender,
		Limit:         opts.Limit,
		MinMatches:    opts.MinMatches,
	})
	if len(results) == 0 {
		return nil
	}

	validated := r.checkRecommendations(ctx, userQuery, summary, results)
	logger.Debug().
		Int("candidates", len(results)).
		Int("validated", len(validated)).
		Msg("Recommendation run completed")
	return validated
}

// convertToSearchableTags asks the model to rewrite loose tags into
// catalog vocabulary. Falls back to a static normalization table.
func (r *Recommender) convertToSearchableTags(ctx context.Context, tags []string) (important, regular []string, category string) {
	messages, err := r.tagTmpl.Format(ctx, map[string]any{
		"tags":       strings.Join(tags, ", "),
		"categories": strings.Join(r.store.Categories(), ", "),
	})
	if err == nil {
		var out *schema.Message
		out, err = r.gen.Generate(ctx, messages)
		if err == nil {
			important, regular, category = parseSearchableTags(out.Content)
			if len(important) > 0 {
				return important, regular, category
			}
			err = fmt.Errorf("no important tags in model output")
		}
	}

	logger.Warn().Err(err).Msg("Tag conversion failed, using fallback tags")
	return fallbackTags(tags), nil, "Clothing"
}

// parseSearchableTags reads the sectioned CATEGORY/IMPORTANT/REGULAR
// format. Unknown lines are skipped rather than failing the parse.
func parseSearchableTags(content string) (important, regular []string, category string) {
	category = "Clothing"
	section := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "CATEGORY:"):
			section = "category"
		case strings.HasPrefix(line, "IMPORTANT:"):
			section = "important"
		case strings.HasPrefix(line, "REGULAR:"):
			section = "regular"
		case section == "category" && strings.HasPrefix(line, "- "):
			category = strings.TrimSpace(line[2:])
		case section == "important" || section == "regular":
			for _, tag := range strings.Split(line, ",") {
				tag = strings.ToLower(strings.TrimSpace(tag))
				if tag == "" {
					continue
				}
				if section == "important" {
					important = append(important, tag)
				} else {
					regular = append(regular, tag)
				}
			}
		}
	}
	return dedupe(important, 8), dedupe(regular, 12), category
}

// fallbackTags maps well-known occasion words to catalog tags and
// hyphenates everything else.
func fallbackTags(tags []string) []string {
	mapping := map[string][]string{
		"wedding": {"wedding", "formal", "ethnic-wear"},
		"work":    {"office-wear", "professional", "business-casual"},
		"office":  {"office-wear", "professional", "business-casual"},
		"party":   {"party-wear", "festive", "evening-wear"},
		"formal":  {"formal", "dressy", "elegant"},
		"casual":  {"casual", "everyday", "comfortable"},
		"beach":   {"beach", "resort-wear", "summer"},
	}

	var important []string
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if mapped, ok := mapping[key]; ok {
			important = append(important, mapped...)
		} else if key != "" {
			important = append(important, strings.ReplaceAll(key, " ", "-"))
		}
	}
	return dedupe(important, 8)
}

// checkRecommendations has the model vet the scored shortlist against
// the query. On failure the top three scored products pass through.
func (r *Recommender) checkRecommendations(ctx context.Context, userQuery, summary string, results []pkg.Recommendation) []pkg.Recommendation {
	var lines []string
	for i, rec := range results {
		if i >= 10 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, rec.ProductID, rec.Title))
	}

	messages, err := r.checkTmpl.Format(ctx, map[string]any{
		"query":    userQuery,
		"context":  summary,
		"products": strings.Join(lines, "\n"),
	})
	if err == nil {
		var out *schema.Message
		out, err = r.gen.Generate(ctx, messages)
		if err == nil {
			if strings.Contains(strings.ToUpper(out.Content), "NO_MATCHES") {
				return nil
			}
			ids := productIDPattern.FindAllString(strings.ToUpper(out.Content), -1)
			if len(ids) > 0 {
				valid := make(map[string]bool, len(ids))
				for _, id := range ids {
					valid[id] = true
				}
				var kept []pkg.Recommendation
				for _, rec := range results {
					if valid[rec.ProductID] {
						kept = append(kept, rec)
					}
				}
				return kept
			}
			err = fmt.Errorf("no product ids in validation output")
		}
	}

	logger.Warn().Err(err).Msg("Recommendation validation failed, keeping top scored products")
	if len(results) > 3 {
		results = results[:3]
	}
	return results
}

func dedupe(tags []string, limit int) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
