package catalog

import (
	"sort"

	"broadwaybot/pkg"
)

// Query is one catalog search. Important tags mark direct requirements
// and weigh five times a regular tag; Gender filters hard. MinMatches,
// when set, demands that many total tag matches per product.
type Query struct {
	ImportantTags []string
	RegularTags   []string
	Category      string
	Subcategories []string
	Gender        string
	Limit         int
	MinMatches    int
}

type scoredProduct struct {
	product       Product
	score         int
	averageRating float64
	matchedTags   []string
}

// Search scores candidates by tag overlap and returns the best matches
// as recommendations. A product must match at least one important tag
// and one regular tag to qualify; products not carrying the requested
// gender tag are excluded outright.
func (s *Store) Search(q Query) []pkg.Recommendation {
	candidates := s.candidates(q)

	var matches []scoredProduct
	for _, product := range candidates {
		if q.Gender != "" && q.Gender != pkg.GenderNotNeeded && !hasTag(product.Tags, q.Gender) {
			continue
		}

		importantMatched := matchedTags(q.ImportantTags, product.Tags)
		regularMatched := matchedTags(q.RegularTags, product.Tags)
		if len(importantMatched) == 0 {
			continue
		}
		if len(q.RegularTags) > 0 && len(regularMatched) == 0 {
			continue
		}
		if len(importantMatched)+len(regularMatched) < q.MinMatches {
			continue
		}

		matches = append(matches, scoredProduct{
			product:       product,
			score:         len(importantMatched)*5 + len(regularMatched),
			averageRating: product.AverageRating,
			matchedTags:   append(importantMatched, regularMatched...),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].averageRating > matches[j].averageRating
	})

	limit := q.Limit
	if limit <= 0 || limit > pkg.MaxRecommendations {
		limit = pkg.MaxRecommendations
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	recommendations := make([]pkg.Recommendation, 0, len(matches))
	for _, m := range matches {
		recommendations = append(recommendations, pkg.Recommendation{
			ProductID:   m.product.ProductID,
			Title:       m.product.Title,
			BrandName:   m.product.BrandName,
			Price:       m.product.Price,
			MatchedTags: m.matchedTags,
		})
	}
	return recommendations
}

func (s *Store) candidates(q Query) []Product {
	if len(q.Subcategories) > 0 {
		return s.ProductsBySubcategories(q.Subcategories)
	}
	if q.Category != "" {
		if products := s.ProductsByCategory(q.Category); len(products) > 0 {
			return products
		}
	}
	return s.flat
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func matchedTags(wanted, have []string) []string {
	if len(wanted) == 0 {
		return nil
	}
	haveSet := make(map[string]bool, len(have))
	for _, t := range have {
		haveSet[t] = true
	}
	var matched []string
	for _, t := range wanted {
		if haveSet[t] {
			matched = append(matched, t)
		}
	}
	return matched
}
