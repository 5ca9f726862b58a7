package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"broadwaybot/pkg"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	data := `{
		"brands": {"B1": {"brand_name": "Northline"}, "B2": {"brand_name": "Coastline"}},
		"categories": {
			"Clothing": {
				"shirts": [
					{"product_id": "PROD101", "title": "Oxford Shirt", "brand_id": "B1", "price": 1500, "average_rating": 4.2, "tags": ["male", "shirt", "formal", "office-wear", "white"]},
					{"product_id": "PROD102", "title": "Resort Shirt", "brand_id": "B2", "price": 1200, "average_rating": 4.6, "tags": ["male", "shirt", "beach", "casual", "printed"]}
				],
				"dresses": [
					{"product_id": "PROD103", "title": "Maxi Dress", "brand_id": "B2", "price": 2200, "average_rating": 4.4, "tags": ["female", "dress", "beach", "casual", "floral"]},
					{"product_id": "PROD104", "title": "Office Dress", "brand_id": "B2", "price": 2600, "average_rating": 4.1, "tags": ["female", "dress", "formal", "office-wear", "navy"]}
				]
			},
			"Footwear": {
				"sneakers": [
					{"product_id": "PROD105", "title": "White Sneakers", "brand_id": "B1", "price": 3000, "average_rating": 4.8, "tags": ["unisex", "sneakers", "casual", "white"]}
				]
			}
		}
	}`

	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write test catalog: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	return store
}

func TestLoadDenormalizes(t *testing.T) {
	store := testStore(t)

	if len(store.AllProducts()) != 5 {
		t.Errorf("Expected 5 products, got %d", len(store.AllProducts()))
	}

	for _, p := range store.AllProducts() {
		if p.ProductID == "PROD101" {
			if p.BrandName != "Northline" {
				t.Errorf("Expected brand resolved to Northline, got %q", p.BrandName)
			}
			if p.Category != "Clothing" || p.Subcategory != "shirts" {
				t.Errorf("Expected category/subcategory set, got %q/%q", p.Category, p.Subcategory)
			}
		}
	}
}

func TestSearchGenderFilter(t *testing.T) {
	store := testStore(t)

	results := store.Search(Query{
		ImportantTags: []string{"casual"},
		Gender:        "female",
	})

	for _, rec := range results {
		if rec.ProductID == "PROD102" {
			t.Error("Male product must not pass the female gender filter")
		}
	}
	if len(results) == 0 {
		t.Fatal("Expected at least one female casual match")
	}
	if results[0].ProductID != "PROD103" {
		t.Errorf("Expected PROD103 first, got %s", results[0].ProductID)
	}
}

func TestSearchRequiresImportantMatch(t *testing.T) {
	store := testStore(t)

	results := store.Search(Query{RegularTags: []string{"white"}})
	if len(results) != 0 {
		t.Errorf("Expected no results without an important tag match, got %d", len(results))
	}
}

func TestSearchScoringOrder(t *testing.T) {
	store := testStore(t)

	// PROD101 matches two important tags, PROD104 matches the same two.
	// Equal scores fall back to rating, so PROD101 (4.2) beats PROD104 (4.1).
	results := store.Search(Query{
		ImportantTags: []string{"formal", "office-wear"},
	})
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ProductID != "PROD101" {
		t.Errorf("Expected rating tie-break to favor PROD101, got %s", results[0].ProductID)
	}
}

func TestSearchCapsResults(t *testing.T) {
	store := testStore(t)

	results := store.Search(Query{
		ImportantTags: []string{"casual", "formal", "shirt", "dress", "sneakers"},
		Limit:         100,
	})
	if len(results) > pkg.MaxRecommendations {
		t.Errorf("Results must never exceed %d, got %d", pkg.MaxRecommendations, len(results))
	}
}

func TestSearchSubcategoryScope(t *testing.T) {
	store := testStore(t)

	results := store.Search(Query{
		ImportantTags: []string{"casual"},
		Subcategories: []string{"sneakers"},
	})
	if len(results) != 1 || results[0].ProductID != "PROD105" {
		t.Errorf("Expected only the sneaker, got %v", results)
	}
}

func TestSearchMinMatches(t *testing.T) {
	store := testStore(t)

	// PROD105 matches casual+white, the resort shirt only casual.
	results := store.Search(Query{
		ImportantTags: []string{"casual", "white"},
		MinMatches:    2,
	})
	if len(results) != 1 || results[0].ProductID != "PROD105" {
		t.Errorf("Expected only the double-match sneaker, got %v", results)
	}
}

func TestSearchNotNeededSkipsFilter(t *testing.T) {
	store := testStore(t)

	results := store.Search(Query{
		ImportantTags: []string{"casual"},
		Gender:        pkg.GenderNotNeeded,
	})
	if len(results) < 3 {
		t.Errorf("not_needed must disable the gender filter, got %d results", len(results))
	}
}
