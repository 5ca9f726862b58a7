package catalog

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"broadwaybot/internal/logger"
)

// Product is one sellable item. Tags carry everything searchable about
// it, including a gender tag (male/female/unisex).
type Product struct {
	ProductID     string   `json:"product_id"`
	Title         string   `json:"title"`
	BrandID       string   `json:"brand_id"`
	BrandName     string   `json:"brand_name,omitempty"`
	Price         float64  `json:"price"`
	AverageRating float64  `json:"average_rating"`
	Tags          []string `json:"tags"`
	Category      string   `json:"category,omitempty"`
	Subcategory   string   `json:"subcategory,omitempty"`
}

// Brand is the brand registry entry products reference by id.
type Brand struct {
	BrandName string `json:"brand_name"`
}

// catalogFile is the on-disk layout: products nested by category and
// subcategory, brands in a flat registry.
type catalogFile struct {
	Categories map[string]map[string][]Product `json:"categories"`
	Brands     map[string]Brand                `json:"brands"`
}

// Store holds the denormalized product catalog in memory. It is loaded
// once at startup and read-only afterwards.
type Store struct {
	byCategory map[string][]Product
	flat       []Product
}

// Load reads and denormalizes the catalog file. Brand names are
// resolved onto products up front so search never touches the registry.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %v", err)
	}

	var file catalogFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing catalog file: %v", err)
	}

	store := &Store{byCategory: make(map[string][]Product, len(file.Categories))}
	for category, subcategories := range file.Categories {
		for subcategory, products := range subcategories {
			for _, product := range products {
				product.Category = category
				product.Subcategory = subcategory
				if brand, ok := file.Brands[product.BrandID]; ok {
					product.BrandName = brand.BrandName
				} else if product.BrandName == "" {
					product.BrandName = product.BrandID
				}
				store.byCategory[category] = append(store.byCategory[category], product)
				store.flat = append(store.flat, product)
			}
		}
	}

	logger.Info().
		Int("products", len(store.flat)).
		Int("categories", len(store.byCategory)).
		Str("path", path).
		Msg("Catalog loaded")

	return store, nil
}

// Categories lists the category names present in the catalog.
func (s *Store) Categories() []string {
	names := make([]string, 0, len(s.byCategory))
	for name := range s.byCategory {
		names = append(names, name)
	}
	return names
}

// ProductsByCategory returns the products in one category.
func (s *Store) ProductsByCategory(category string) []Product {
	return s.byCategory[category]
}

// AllProducts returns the flat product list.
func (s *Store) AllProducts() []Product {
	return s.flat
}

// ProductsBySubcategories returns products whose subcategory matches
// any of the given names. Used by the pairing strategy to search
// complementary garment types.
func (s *Store) ProductsBySubcategories(names []string) []Product {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var products []Product
	for _, product := range s.flat {
		if wanted[product.Subcategory] {
			products = append(products, product)
		}
	}
	return products
}
