// Package catalog provides the menu item store and its query interface.
package catalog

import "context"

// Item is one menu dish. Prices are in shekels; a zero price field
// means the dish is not sold by that unit.
type Item struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Description       string  `json:"description"` // ingredient list
	PricePer100g      float64 `json:"price_per_100g,omitempty"`
	PricePerUnit      float64 `json:"price_per_unit,omitempty"`
	PackageType       string  `json:"package_type,omitempty"`
	IsVegan           bool    `json:"is_vegan"`
	IsGlutenFree      bool    `json:"is_gluten_free"`
	AllergensContains string  `json:"allergens_contains,omitempty"`
	AllergensTraces   string  `json:"allergens_traces,omitempty"`
	// AvailabilityDays holds Hebrew day letters (א..ו) the dish is made.
	// Empty means available every day.
	AvailabilityDays string `json:"availability_days,omitempty"`
}

// Query is one filtered catalog lookup.
type Query struct {
	// Category matches exactly, unless Fuzzy is set.
	Category string
	// SearchTerm partial-matches name or description, case-insensitive.
	SearchTerm string
	// MaxPrice caps price per 100g. Zero means no cap.
	MaxPrice float64
	// Dietary is "vegan", "gluten_free", or an allergen key to exclude
	// (gluten, nuts, dairy, eggs, sesame, soy, celery, mustard, fish).
	Dietary string
	// Day is a Hebrew day letter filtering availability.
	Day string
	// ExcludeIDs removes already-shown dishes from the result.
	ExcludeIDs map[int64]struct{}
	// Fuzzy loosens the category filter to a partial match across
	// category, name and description. Used by the query gate's retry.
	Fuzzy bool
	// Limit caps returned rows. Zero means the store default.
	Limit int
}

// Querier is the read interface the query gate depends on.
type Querier interface {
	Search(ctx context.Context, q Query) ([]Item, error)
}
