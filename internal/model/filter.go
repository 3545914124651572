package model

import "strings"

// Property types
const (
	PropertyTypeBuy  = "buy"
	PropertyTypeRent = "rent"
)

// Categories lists every category a plan may request
var Categories = []string{
	"Apartment",
	"Villa",
	"Townhouse",
	"Office",
	"Penthouse",
	"Duplex",
	"Compound",
	"Bungalow",
	"Hotel & Hotel Apartment",
}

// ResidentialCategories is the allow-list applied when a filter is residential
var ResidentialCategories = []string{
	"Apartment",
	"Villa",
	"Townhouse",
	"Penthouse",
	"Duplex",
	"Compound",
	"Bungalow",
	"Hotel & Hotel Apartment",
}

// CanonicalCategory returns the canonical spelling of a category, matched case-insensitively
func CanonicalCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Filter holds the structured conditions of one query attempt
type Filter struct {
	City          string   `json:"city,omitempty"`
	Area          string   `json:"area,omitempty"`
	Beds          *int     `json:"beds,omitempty"`
	MinPrice      *float64 `json:"minPrice,omitempty"`
	MaxPrice      *float64 `json:"maxPrice,omitempty"`
	PropertyType  string   `json:"propertyType,omitempty"`
	Category      string   `json:"category,omitempty"`
	IsResidential *bool    `json:"isResidential,omitempty"`
}

// Residential reports whether the residential allow-list applies (default true)
func (f Filter) Residential() bool {
	return f.IsResidential == nil || *f.IsResidential
}

// Type returns the normalized property type, defaulting to buy
func (f Filter) Type() string {
	if strings.EqualFold(strings.TrimSpace(f.PropertyType), PropertyTypeRent) {
		return PropertyTypeRent
	}
	return PropertyTypeBuy
}

// WithArea returns a copy of the filter scoped to another area
func (f Filter) WithArea(area string) Filter {
	f.Area = area
	return f
}

// WithoutArea returns a copy of the filter with no area constraint
func (f Filter) WithoutArea() Filter {
	f.Area = ""
	return f
}

// FallbackHint is the optional alternate area suggested by plan extraction
type FallbackHint struct {
	Area   string `json:"area,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// SearchPlan is the structured search produced by plan extraction
type SearchPlan struct {
	Primary  Filter       `json:"primary"`
	Fallback FallbackHint `json:"fallback"`
}

// StatsScope selects the market segment for aggregate statistics
type StatsScope struct {
	City string `json:"city,omitempty"`
	Area string `json:"area,omitempty"`
}

// Scope returns the city/area scope of the filter
func (f Filter) Scope() StatsScope {
	return StatsScope{City: f.City, Area: f.Area}
}

// ListingQuery is a single read against the listings store
type ListingQuery struct {
	Filter     Filter
	ExcludeIDs []int64
	Limit      int
}
