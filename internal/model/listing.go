package model

import (
	"strconv"
	"strings"
)

// Listing represents a property row joined with its city, area and category names
type Listing struct {
	ID           int64    `json:"id" db:"id"`
	Title        *string  `json:"title,omitempty" db:"title"`
	Description  *string  `json:"description,omitempty" db:"description"`
	Location     *string  `json:"location,omitempty" db:"location"`
	Price        *float64 `json:"price,omitempty" db:"price"`
	Bedrooms     *int     `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms,omitempty" db:"bathrooms"`
	PropertyType *string  `json:"property_type,omitempty" db:"property_type"`
	Status       *string  `json:"status,omitempty" db:"status"`
	BuiltStatus  *string  `json:"built_status,omitempty" db:"built_status"`
	Source       *string  `json:"source,omitempty" db:"source"`
	SourceURL    *string  `json:"source_url,omitempty" db:"source_url"`
	Thumbnail    *string  `json:"thumbnail,omitempty" db:"thumbnail"`
	CityName     *string  `json:"city_name,omitempty" db:"city_name"`
	AreaName     *string  `json:"area_name,omitempty" db:"area_name"`
	CategoryName *string  `json:"category_name,omitempty" db:"category_name"`
}

// ResultItem is a listing prepared for the caller, annotated with how it matched
type ResultItem struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Location       string  `json:"location"`
	Price          float64 `json:"price"`
	Beds           string  `json:"beds"`
	Baths          string  `json:"baths"`
	Area           string  `json:"area"`
	City           string  `json:"city"`
	Category       string  `json:"category,omitempty"`
	Type           string  `json:"type"`
	Thumbnail      *string `json:"thumbnail"`
	Source         *string `json:"source"`
	SourceURL      *string `json:"sourceUrl"`
	PriceInsight   *string `json:"priceInsight"`
	IsExactMatch   bool    `json:"isExactMatch"`
	FallbackReason *string `json:"fallbackReason"`
}

// SearchOutcome is the merged result of all executed tiers
type SearchOutcome struct {
	Results        []ResultItem `json:"results"`
	IsFallback     bool         `json:"isFallback"`
	IsSupplemented bool         `json:"isSupplemented"`
}

// NewResultItem converts a listing row into its display form
func NewResultItem(l Listing, exact bool, fallbackReason *string) ResultItem {
	item := ResultItem{
		ID:             l.ID,
		Title:          firstNonEmpty("Untitled", l.Title),
		Description:    firstNonEmpty("No description.", l.Description),
		Location:       firstNonEmpty("Unknown", l.Location, l.AreaName, l.CityName),
		Beds:           formatBeds(l.Bedrooms),
		Baths:          "N/A",
		Area:           firstNonEmpty("N/A", l.AreaName, l.CityName),
		City:           firstNonEmpty("N/A", l.CityName),
		Category:       firstNonEmpty("", l.CategoryName),
		Type:           firstNonEmpty(PropertyTypeBuy, l.PropertyType),
		Thumbnail:      l.Thumbnail,
		Source:         l.Source,
		SourceURL:      l.SourceURL,
		IsExactMatch:   exact,
		FallbackReason: fallbackReason,
	}
	if l.Price != nil {
		item.Price = *l.Price
	}
	if l.Bathrooms != nil && *l.Bathrooms > 0 {
		item.Baths = strconv.Itoa(*l.Bathrooms)
	}
	return item
}

func formatBeds(beds *int) string {
	if beds == nil {
		return "N/A"
	}
	if *beds == 0 {
		return "Studio"
	}
	return strconv.Itoa(*beds)
}

func firstNonEmpty(fallback string, values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return fallback
}
