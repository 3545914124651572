package utils

import "strings"

// RealEstateKeywords are the substrings that mark a query as property related
var RealEstateKeywords = []string{
	"apartment", "villa", "rent", "buy", "property", "dubai", "uae",
	"bed", "price", "area", "studio", "townhouse", "penthouse",
}

// IsRealEstateQuery reports whether text mentions any real-estate keyword
func IsRealEstateQuery(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range RealEstateKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
