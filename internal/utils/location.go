package utils

import (
	"strings"
)

// Emirates lists the canonical city names
var Emirates = []string{
	"Dubai",
	"Abu Dhabi",
	"Sharjah",
	"Ajman",
	"Ras Al Khaimah",
	"Fujairah",
	"Umm Al Quwain",
}

// cityAliases maps common misspellings and abbreviations to canonical names
var cityAliases = map[string]string{
	"dubay":         "Dubai",
	"dubái":         "Dubai",
	"dxb":           "Dubai",
	"abudhabi":      "Abu Dhabi",
	"abu dabi":      "Abu Dhabi",
	"auh":           "Abu Dhabi",
	"shrajh":        "Sharjah",
	"sharja":        "Sharjah",
	"shj":           "Sharjah",
	"anjnm":         "Ajman",
	"rak":           "Ras Al Khaimah",
	"ras al khaima": "Ras Al Khaimah",
	"fujeirah":      "Fujairah",
	"uaq":           "Umm Al Quwain",
}

// NormalizeCity maps a city name or known alias to its canonical spelling.
// Unknown names are returned trimmed with collapsed whitespace.
func NormalizeCity(city string) string {
	cleaned := collapseSpaces(city)
	if cleaned == "" {
		return ""
	}

	lower := strings.ToLower(cleaned)
	for _, e := range Emirates {
		if strings.ToLower(e) == lower {
			return e
		}
	}
	if canonical, ok := cityAliases[lower]; ok {
		return canonical
	}
	return cleaned
}

// NormalizeArea trims an area name and collapses inner whitespace
func NormalizeArea(area string) string {
	return collapseSpaces(area)
}

// NormalizeMessage lower-cases a chat message, strips ? and !, and rewrites
// city aliases in place
func NormalizeMessage(msg string) string {
	s := strings.ToLower(msg)
	s = strings.NewReplacer("?", "", "!", "").Replace(s)
	words := strings.Fields(s)
	for i, w := range words {
		if canonical, ok := cityAliases[w]; ok {
			words[i] = strings.ToLower(canonical)
		}
	}
	return strings.Join(words, " ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
