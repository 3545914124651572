package utils

import (
	"math"
	"strconv"
	"strings"
)

// FormatThousands renders the integer part of v with comma separators
func FormatThousands(v float64) string {
	n := int64(math.Trunc(v))
	neg := n < 0
	if neg {
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatAED renders a price as "AED 1,250,000"
func FormatAED(v float64) string {
	return "AED " + FormatThousands(v)
}

// TruncateRunes returns at most n runes of s
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
