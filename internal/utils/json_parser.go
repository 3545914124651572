package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONPattern    = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	thinkBlockPattern    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	controlCharPattern   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ParseAIJSON extracts and parses a JSON object from model output that may be:
// - pure JSON
// - wrapped in a markdown code fence
// - preceded by a <think> block or surrounded by prose
// - slightly malformed (trailing commas, bare keys, single quotes)
func ParseAIJSON(input string, target interface{}) error {
	input = strings.TrimSpace(thinkBlockPattern.ReplaceAllString(input, ""))
	if input == "" {
		return fmt.Errorf("empty input")
	}

	candidates := []string{input}
	if m := fencedJSONPattern.FindStringSubmatch(input); len(m) > 1 {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start := strings.Index(input, "{"); start >= 0 {
		if obj := extractBalanced(input[start:], '{', '}'); obj != "" {
			candidates = append(candidates, obj)
		}
	}

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), target); err == nil {
			return nil
		}
	}
	for _, c := range candidates {
		if err := json.Unmarshal([]byte(repairJSON(c)), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", truncateString(input, 100))
}

// extractBalanced returns the prefix of input up to the matching close
// delimiter, ignoring delimiters inside string literals
func extractBalanced(input string, open, close rune) string {
	depth := 0
	inString := false
	escape := false

	for i, ch := range input {
		switch {
		case escape:
			escape = false
		case ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return input[:i+1]
			}
		}
	}
	return ""
}

// repairJSON fixes the mistakes models make most often
func repairJSON(input string) string {
	s := strings.TrimPrefix(strings.TrimSpace(input), "\ufeff")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = quoteBareKeys(s)
	s = fixSingleQuotes(s)
	return controlCharPattern.ReplaceAllString(s, "")
}

// quoteBareKeys quotes identifiers used as object keys. Text inside single
// or double quoted strings is copied unchanged.
func quoteBareKeys(input string) string {
	var b strings.Builder
	inDouble, inSingle, escape := false, false, false
	afterOpen := false // last non-space byte outside strings was '{' or ','

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case escape:
			escape = false
		case ch == '\\' && (inDouble || inSingle):
			escape = true
		case inDouble:
			inDouble = ch != '"'
		case inSingle:
			inSingle = ch != '\''
		case ch == '"':
			inDouble, afterOpen = true, false
		case ch == '\'':
			inSingle, afterOpen = true, false
		case ch == '{' || ch == ',':
			afterOpen = true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		case afterOpen && isIdentStart(ch):
			end := i + 1
			for end < len(input) && isIdentByte(input[end]) {
				end++
			}
			rest := strings.TrimLeft(input[end:], " \t\n\r")
			if strings.HasPrefix(rest, ":") {
				b.WriteByte('"')
				b.WriteString(input[i:end])
				b.WriteByte('"')
			} else {
				b.WriteString(input[i:end])
			}
			i = end - 1
			afterOpen = false
			continue
		default:
			afterOpen = false
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentByte(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

// fixSingleQuotes turns single-quoted JSON strings into double-quoted ones,
// leaving apostrophes inside double-quoted strings alone
func fixSingleQuotes(input string) string {
	var b strings.Builder
	inDouble, inSingle, escape := false, false, false

	for _, ch := range input {
		switch {
		case escape:
			escape = false
		case ch == '\\':
			escape = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
		case ch == '"' && inSingle:
			b.WriteString(`\"`)
			continue
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune('"')
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
