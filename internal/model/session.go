package model

import (
	"strings"
	"unicode/utf8"
)

// ChatMessage is one turn of the conversation history
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExclusionSet is an ordered set of listing ids already shown to the caller
type ExclusionSet struct {
	ids  []int64
	seen map[int64]struct{}
}

// NewExclusionSet builds a set from ids, dropping duplicates and keeping first-seen order
func NewExclusionSet(ids ...int64) *ExclusionSet {
	s := &ExclusionSet{seen: make(map[int64]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

// Add appends ids that are not yet in the set
func (s *ExclusionSet) Add(ids ...int64) {
	if s.seen == nil {
		s.seen = make(map[int64]struct{}, len(ids))
	}
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

// Contains reports whether id is excluded
func (s *ExclusionSet) Contains(id int64) bool {
	if s == nil {
		return false
	}
	_, ok := s.seen[id]
	return ok
}

// IDs returns a copy of the ids in insertion order
func (s *ExclusionSet) IDs() []int64 {
	if s == nil {
		return nil
	}
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of excluded ids
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// SessionContext is the per-request conversation state supplied by the caller
type SessionContext struct {
	History  []ChatMessage `json:"history,omitempty"`
	UserName string        `json:"user_name,omitempty"`
	Filters  *Filter       `json:"filters,omitempty"`
	Page     int           `json:"page,omitempty"`
	SeenIDs  []int64       `json:"seen_ids,omitempty"`
}

// CurrentPage returns the requested page, at least 1
func (s *SessionContext) CurrentPage() int {
	if s == nil || s.Page < 1 {
		return 1
	}
	return s.Page
}

// Exclusions returns the session's already-seen ids as a set
func (s *SessionContext) Exclusions() *ExclusionSet {
	if s == nil {
		return NewExclusionSet()
	}
	return NewExclusionSet(s.SeenIDs...)
}

// ResolveUserName returns the supplied user name, or the most recent
// "my name is ..." introduction found in the history
func (s *SessionContext) ResolveUserName() string {
	if s == nil {
		return ""
	}
	if name := strings.TrimSpace(s.UserName); name != "" {
		return name
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if name := nameAfterMarker(s.History[i].Content); name != "" {
			return name
		}
	}
	return ""
}

const nameMarker = "my name is "

// nameAfterMarker returns the text after the last case-insensitive
// "my name is " in content. Offsets always index content itself.
func nameAfterMarker(content string) string {
	for end := len(content); end > 0; {
		idx, n := lastIndexFold(content[:end], nameMarker)
		if idx < 0 {
			return ""
		}
		if name := strings.Trim(strings.TrimSpace(content[idx+n:end]), " .!"); name != "" {
			return name
		}
		end = idx
	}
	return ""
}

// lastIndexFold is strings.LastIndex under Unicode case folding. It also
// returns the byte length of the match in s.
func lastIndexFold(s, substr string) (int, int) {
	for i := len(s) - 1; i >= 0; i-- {
		if !utf8.RuneStart(s[i]) {
			continue
		}
		if n := prefixFoldLen(s[i:], substr); n >= 0 {
			return i, n
		}
	}
	return -1, 0
}

// prefixFoldLen returns how many bytes of s match prefix under case
// folding, or -1 when s does not start with prefix
func prefixFoldLen(s, prefix string) int {
	n := 0
	for _, pr := range prefix {
		if n >= len(s) {
			return -1
		}
		r, size := utf8.DecodeRuneInString(s[n:])
		if !strings.EqualFold(string(r), string(pr)) {
			return -1
		}
		n += size
	}
	return n
}

// DisplayName returns the resolved user name or a neutral form of address
func (s *SessionContext) DisplayName() string {
	if name := s.ResolveUserName(); name != "" {
		return name
	}
	return "Client"
}

// RecentHistory returns at most the last n turns
func (s *SessionContext) RecentHistory(n int) []ChatMessage {
	if s == nil || n <= 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
