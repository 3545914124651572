package model

// ChatRequest represents a conversational search request
type ChatRequest struct {
	Message string          `json:"message"`
	Context *SessionContext `json:"context,omitempty"`
}

// SearchRequest represents a direct structured search request
type SearchRequest struct {
	Query    string        `json:"q"`
	Filters  *Filter       `json:"filters,omitempty"`
	Fallback *FallbackHint `json:"fallback,omitempty"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	SeenIDs  []int64       `json:"seenIds,omitempty"`
}

// SearchResponse represents a direct search response
type SearchResponse struct {
	Summary    string       `json:"summary"`
	Results    []ResultItem `json:"results"`
	IsFallback bool         `json:"isFallback"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	HasMore    bool         `json:"hasMore"`
	Cached     bool         `json:"cached"`
	Took       int64        `json:"took_ms"`
}

// StatsRequest selects the market segment for a stats lookup
type StatsRequest struct {
	City string `json:"city"`
	Area string `json:"area"`
}

// IntentRequest asks whether free text is a real-estate query
type IntentRequest struct {
	Query string `json:"q"`
}

// IntentResponse answers an IntentRequest
type IntentResponse struct {
	IsRealEstate bool `json:"isRealEstate"`
}

// CacheClearRequest selects the cache namespace to purge; empty clears everything
type CacheClearRequest struct {
	Namespace string `json:"namespace,omitempty"`
}
