package model

import "encoding/json"

// FrameType identifies one kind of streamed frame
type FrameType string

const (
	FrameTextChunk FrameType = "text_chunk"
	FrameIntent    FrameType = "intent"
	FrameResults   FrameType = "results"
	FrameStats     FrameType = "stats"
	FrameFinal     FrameType = "final"
	FrameError     FrameType = "error"
)

// Plan types returned by plan extraction
const (
	PlanSearch        = "search"
	PlanStats         = "stats"
	PlanInfo          = "info"
	PlanClarification = "clarification"
	PlanError         = "error"
)

// ChatPlan is the validated output of plan extraction
type ChatPlan struct {
	Type       string      `json:"type"`
	Thought    string      `json:"thought,omitempty"`
	SearchPlan *SearchPlan `json:"searchPlan,omitempty"`
	Response   string      `json:"response,omitempty"`
	WantsTable bool        `json:"wantsTable,omitempty"`
}

// Primary returns the plan's primary filter, empty when the plan has none
func (p *ChatPlan) Primary() Filter {
	if p == nil || p.SearchPlan == nil {
		return Filter{}
	}
	return p.SearchPlan.Primary
}

// SummaryRow is one row of the tabular result summary
type SummaryRow struct {
	Beds     string  `json:"beds"`
	Price    float64 `json:"price"`
	Location string  `json:"location"`
	Title    string  `json:"title"`
}

// ComparisonRow is one row of the market comparison table
type ComparisonRow struct {
	Name string  `json:"name"`
	Avg  float64 `json:"avg"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Frame is one unit of the streamed chat response
type Frame struct {
	Type FrameType

	Content string // text_chunk

	Filters *Filter // intent

	Outcome *SearchOutcome // results

	Stats      *StatsSnapshot  // stats
	Comparison []ComparisonRow // stats

	Summary    []SummaryRow // final
	TableTitle string       // stats, final

	Response  string // stats narrative or error sentence
	ErrorType string // error
}

// Terminal reports whether the frame ends the stream
func (f Frame) Terminal() bool {
	return f.Type == FrameFinal || f.Type == FrameError
}

// MarshalJSON encodes only the fields that belong to the frame's type
func (f Frame) MarshalJSON() ([]byte, error) {
	switch f.Type {
	case FrameTextChunk:
		return json.Marshal(struct {
			Type    FrameType `json:"type"`
			Content string    `json:"content"`
		}{f.Type, f.Content})
	case FrameIntent:
		filters := f.Filters
		if filters == nil {
			filters = &Filter{}
		}
		return json.Marshal(struct {
			Type       FrameType `json:"type"`
			Filters    *Filter   `json:"filters"`
			Processing bool      `json:"processing"`
		}{f.Type, filters, true})
	case FrameResults:
		outcome := SearchOutcome{Results: []ResultItem{}}
		if f.Outcome != nil {
			outcome = *f.Outcome
			if outcome.Results == nil {
				outcome.Results = []ResultItem{}
			}
		}
		return json.Marshal(struct {
			Type           FrameType    `json:"type"`
			Results        []ResultItem `json:"results"`
			IsFallback     bool         `json:"isFallback"`
			IsSupplemented bool         `json:"isSupplemented"`
		}{f.Type, outcome.Results, outcome.IsFallback, outcome.IsSupplemented})
	case FrameStats:
		table := f.Comparison
		if table == nil {
			table = []ComparisonRow{}
		}
		return json.Marshal(struct {
			Type       FrameType       `json:"type"`
			Stats      *StatsSnapshot  `json:"stats"`
			Response   string          `json:"response"`
			TableData  []ComparisonRow `json:"tableData"`
			TableTitle string          `json:"tableTitle"`
		}{f.Type, f.Stats, f.Response, table, f.TableTitle})
	case FrameFinal:
		table := f.Summary
		if table == nil {
			table = []SummaryRow{}
		}
		return json.Marshal(struct {
			Type       FrameType    `json:"type"`
			TableData  []SummaryRow `json:"tableData"`
			TableTitle string       `json:"tableTitle,omitempty"`
			Done       bool         `json:"done"`
		}{f.Type, table, f.TableTitle, true})
	case FrameError:
		return json.Marshal(struct {
			Type      FrameType `json:"type"`
			Response  string    `json:"response"`
			ErrorType string    `json:"errorType"`
			Done      bool      `json:"done"`
		}{f.Type, f.Response, f.ErrorType, true})
	default:
		return json.Marshal(struct {
			Type FrameType `json:"type"`
		}{f.Type})
	}
}
