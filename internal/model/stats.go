package model

// Stats provenance values
const (
	ProvenanceResultSet = "result_set"
	ProvenanceMarket    = "market"
)

// StatsCounts holds listing counts for a snapshot
type StatsCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// StatsPrices holds the price aggregates for a snapshot
type StatsPrices struct {
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Avg        float64  `json:"avg"`
	TotalValue *float64 `json:"total_value,omitempty"`
}

// CityAggregate is one row of the per-city breakdown
type CityAggregate struct {
	Name  string  `json:"name" db:"name"`
	Count int     `json:"count" db:"count"`
	Avg   float64 `json:"avg" db:"avg_price"`
	Min   float64 `json:"min" db:"min_price"`
	Max   float64 `json:"max" db:"max_price"`
}

// StatsSnapshot summarizes prices for a result set or a market segment
type StatsSnapshot struct {
	Area          string          `json:"area"`
	Counts        StatsCounts     `json:"counts"`
	Prices        StatsPrices     `json:"prices"`
	CityBreakdown []CityAggregate `json:"city_breakdown,omitempty"`
	Provenance    string          `json:"provenance"`
}

// MarketAggregate is the raw aggregate row over active, priced listings
type MarketAggregate struct {
	Total      int      `db:"total"`
	MinPrice   *float64 `db:"min_price"`
	MaxPrice   *float64 `db:"max_price"`
	AvgPrice   *float64 `db:"avg_price"`
	TotalValue *float64 `db:"total_valuation"`
}
