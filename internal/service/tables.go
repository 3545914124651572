package service

import (
	"houser/internal/model"
	"houser/internal/utils"
)

const (
	summaryTableTitle    = "Property Summary:"
	comparisonTableTitle = "Market Comparison Matrix"

	summaryTableRows     = 10
	summaryLocationRunes = 30
	summaryTitleRunes    = 40
)

// buildSummaryTable renders the first results as compact table rows
func buildSummaryTable(results []model.ResultItem) []model.SummaryRow {
	n := min(len(results), summaryTableRows)
	rows := make([]model.SummaryRow, 0, n)
	for _, r := range results[:n] {
		beds := r.Beds
		if beds == "" {
			beds = "-"
		}
		rows = append(rows, model.SummaryRow{
			Beds:     beds,
			Price:    r.Price,
			Location: utils.TruncateRunes(r.Location, summaryLocationRunes),
			Title:    utils.TruncateRunes(r.Title, summaryTitleRunes) + "...",
		})
	}
	return rows
}

// buildComparisonTable lists the per-city breakdown, or the snapshot itself
// when it has none
func buildComparisonTable(snapshot *model.StatsSnapshot) []model.ComparisonRow {
	if snapshot == nil {
		return []model.ComparisonRow{}
	}
	if len(snapshot.CityBreakdown) > 0 {
		rows := make([]model.ComparisonRow, 0, len(snapshot.CityBreakdown))
		for _, c := range snapshot.CityBreakdown {
			rows = append(rows, model.ComparisonRow{Name: c.Name, Avg: c.Avg, Min: c.Min, Max: c.Max})
		}
		return rows
	}
	return []model.ComparisonRow{{
		Name: firstNonBlank(snapshot.Area, "Selected"),
		Avg:  snapshot.Prices.Avg,
		Min:  snapshot.Prices.Min,
		Max:  snapshot.Prices.Max,
	}}
}
