package service

import (
	"fmt"

	"houser/internal/model"
)

// insightThreshold is the percentage distance from the market average beyond
// which a listing is labelled
const insightThreshold = 15

// priceInsight compares price with the market average. It returns nil when
// either value is not positive or the difference is within the threshold.
func priceInsight(price, avg float64) *string {
	if price <= 0 || avg <= 0 {
		return nil
	}

	diff := (price - avg) * 100 / avg

	var label string
	switch {
	case diff < -insightThreshold:
		label = fmt.Sprintf("Great Deal: %d%% below avg", int(-diff))
	case diff > insightThreshold:
		label = fmt.Sprintf("Premium: %d%% above avg", int(diff))
	default:
		return nil
	}
	return &label
}

// annotateInsights labels exact matches against the market average
func annotateInsights(items []model.ResultItem, avg float64) {
	for i := range items {
		if !items[i].IsExactMatch {
			continue
		}
		items[i].PriceInsight = priceInsight(items[i].Price, avg)
	}
}
