// Package analytics turns raw price series into per-stock aggregates and
// pairwise correlation results.
package analytics

import (
	"time"

	"github.com/kjannette/stockagg/internal/models"
	"github.com/kjannette/stockagg/internal/stats"
)

// Reduce computes the unweighted average price of history. The history is
// returned as given, in source order.
func Reduce(history []models.PricePoint) models.StockAggregate {
	if len(history) == 0 {
		return models.StockAggregate{AveragePrice: 0, PriceHistory: []models.PricePoint{}}
	}
	return models.StockAggregate{
		AveragePrice: stats.Mean(Prices(history)),
		PriceHistory: history,
	}
}

// Prices extracts the price of every point, preserving order.
func Prices(history []models.PricePoint) []float64 {
	out := make([]float64, len(history))
	for i, p := range history {
		out[i] = p.Price
	}
	return out
}

func timestamps(history []models.PricePoint) []time.Time {
	out := make([]time.Time, len(history))
	for i, p := range history {
		out[i] = p.LastUpdatedAt
	}
	return out
}
