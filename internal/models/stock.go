package models

import "time"

// PricePoint is a single reading of one instrument at one instant.
type PricePoint struct {
	Price         float64   `json:"price"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// StockAggregate is the per-instrument result of reducing a price series.
type StockAggregate struct {
	AveragePrice float64      `json:"averagePrice"`
	PriceHistory []PricePoint `json:"priceHistory"`
}

// AlignedSeriesPair holds two price series placed on a common timeline.
// All three slices always have the same length.
type AlignedSeriesPair struct {
	Timestamps []time.Time
	SeriesA    []float64
	SeriesB    []float64
}

// Len is the number of aligned timestamps.
func (p AlignedSeriesPair) Len() int {
	return len(p.Timestamps)
}

// CorrelationResult is the unrounded coefficient plus both reduced series.
type CorrelationResult struct {
	Coefficient float64
	StockA      StockAggregate
	StockB      StockAggregate
}
