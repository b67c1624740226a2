package models

import "time"

// Observation is an archived raw price point.
type Observation struct {
	ID         int64     `json:"id"`
	Ticker     string    `json:"ticker"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observedAt"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (o Observation) PricePoint() PricePoint {
	return PricePoint{Price: o.Price, LastUpdatedAt: o.ObservedAt}
}
