package repository

import (
	"context"
	"time"

	"github.com/kjannette/stockagg/internal/models"
)

// Window returns archived points for ticker as a price series. minutes == 0
// yields the latest point only. An empty result is not an error.
func (r *ObservationRepo) Window(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error) {
	if minutes <= 0 {
		latest, err := r.Latest(ctx, ticker)
		if err != nil || latest == nil {
			return nil, err
		}
		return []models.PricePoint{latest.PricePoint()}, nil
	}

	obs, err := r.Since(ctx, ticker, time.Now().Add(-time.Duration(minutes)*time.Minute))
	if err != nil {
		return nil, err
	}
	out := make([]models.PricePoint, len(obs))
	for i, o := range obs {
		out[i] = o.PricePoint()
	}
	return out, nil
}
