package external

import (
	"context"

	"github.com/kjannette/stockagg/internal/models"
)

// PriceSource supplies raw price series for tickers.
//
// PriceHistory with minutes == 0 returns the single most recent point;
// otherwise every point observed in the last minutes minutes.
type PriceSource interface {
	Name() string
	ListStocks(ctx context.Context) (map[string]string, error)
	PriceHistory(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error)
}
