package stocks

import (
	"context"
	"fmt"
	"time"

	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/models"
)

// Recorder is the write side of the observation archive.
type Recorder interface {
	Record(ctx context.Context, ticker, source string, points []models.PricePoint) (int64, error)
}

// ArchivingSource records every series fetched from next. Recording is
// best effort: failures are logged and never fail the fetch.
type ArchivingSource struct {
	next     external.PriceSource
	recorder Recorder
	timeout  time.Duration
}

func NewArchivingSource(next external.PriceSource, recorder Recorder) *ArchivingSource {
	return &ArchivingSource{next: next, recorder: recorder, timeout: 2 * time.Second}
}

func (a *ArchivingSource) Name() string { return a.next.Name() }

func (a *ArchivingSource) ListStocks(ctx context.Context) (map[string]string, error) {
	return a.next.ListStocks(ctx)
}

func (a *ArchivingSource) PriceHistory(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error) {
	points, err := a.next.PriceHistory(ctx, ticker, minutes)
	if err != nil || len(points) == 0 {
		return points, err
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if n, err := a.recorder.Record(rctx, ticker, a.next.Name(), points); err != nil {
		fmt.Printf("[ARCHIVE] Record %s failed: %v\n", ticker, err)
	} else if n > 0 {
		fmt.Printf("[ARCHIVE] Stored %d new points for %s\n", n, ticker)
	}
	return points, nil
}
