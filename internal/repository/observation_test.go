package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kjannette/stockagg/internal/models"
	"github.com/kjannette/stockagg/internal/repository"
	"github.com/kjannette/stockagg/internal/testutil"
)

func TestObservationRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewObservationRepo(pool)
	ctx := context.Background()

	ticker := fmt.Sprintf("T%d", time.Now().UnixNano()%1_000_000)
	now := time.Now().UTC().Truncate(time.Millisecond)
	points := []models.PricePoint{
		{Price: 101.5, LastUpdatedAt: now.Add(-2 * time.Minute)},
		{Price: 102.25, LastUpdatedAt: now.Add(-1 * time.Minute)},
		{Price: 99.75, LastUpdatedAt: now},
	}

	// Record
	n, err := repo.Record(ctx, ticker, "test", points)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 inserted rows, got %d", n)
	}

	// Duplicates are ignored
	n, err = repo.Record(ctx, ticker, "test", points[:1])
	if err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected duplicate to be skipped, got %d", n)
	}

	// Latest
	latest, err := repo.Latest(ctx, ticker)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Price != 99.75 {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	// Window
	window, err := repo.Window(ctx, ticker, 90)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("expected 3 points, got %d", len(window))
	}
	if window[0].Price != 101.5 {
		t.Fatalf("expected oldest first, got %.2f", window[0].Price)
	}
	t.Logf("Window(%s, 90m): %d points", ticker, len(window))

	latestOnly, err := repo.Window(ctx, ticker, 0)
	if err != nil {
		t.Fatalf("Window latest: %v", err)
	}
	if len(latestOnly) != 1 || latestOnly[0].Price != 99.75 {
		t.Fatalf("unexpected latest window: %+v", latestOnly)
	}

	// Prune
	removed, err := repo.PruneBefore(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed < 3 {
		t.Fatalf("expected at least 3 pruned rows, got %d", removed)
	}

	missing, err := repo.Latest(ctx, ticker)
	if err != nil {
		t.Fatalf("Latest after prune: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no rows after prune, got %+v", missing)
	}
}
