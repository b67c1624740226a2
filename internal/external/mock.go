package external

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kjannette/stockagg/internal/models"
)

const maxMockPoints = 10

// MockSource fabricates random prices for development and for serving
// requests while the exchange is unreachable.
type MockSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewMockSource() *MockSource {
	return &MockSource{
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		now: time.Now,
	}
}

// NewSeededMockSource returns a deterministic source pinned to now.
func NewSeededMockSource(seed uint64, now time.Time) *MockSource {
	return &MockSource{
		rng: rand.New(rand.NewPCG(seed, seed^0x5eed)),
		now: func() time.Time { return now },
	}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) ListStocks(_ context.Context) (map[string]string, error) {
	return map[string]string{
		"Advanced Micro Devices, Inc.": "AMD",
		"Alphabet Inc. Class A":        "GOOGL",
		"Amazon.com, Inc.":             "AMZN",
		"Apple Inc.":                   "AAPL",
		"Microsoft Corporation":        "MSFT",
		"Nvidia Corporation":           "NVDA",
		"PayPal Holdings, Inc.":        "PYPL",
		"Tesla, Inc.":                  "TSLA",
	}, nil
}

// PriceHistory returns one point for a latest request, otherwise up to ten
// points one minute apart, newest first.
func (m *MockSource) PriceHistory(_ context.Context, ticker string, minutes int) ([]models.PricePoint, error) {
	fmt.Printf("[MOCK] Generating data for %s (%s)\n", ticker, windowLabel(minutes))

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if minutes <= 0 {
		return []models.PricePoint{{Price: m.rng.Float64() * 1000, LastUpdatedAt: now}}, nil
	}

	n := min(maxMockPoints, minutes)
	out := make([]models.PricePoint, n)
	for i := range n {
		out[i] = models.PricePoint{
			Price:         m.rng.Float64() * 1000,
			LastUpdatedAt: now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out, nil
}

func windowLabel(minutes int) string {
	if minutes <= 0 {
		return "latest"
	}
	return fmt.Sprintf("last %d min", minutes)
}
