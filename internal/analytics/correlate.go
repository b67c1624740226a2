package analytics

import (
	"fmt"
	"math"

	"github.com/kjannette/stockagg/internal/models"
	"github.com/kjannette/stockagg/internal/stats"
)

// Correlate reduces both series, aligns their histories and computes the
// Pearson coefficient over the aligned prices. Fewer than two aligned pairs
// gives a coefficient of 0.
//
// The coefficient keeps full precision; use RoundCoefficient when
// presenting it.
func Correlate(a, b []models.PricePoint) models.CorrelationResult {
	stockA := Reduce(a)
	stockB := Reduce(b)

	aligned := Align(stockA.PriceHistory, stockB.PriceHistory)
	if len(aligned.SeriesA) != len(aligned.SeriesB) || len(aligned.SeriesA) != len(aligned.Timestamps) {
		panic(fmt.Sprintf("analytics: aligned series length mismatch (ts=%d a=%d b=%d)",
			len(aligned.Timestamps), len(aligned.SeriesA), len(aligned.SeriesB)))
	}

	coefficient := 0.0
	if aligned.Len() > 1 {
		coefficient = stats.PearsonCorrelation(aligned.SeriesA, aligned.SeriesB)
	}

	return models.CorrelationResult{
		Coefficient: coefficient,
		StockA:      stockA,
		StockB:      stockB,
	}
}

// RoundCoefficient rounds c to four decimal places, keeping it in [-1, 1].
func RoundCoefficient(c float64) float64 {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return stats.Clamp(math.Round(c*1e4)/1e4, -1, 1)
}
