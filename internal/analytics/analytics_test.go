package analytics

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/stockagg/internal/models"
)

var epoch = time.Date(2025, 5, 8, 4, 0, 0, 0, time.UTC)

func at(ms int64, price float64) models.PricePoint {
	return models.PricePoint{Price: price, LastUpdatedAt: epoch.Add(time.Duration(ms) * time.Millisecond)}
}

// ---------- Reduce ----------

func TestReduce_Empty(t *testing.T) {
	agg := Reduce(nil)
	assert.Equal(t, 0.0, agg.AveragePrice)
	require.NotNil(t, agg.PriceHistory)
	assert.Empty(t, agg.PriceHistory)
}

func TestReduce_KeepsSourceOrder(t *testing.T) {
	history := []models.PricePoint{at(300, 30), at(100, 10), at(200, 20)}
	agg := Reduce(history)

	assert.Equal(t, 20.0, agg.AveragePrice)
	assert.Equal(t, history, agg.PriceHistory)
}

func TestReduce_SinglePoint(t *testing.T) {
	agg := Reduce([]models.PricePoint{at(0, 512.25)})
	assert.Equal(t, 512.25, agg.AveragePrice)
	assert.Len(t, agg.PriceHistory, 1)
}

func TestReduce_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	history := make([]models.PricePoint, 50)
	for i := range history {
		history[i] = at(int64(i)*60000, rng.Float64()*1000)
	}

	first := Reduce(history).AveragePrice
	second := Reduce(history).AveragePrice
	assert.Equal(t, math.Float64bits(first), math.Float64bits(second))
}

// ---------- Nearest / Timeline ----------

func TestNearest_TieGoesToFirst(t *testing.T) {
	ts := []time.Time{epoch, epoch.Add(20 * time.Millisecond)}
	v, ok := Nearest(ts, []float64{1, 2}, epoch.Add(10*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	// same tie with the order reversed
	ts = []time.Time{epoch.Add(20 * time.Millisecond), epoch}
	v, ok = Nearest(ts, []float64{2, 1}, epoch.Add(10*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestNearest_Empty(t *testing.T) {
	_, ok := Nearest(nil, nil, epoch)
	assert.False(t, ok)
}

func TestNearest_UnsortedInput(t *testing.T) {
	ts := []time.Time{epoch.Add(time.Minute), epoch.Add(-time.Hour), epoch.Add(2 * time.Second)}
	v, ok := Nearest(ts, []float64{1, 2, 3}, epoch)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestTimeline_DedupesInstants(t *testing.T) {
	nyc := time.FixedZone("EST", -5*3600)
	a := []time.Time{epoch.Add(2 * time.Second), epoch}
	b := []time.Time{epoch.In(nyc), epoch.Add(time.Second)}

	got := Timeline(a, b)
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(epoch))
	assert.True(t, got[1].Equal(epoch.Add(time.Second)))
	assert.True(t, got[2].Equal(epoch.Add(2*time.Second)))
}

// ---------- Align ----------

func TestAlign_WorkedTrace(t *testing.T) {
	a := []models.PricePoint{at(0, 10), at(100, 12)}
	b := []models.PricePoint{at(10, 20)}

	got := Align(a, b)

	require.Equal(t, 3, got.Len())
	assert.Equal(t, []float64{10, 10, 12}, got.SeriesA)
	assert.Equal(t, []float64{20, 20, 20}, got.SeriesB)
	for i, ms := range []int64{0, 10, 100} {
		assert.True(t, got.Timestamps[i].Equal(epoch.Add(time.Duration(ms)*time.Millisecond)), "timestamp %d", i)
	}
}

func TestAlign_EmptyInput(t *testing.T) {
	for _, pair := range [][2][]models.PricePoint{
		{nil, {at(0, 1)}},
		{{at(0, 1)}, nil},
		{nil, nil},
	} {
		got := Align(pair[0], pair[1])
		assert.Equal(t, 0, got.Len())
		assert.Empty(t, got.SeriesA)
		assert.Empty(t, got.SeriesB)
	}
}

func TestAlign_OutOfOrderSources(t *testing.T) {
	a := []models.PricePoint{at(120000, 3), at(0, 1), at(60000, 2)}
	b := []models.PricePoint{at(60000, 20), at(120000, 30), at(0, 10)}

	got := Align(a, b)
	assert.Equal(t, []float64{1, 2, 3}, got.SeriesA)
	assert.Equal(t, []float64{10, 20, 30}, got.SeriesB)
}

func TestAlign_DifferentSamplingRates(t *testing.T) {
	// A ticks every 10s, B every 30s
	var a, b []models.PricePoint
	for i := range 7 {
		a = append(a, at(int64(i)*10000, float64(100+i)))
	}
	for i := range 3 {
		b = append(b, at(int64(i)*30000, float64(200+i)))
	}

	got := Align(a, b)
	require.Equal(t, 7, got.Len())
	assert.Equal(t, []float64{100, 101, 102, 103, 104, 105, 106}, got.SeriesA)
	// 0s->0, 10s->0, 20s->30s, 30s->30s, 40s->30s, 50s->60s, 60s->60s
	assert.Equal(t, []float64{200, 200, 201, 201, 201, 202, 202}, got.SeriesB)
}

// ---------- Correlate ----------

func TestCorrelate_SinglePointEach(t *testing.T) {
	res := Correlate([]models.PricePoint{at(0, 10)}, []models.PricePoint{at(0, 20)})
	assert.Equal(t, 0.0, res.Coefficient)
	assert.Equal(t, 10.0, res.StockA.AveragePrice)
	assert.Equal(t, 20.0, res.StockB.AveragePrice)
}

func TestCorrelate_EmptySeries(t *testing.T) {
	res := Correlate(nil, []models.PricePoint{at(0, 20), at(1000, 21)})
	assert.Equal(t, 0.0, res.Coefficient)
	assert.Equal(t, 0.0, res.StockA.AveragePrice)
	assert.NotNil(t, res.StockA.PriceHistory)
}

func TestCorrelate_PerfectlyCorrelated(t *testing.T) {
	var a, b []models.PricePoint
	for i := range 10 {
		ms := int64(i) * 60000
		a = append(a, at(ms, float64(100+i*i)))
		b = append(b, at(ms, float64(50+2*i*i)))
	}

	res := Correlate(a, b)
	assert.InDelta(t, 1.0, res.Coefficient, 1e-12)
	assert.Equal(t, a, res.StockA.PriceHistory)
	assert.Equal(t, b, res.StockB.PriceHistory)
}

func TestCorrelate_InverselyCorrelated(t *testing.T) {
	var a, b []models.PricePoint
	for i := range 10 {
		ms := int64(i) * 60000
		a = append(a, at(ms, float64(100+i)))
		b = append(b, at(ms, float64(100-i)))
	}
	assert.InDelta(t, -1.0, Correlate(a, b).Coefficient, 1e-12)
}

func TestCorrelate_ConstantSeries(t *testing.T) {
	a := []models.PricePoint{at(0, 5), at(1000, 5), at(2000, 5)}
	b := []models.PricePoint{at(0, 1), at(1000, 2), at(2000, 3)}
	assert.Equal(t, 0.0, Correlate(a, b).Coefficient)
}

func TestCorrelate_RoundedAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 99))
	for range 300 {
		a := randomSeries(rng)
		b := randomSeries(rng)
		c := RoundCoefficient(Correlate(a, b).Coefficient)
		if c < -1 || c > 1 || math.IsNaN(c) {
			t.Fatalf("rounded coefficient out of range: %v", c)
		}
	}
}

func randomSeries(rng *rand.Rand) []models.PricePoint {
	n := rng.IntN(15)
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = at(rng.Int64N(3_600_000), (rng.Float64()-0.5)*1e6)
	}
	return out
}

func TestRoundCoefficient(t *testing.T) {
	assert.Equal(t, 0.1235, RoundCoefficient(0.123456))
	assert.Equal(t, -0.9876, RoundCoefficient(-0.98761))
	assert.Equal(t, 1.0, RoundCoefficient(0.99999))
	assert.Equal(t, 0.0, RoundCoefficient(math.NaN()))
}
