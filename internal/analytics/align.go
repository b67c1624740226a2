package analytics

import (
	"slices"
	"time"

	"github.com/kjannette/stockagg/internal/models"
)

// Align places two independently sampled series on a shared timeline.
//
// The timeline is the sorted union of every distinct instant seen in either
// series. For each instant, each series contributes its own closest observed
// price (see Nearest), so SeriesA[i] and SeriesB[i] need not come from the
// same timestamp. If either series is empty the result is empty.
func Align(a, b []models.PricePoint) models.AlignedSeriesPair {
	out := models.AlignedSeriesPair{
		Timestamps: []time.Time{},
		SeriesA:    []float64{},
		SeriesB:    []float64{},
	}
	if len(a) == 0 || len(b) == 0 {
		return out
	}

	tsA, pricesA := timestamps(a), Prices(a)
	tsB, pricesB := timestamps(b), Prices(b)

	for _, t := range Timeline(tsA, tsB) {
		pa, okA := Nearest(tsA, pricesA, t)
		pb, okB := Nearest(tsB, pricesB, t)
		if !okA || !okB {
			continue
		}
		out.Timestamps = append(out.Timestamps, t)
		out.SeriesA = append(out.SeriesA, pa)
		out.SeriesB = append(out.SeriesB, pb)
	}
	return out
}

// Timeline returns the distinct instants across all inputs, ascending.
// Two times naming the same instant in different zones count once; the
// first one seen is kept.
func Timeline(series ...[]time.Time) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, ts := range series {
		for _, t := range ts {
			key := t.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(x, y time.Time) int { return x.Compare(y) })
	return out
}

// Nearest returns the value whose timestamp is closest to target, measured
// in whole milliseconds. On equal distance the earliest index wins. ok is
// false only when timestamps is empty.
//
// timestamps and values are parallel; values must be at least as long.
func Nearest(timestamps []time.Time, values []float64, target time.Time) (value float64, ok bool) {
	best := -1
	var bestDist int64
	for i, t := range timestamps {
		d := distanceMillis(t, target)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return 0, false
	}
	return values[best], true
}

func distanceMillis(a, b time.Time) int64 {
	d := a.Sub(b).Milliseconds()
	if d < 0 {
		return -d
	}
	return d
}
