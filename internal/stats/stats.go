// Package stats provides sample statistics over float64 slices.
//
// Every function is total: degenerate input (empty, too short, mismatched
// lengths, zero variance) yields 0 instead of an error or NaN.
package stats

import "math"

// Mean returns the arithmetic mean of values, or 0 when values is empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleCovariance returns the covariance of xs and ys using the N-1
// denominator. Returns 0 unless both slices have the same length of at
// least 2.
func SampleCovariance(xs, ys []float64) float64 {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return 0
	}

	xMean := Mean(xs)
	yMean := Mean(ys)

	sum := 0.0
	for i := range n {
		sum += (xs[i] - xMean) * (ys[i] - yMean)
	}
	return sum / float64(n-1)
}

// SampleStdDev returns the standard deviation of values using the N-1
// denominator. Returns 0 for fewer than two values.
func SampleStdDev(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}

	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// PearsonCorrelation returns the linear correlation coefficient of xs and
// ys, clamped to [-1, 1]. It returns 0 when the inputs are shorter than two
// values, differ in length, or either series is constant.
func PearsonCorrelation(xs, ys []float64) float64 {
	if len(xs) <= 1 || len(xs) != len(ys) {
		return 0
	}

	sdX := SampleStdDev(xs)
	sdY := SampleStdDev(ys)
	if sdX == 0 || sdY == 0 {
		return 0
	}

	r := SampleCovariance(xs, ys) / (sdX * sdY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		// overflow on extreme magnitudes
		return 0
	}
	return Clamp(r, -1, 1)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
