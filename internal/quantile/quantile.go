// Package quantile computes order statistics over small samples such as the
// frame times of a log.
package quantile

import (
	"math"
	"slices"
)

// Sample is a collection of data points.
type Sample struct {
	Xs []float64

	// Sorted indicates that Xs is sorted in ascending order.
	Sorted bool
}

// New returns a sorted copy of xs.
func New(xs []float64) *Sample {
	s := &Sample{Xs: slices.Clone(xs)}
	return s.Sort()
}

// Sort sorts the samples in place and returns s.
func (s *Sample) Sort() *Sample {
	if !s.Sorted {
		slices.Sort(s.Xs)
		s.Sorted = true
	}
	return s
}

func (s *Sample) Add(v ...float64) {
	s.Xs = append(s.Xs, v...)
	s.Sorted = false
}

func (s Sample) Len() int {
	return len(s.Xs)
}

// Bounds returns the minimum and maximum values of the sample.
func (s Sample) Bounds() (lo float64, hi float64) {
	if len(s.Xs) == 0 {
		return 0, 0
	}
	if s.Sorted {
		return s.Xs[0], s.Xs[len(s.Xs)-1]
	}
	return slices.Min(s.Xs), slices.Max(s.Xs)
}

// Mean returns the arithmetic mean of xs, or NaN when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := 0.0
	for i, x := range xs {
		m += (x - m) / float64(i+1)
	}
	return m
}

func (s Sample) Mean() float64 {
	return Mean(s.Xs)
}

// Variance returns the sample variance of xs.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	} else if len(xs) <= 1 {
		return 0
	}

	// Welford's online algorithm.
	mean, m2 := 0.0, 0.0
	for n, x := range xs {
		delta := x - mean
		mean += delta / float64(n+1)
		m2 += delta * (x - mean)
	}
	return m2 / float64(len(xs)-1)
}

func (s Sample) StdDev() float64 {
	return math.Sqrt(Variance(s.Xs))
}

// Median returns the middle value, or the mean of the two middle values for
// an even number of samples.
func (s Sample) Median() float64 {
	if len(s.Xs) == 0 {
		return math.NaN()
	}
	s.sorted()
	n := len(s.Xs)
	if n%2 == 1 {
		return s.Xs[n/2]
	}
	return (s.Xs[n/2-1] + s.Xs[n/2]) / 2
}

// Percentile returns the pctile-th value using interpolation method R8 from
// Hyndman and Fan (1996). pctile is capped to [0, 1].
func (s Sample) Percentile(pctile float64) float64 {
	if len(s.Xs) == 0 {
		return 0
	}
	s.sorted()
	if pctile <= 0 {
		return s.Xs[0]
	} else if pctile >= 1 {
		return s.Xs[len(s.Xs)-1]
	}

	n := float64(len(s.Xs))
	kf, frac := math.Modf(1/3.0 + pctile*(n+1/3.0))
	k := int(kf)
	if k <= 0 {
		return s.Xs[0]
	} else if k >= len(s.Xs) {
		return s.Xs[len(s.Xs)-1]
	}
	return s.Xs[k-1] + frac*(s.Xs[k]-s.Xs[k-1])
}

// TopMean returns the mean of the largest fraction of the sample. The number
// of samples skipped is truncated, so the top is never empty for a non-empty
// sample.
func (s Sample) TopMean(fraction float64) float64 {
	if len(s.Xs) == 0 {
		return math.NaN()
	}
	s.sorted()
	skip := int(float64(len(s.Xs)) * (1 - fraction))
	skip = min(max(skip, 0), len(s.Xs)-1)
	return Mean(s.Xs[skip:])
}

// sorted makes a value receiver's view of the data sorted without touching
// the caller's slice.
func (s *Sample) sorted() {
	if !s.Sorted {
		s.Xs = slices.Clone(s.Xs)
		slices.Sort(s.Xs)
		s.Sorted = true
	}
}
