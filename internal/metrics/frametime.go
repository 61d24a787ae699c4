package metrics

import (
	"github.com/NS2CDT/PerfAnalyzer/internal/quantile"
)

// FrameTimeSummary describes the distribution of frame durations in
// milliseconds.
type FrameTimeSummary struct {
	Frames     int     `json:"frames"`
	AvgMS      float64 `json:"avg_ms"`
	MedianMS   float64 `json:"median_ms"`
	Top10AvgMS float64 `json:"top_10_avg_ms"`
	Top1AvgMS  float64 `json:"top_1_avg_ms"`
	MaxMS      float64 `json:"max_ms"`
	StdDevMS   float64 `json:"std_dev_ms"`
}

// SummarizeFrameTimes summarizes durations given in milliseconds. Non-positive
// durations are ignored. The zero summary is returned when nothing remains.
func SummarizeFrameTimes(durationsMS []float64) FrameTimeSummary {
	var s quantile.Sample
	for _, d := range durationsMS {
		if d > 0 {
			s.Add(d)
		}
	}
	if s.Len() == 0 {
		return FrameTimeSummary{}
	}
	s.Sort()
	_, hi := s.Bounds()
	return FrameTimeSummary{
		Frames:     s.Len(),
		AvgMS:      s.Mean(),
		MedianMS:   s.Median(),
		Top10AvgMS: s.TopMean(0.10),
		Top1AvgMS:  s.TopMean(0.01),
		MaxMS:      hi,
		StdDevMS:   s.StdDev(),
	}
}
