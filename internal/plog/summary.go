package plog

import (
	"context"
	"time"

	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

// warmupFrames is the number of leading frames left out of frame time
// summaries.
const warmupFrames = 2

// Summary is the compact, storable digest of a log.
type Summary struct {
	ID          string                   `json:"id"`
	Version     byte                     `json:"version"`
	CostPerCall float64                  `json:"cost_per_call"`
	Frames      int                      `json:"frames"`
	TotalNodes  int                      `json:"total_nodes"`
	DurationMS  float64                  `json:"duration_ms"`
	FrameTimes  metrics.FrameTimeSummary `json:"frame_times"`
	TopNodes    []metrics.NodeStats      `json:"top_nodes"`
	Network     NetworkSummary           `json:"network"`
	CreatedAt   time.Time                `json:"created_at"`
}

// FrameTimeSummary summarizes frame durations, skipping the first frames of
// the log and frames without calls.
func (l *Log) FrameTimeSummary() metrics.FrameTimeSummary {
	var durations []float64
	for i, f := range l.Frames {
		if i < warmupFrames || f.CallCount() == 0 {
			continue
		}
		durations = append(durations, f.TimeMS())
	}
	return metrics.SummarizeFrameTimes(durations)
}

// Summarize builds the digest of l with the top nodes by average exclusive
// time.
func (l *Log) Summarize(id string, top int) Summary {
	return Summary{
		ID:          id,
		Version:     l.Version,
		CostPerCall: l.CostPerCall,
		Frames:      len(l.Frames),
		TotalNodes:  l.TotalNodes,
		DurationMS:  timeutil.MicrosToMS(l.Duration().Microseconds()),
		FrameTimes:  l.FrameTimeSummary(),
		TopNodes:    metrics.Top(l.NodeStats, metrics.SortAvgExclusive, top),
		Network:     l.Network,
		CreatedAt:   time.Now().UTC(),
	}
}

// WriteSummary stores s compressed under its id.
func WriteSummary(ctx context.Context, h storageutil.ObjectHandler, s Summary) error {
	return storageutil.CompressedWrite(ctx, h, storageutil.SummaryPath(s.ID), s)
}

// ReadSummary reads the summary stored for id.
func ReadSummary(ctx context.Context, h storageutil.ObjectHandler, id string) (Summary, error) {
	var s Summary
	err := storageutil.UnmarshalCompressed(ctx, h, storageutil.SummaryPath(id), &s)
	return s, err
}
