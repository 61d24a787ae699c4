package metrics

import (
	"cmp"
	"slices"

	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

// NodeStats are the statistics of one node over a frame range. Times are in
// milliseconds; the raw totals are kept in the embedded Accumulator.
type NodeStats struct {
	ID   nametable.NodeID `json:"id"`
	Name string           `json:"name"`
	Accumulator

	TotalTimeMS          float64 `json:"total_time_ms"`
	TotalExclusiveTimeMS float64 `json:"total_exclusive_time_ms"`
	AvgTimeMS            float64 `json:"avg_time_ms"`
	AvgExclusiveTimeMS   float64 `json:"avg_exclusive_time_ms"`
	PeakAvgTimeMS        float64 `json:"peak_avg_time_ms"`
	PeakTimeMS           float64 `json:"peak_time_ms"`
	// AvgCallCount is the number of calls folded into each record.
	AvgCallCount float64 `json:"avg_call_count"`
}

func NewNodeStats(id nametable.NodeID, name string, acc Accumulator) NodeStats {
	s := NodeStats{
		ID:                   id,
		Name:                 name,
		Accumulator:          acc,
		TotalTimeMS:          timeutil.RawToMS(int64(acc.TotalTime)),
		TotalExclusiveTimeMS: timeutil.RawToMS(int64(acc.TotalExclusiveTime)),
		PeakAvgTimeMS:        timeutil.RawFloatToMS(acc.PeakAvgTime),
		PeakTimeMS:           timeutil.RawToMS(int64(acc.PeakTime)),
	}
	if acc.CallCount != 0 {
		s.AvgTimeMS = s.TotalTimeMS / float64(acc.CallCount)
		s.AvgExclusiveTimeMS = s.TotalExclusiveTimeMS / float64(acc.CallCount)
	}
	if acc.NodeCount != 0 {
		s.AvgCallCount = float64(acc.CallCount) / float64(acc.NodeCount)
	}
	return s
}

// SortKey selects the field stats are ordered by.
type SortKey string

const (
	SortAvgExclusive   SortKey = "avg_exclusive"
	SortTotalExclusive SortKey = "total_exclusive"
	SortPeakAvg        SortKey = "peak_avg"
	SortPeak           SortKey = "peak"
	SortCalls          SortKey = "calls"
)

func (k SortKey) value(s NodeStats) float64 {
	switch k {
	case SortTotalExclusive:
		return s.TotalExclusiveTimeMS
	case SortPeakAvg:
		return s.PeakAvgTimeMS
	case SortPeak:
		return s.PeakTimeMS
	case SortCalls:
		return float64(s.CallCount)
	default:
		return s.AvgExclusiveTimeMS
	}
}

// SortDescending orders stats by key, largest first. Ties keep id order.
func SortDescending(stats []NodeStats, key SortKey) {
	slices.SortStableFunc(stats, func(a, b NodeStats) int {
		if c := cmp.Compare(key.value(b), key.value(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Top returns the n largest stats by key without modifying stats.
func Top(stats []NodeStats, key SortKey, n int) []NodeStats {
	top := slices.Clone(stats)
	SortDescending(top, key)
	if n >= 0 && n < len(top) {
		top = top[:n]
	}
	return top
}
