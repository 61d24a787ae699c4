// Package metrics reduces the attributed call records of a range of frames to
// per-node statistics.
package metrics

import (
	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
)

// Accumulator holds the raw per-node totals of a frame range. Every field
// combines associatively, so ranges can be aggregated independently and
// merged.
type Accumulator struct {
	NodeCount          uint64 `json:"node_count"`
	CallCount          uint64 `json:"call_count"`
	TotalTime          uint64 `json:"total_time"`
	TotalExclusiveTime uint64 `json:"total_exclusive_time"`
	FrameCount         uint32 `json:"frame_count"`
	// PeakAvgTime is the largest per-frame exclusive time per call.
	PeakAvgTime float64 `json:"peak_avg_time"`
	// PeakTime is the largest exclusive time of a single record.
	PeakTime uint32 `json:"peak_time"`
}

func (a *Accumulator) Merge(b Accumulator) {
	a.NodeCount += b.NodeCount
	a.CallCount += b.CallCount
	a.TotalTime += b.TotalTime
	a.TotalExclusiveTime += b.TotalExclusiveTime
	a.FrameCount += b.FrameCount
	a.PeakAvgTime = max(a.PeakAvgTime, b.PeakAvgTime)
	a.PeakTime = max(a.PeakTime, b.PeakTime)
}

type frameTotals struct {
	exclusive uint64
	calls     uint64
}

// Aggregator accumulates statistics frame by frame. It is not safe for
// concurrent use; aggregate disjoint ranges with separate Aggregators and
// Merge them.
type Aggregator struct {
	nodes   []Accumulator
	seen    []bool
	frame   []frameTotals
	touched []nametable.NodeID
	exclude nametable.IDSet
}

// NewAggregator returns an Aggregator sized for ids below capacity. Records
// whose id is in exclude are ignored.
func NewAggregator(capacity int, exclude nametable.IDSet) *Aggregator {
	return &Aggregator{
		nodes:   make([]Accumulator, capacity),
		seen:    make([]bool, capacity),
		frame:   make([]frameTotals, capacity),
		exclude: exclude,
	}
}

func (a *Aggregator) grow(id nametable.NodeID) {
	if int(id) < len(a.nodes) {
		return
	}
	n := max(int(id)+1, 2*len(a.nodes))
	nodes := make([]Accumulator, n)
	copy(nodes, a.nodes)
	seen := make([]bool, n)
	copy(seen, a.seen)
	frame := make([]frameTotals, n)
	copy(frame, a.frame)
	a.nodes, a.seen, a.frame = nodes, seen, frame
}

// AddFrame accumulates every record of a frame except the sentinel at index
// 0.
func (a *Aggregator) AddFrame(calls []calltree.CallRecord) {
	for i := 1; i < len(calls); i++ {
		r := &calls[i]
		if a.exclude.Contains(r.ID) {
			continue
		}
		a.grow(r.ID)

		acc := &a.nodes[r.ID]
		acc.NodeCount++
		acc.CallCount += uint64(r.CallCount)
		acc.TotalTime += uint64(r.Time)
		acc.TotalExclusiveTime += uint64(r.ExclusiveTime)
		acc.PeakTime = max(acc.PeakTime, r.ExclusiveTime)
		a.seen[r.ID] = true

		ft := &a.frame[r.ID]
		if ft.calls == 0 {
			a.touched = append(a.touched, r.ID)
		}
		ft.exclusive += uint64(r.ExclusiveTime)
		ft.calls += uint64(max(r.CallCount, 1))
	}

	for _, id := range a.touched {
		ft := a.frame[id]
		acc := &a.nodes[id]
		acc.FrameCount++
		acc.PeakAvgTime = max(acc.PeakAvgTime, float64(ft.exclusive)/float64(ft.calls))
		a.frame[id] = frameTotals{}
	}
	a.touched = a.touched[:0]
}

// Merge folds the totals of other into a.
func (a *Aggregator) Merge(other *Aggregator) {
	for id, ok := range other.seen {
		if !ok {
			continue
		}
		a.grow(nametable.NodeID(id))
		a.nodes[id].Merge(other.nodes[id])
		a.seen[id] = true
	}
}

// Accumulator returns the totals for id and whether it occurred at all.
func (a *Aggregator) Accumulator(id nametable.NodeID) (Accumulator, bool) {
	if int(id) >= len(a.seen) || !a.seen[id] {
		return Accumulator{}, false
	}
	return a.nodes[id], true
}

// Each calls fn for every id that occurred, in increasing id order.
func (a *Aggregator) Each(fn func(id nametable.NodeID, acc Accumulator)) {
	for id, ok := range a.seen {
		if ok {
			fn(nametable.NodeID(id), a.nodes[id])
		}
	}
}

// Stats returns the statistics of every id that occurred, named from names.
func (a *Aggregator) Stats(names *nametable.Table) []NodeStats {
	var stats []NodeStats
	a.Each(func(id nametable.NodeID, acc Accumulator) {
		stats = append(stats, NewNodeStats(id, names.NameOrID(id), acc))
	})
	return stats
}
