// Package calltree reconstructs the implicit call tree of a frame from its
// flat, pre-order array of call records and attributes time to each node.
package calltree

import (
	"fmt"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

// ErrStructuralInconsistency is returned when a record enters a depth more
// than one level below its predecessor.
var ErrStructuralInconsistency = fmt.Errorf("%w: call depth skips a level", errorutil.ErrDataIntegrity)

// CallRecord is one node of a frame's call tree. Records are stored in
// pre-order; the parent of a record is the nearest preceding record one
// level shallower. Times are in raw profiler units.
type CallRecord struct {
	ID            nametable.NodeID `json:"id"`
	Depth         int32            `json:"depth"`
	CallCount     uint32           `json:"call_count"`
	Time          uint32           `json:"time"`
	ExclusiveTime uint32           `json:"exclusive_time"`
}

func (r CallRecord) TimeMS() float64 {
	return timeutil.RawToMS(int64(r.Time))
}

func (r CallRecord) ExclusiveTimeMS() float64 {
	return timeutil.RawToMS(int64(r.ExclusiveTime))
}

// StructureError describes the record at which the depth sequence of a frame
// stopped describing a tree.
type StructureError struct {
	Index       int
	Depth       int
	ParentDepth int
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("calltree: record %d at depth %d follows a record at depth %d", e.Index, e.Depth, e.ParentDepth)
}

func (e *StructureError) Unwrap() error {
	return ErrStructuralInconsistency
}

// HasChildren reports whether the record at i has at least one child.
func HasChildren(calls []CallRecord, i int) bool {
	return i+1 < len(calls) && calls[i+1].Depth > calls[i].Depth
}

// ChildIndexes returns the indexes of the direct children of the record at i.
func ChildIndexes(calls []CallRecord, i int) []int {
	var children []int
	depth := calls[i].Depth
	for j := i + 1; j < len(calls) && calls[j].Depth > depth; j++ {
		if calls[j].Depth == depth+1 {
			children = append(children, j)
		}
	}
	return children
}

// SubtreeEnd returns one past the index of the last descendant of the record
// at i.
func SubtreeEnd(calls []CallRecord, i int) int {
	depth := calls[i].Depth
	j := i + 1
	for j < len(calls) && calls[j].Depth > depth {
		j++
	}
	return j
}

// NodeIndex returns the index of the first record with the given id in
// [start, end), or -1.
func NodeIndex(calls []CallRecord, id nametable.NodeID, start, end int) int {
	start = max(start, 0)
	end = min(end, len(calls))
	for i := start; i < end; i++ {
		if calls[i].ID == id {
			return i
		}
	}
	return -1
}

// PeakIndex returns the index of the record with the largest exclusive time,
// or -1 when no record has any. Index 0 is never considered.
func PeakIndex(calls []CallRecord) int {
	peak := -1
	var best uint32
	for i := 1; i < len(calls); i++ {
		if calls[i].ExclusiveTime > best {
			best = calls[i].ExclusiveTime
			peak = i
		}
	}
	return peak
}
