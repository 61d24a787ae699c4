package metrics

import (
	"cmp"
	"slices"
)

// NodeStatsDiff pairs the statistics of a node in two logs. Nodes only
// present in one log have a nil side.
type NodeStatsDiff struct {
	Name string     `json:"name"`
	Old  *NodeStats `json:"old,omitempty"`
	New  *NodeStats `json:"new,omitempty"`
	// DeltaAvgExclusiveTimeMS is new minus old; a missing side counts as 0.
	DeltaAvgExclusiveTimeMS float64 `json:"delta_avg_exclusive_time_ms"`
}

// Diff matches before and after by node name. Ids are not stable across logs.
// The result is ordered by the absolute delta, largest first.
func Diff(before, after []NodeStats) []NodeStatsDiff {
	byName := make(map[string]int, len(before))
	diffs := make([]NodeStatsDiff, 0, len(before))
	for i := range before {
		byName[before[i].Name] = len(diffs)
		diffs = append(diffs, NodeStatsDiff{Name: before[i].Name, Old: &before[i]})
	}
	for i := range after {
		if j, ok := byName[after[i].Name]; ok {
			diffs[j].New = &after[i]
			continue
		}
		diffs = append(diffs, NodeStatsDiff{Name: after[i].Name, New: &after[i]})
	}

	for i := range diffs {
		d := &diffs[i]
		var o, n float64
		if d.Old != nil {
			o = d.Old.AvgExclusiveTimeMS
		}
		if d.New != nil {
			n = d.New.AvgExclusiveTimeMS
		}
		d.DeltaAvgExclusiveTimeMS = n - o
	}

	slices.SortStableFunc(diffs, func(a, b NodeStatsDiff) int {
		if c := cmp.Compare(abs(b.DeltaAvgExclusiveTimeMS), abs(a.DeltaAvgExclusiveTimeMS)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return diffs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
