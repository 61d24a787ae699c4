package metrics

import (
	"math/rand"
	"testing"

	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/testutil"
)

func call(id nametable.NodeID, count, time, exclusive uint32) calltree.CallRecord {
	return calltree.CallRecord{ID: id, Depth: 1, CallCount: count, Time: time, ExclusiveTime: exclusive}
}

func frame(records ...calltree.CallRecord) []calltree.CallRecord {
	return append([]calltree.CallRecord{{}}, records...)
}

func TestAggregatorAddFrame(t *testing.T) {
	agg := NewAggregator(2, nametable.IDSet{false, false, false, true})
	agg.AddFrame(frame(
		call(1, 1, 100, 40),
		call(2, 2, 30, 30),
		call(1, 3, 50, 20),
		call(3, 1, 500, 500),
	))
	agg.AddFrame(frame(
		call(1, 1, 90, 80),
	))
	agg.AddFrame(frame())

	want := map[nametable.NodeID]Accumulator{
		1: {
			NodeCount:          3,
			CallCount:          5,
			TotalTime:          240,
			TotalExclusiveTime: 140,
			FrameCount:         2,
			PeakAvgTime:        80,
			PeakTime:           80,
		},
		2: {
			NodeCount:          1,
			CallCount:          2,
			TotalTime:          30,
			TotalExclusiveTime: 30,
			FrameCount:         1,
			PeakAvgTime:        15,
			PeakTime:           30,
		},
	}

	got := map[nametable.NodeID]Accumulator{}
	agg.Each(func(id nametable.NodeID, acc Accumulator) {
		got[id] = acc
	})
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if _, ok := agg.Accumulator(3); ok {
		t.Fatal("excluded ids must not be aggregated")
	}
}

func TestAggregatorPeakAvgIsPerFrame(t *testing.T) {
	agg := NewAggregator(0, nil)
	// Two records in one frame: 60 exclusive over 4 calls.
	agg.AddFrame(frame(call(5, 1, 50, 50), call(5, 3, 10, 10)))
	acc, ok := agg.Accumulator(5)
	if !ok {
		t.Fatal("expected id 5")
	}
	if acc.PeakAvgTime != 15 {
		t.Fatalf("PeakAvgTime = %v want 15", acc.PeakAvgTime)
	}
}

func TestAggregationIsAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	frames := make([][]calltree.CallRecord, 40)
	for i := range frames {
		f := frame()
		for n := rng.Intn(12); n > 0; n-- {
			time := uint32(rng.Intn(1000))
			f = append(f, call(nametable.NodeID(rng.Intn(8)), uint32(1+rng.Intn(4)), time, uint32(rng.Intn(int(time)+1))))
		}
		frames[i] = f
	}

	aggregate := func(frames [][]calltree.CallRecord) *Aggregator {
		agg := NewAggregator(4, nil)
		for _, f := range frames {
			agg.AddFrame(f)
		}
		return agg
	}
	collect := func(agg *Aggregator) map[nametable.NodeID]Accumulator {
		m := map[nametable.NodeID]Accumulator{}
		agg.Each(func(id nametable.NodeID, acc Accumulator) { m[id] = acc })
		return m
	}

	whole := collect(aggregate(frames))
	for k := 0; k <= len(frames); k += 7 {
		left := aggregate(frames[:k])
		left.Merge(aggregate(frames[k:]))
		if diff := testutil.Diff(collect(left), whole); diff != "" {
			t.Fatalf("split at %d: Result mismatch: got - want +\n%s", k, diff)
		}
	}
}

func TestNewNodeStats(t *testing.T) {
	got := NewNodeStats(4, "Render", Accumulator{
		NodeCount:          4,
		CallCount:          8,
		TotalTime:          2000,
		TotalExclusiveTime: 800,
		FrameCount:         2,
		PeakAvgTime:        150,
		PeakTime:           300,
	})
	want := NodeStats{
		ID:   4,
		Name: "Render",
		Accumulator: Accumulator{
			NodeCount:          4,
			CallCount:          8,
			TotalTime:          2000,
			TotalExclusiveTime: 800,
			FrameCount:         2,
			PeakAvgTime:        150,
			PeakTime:           300,
		},
		TotalTimeMS:          20,
		TotalExclusiveTimeMS: 8,
		AvgTimeMS:            2.5,
		AvgExclusiveTimeMS:   1,
		PeakAvgTimeMS:        1.5,
		PeakTimeMS:           3,
		AvgCallCount:         2,
	}
	if diff := testutil.ApproxDiff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestTop(t *testing.T) {
	stats := []NodeStats{
		{ID: 1, Name: "a", AvgExclusiveTimeMS: 1},
		{ID: 2, Name: "b", AvgExclusiveTimeMS: 3},
		{ID: 3, Name: "c", AvgExclusiveTimeMS: 2},
		{ID: 4, Name: "d", AvgExclusiveTimeMS: 3},
	}
	got := Top(stats, SortAvgExclusive, 3)
	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Name
	}
	if diff := testutil.Diff(names, []string{"b", "d", "c"}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if stats[0].Name != "a" {
		t.Fatal("Top must not reorder its input")
	}
}

func TestDiff(t *testing.T) {
	before := []NodeStats{
		{ID: 1, Name: "Render", AvgExclusiveTimeMS: 2},
		{ID: 2, Name: "Physics", AvgExclusiveTimeMS: 1},
		{ID: 3, Name: "Removed", AvgExclusiveTimeMS: 0.5},
	}
	after := []NodeStats{
		{ID: 7, Name: "Physics", AvgExclusiveTimeMS: 4},
		{ID: 8, Name: "Render", AvgExclusiveTimeMS: 1.5},
		{ID: 9, Name: "Added", AvgExclusiveTimeMS: 0.25},
	}

	got := Diff(before, after)
	want := []NodeStatsDiff{
		{Name: "Physics", Old: &before[1], New: &after[0], DeltaAvgExclusiveTimeMS: 3},
		{Name: "Removed", Old: &before[2], DeltaAvgExclusiveTimeMS: -0.5},
		{Name: "Render", Old: &before[0], New: &after[1], DeltaAvgExclusiveTimeMS: -0.5},
		{Name: "Added", New: &after[2], DeltaAvgExclusiveTimeMS: 0.25},
	}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestSummarizeFrameTimes(t *testing.T) {
	durations := make([]float64, 0, 102)
	durations = append(durations, 0, -1)
	for i := 1; i <= 100; i++ {
		durations = append(durations, float64(i))
	}

	got := SummarizeFrameTimes(durations)
	want := FrameTimeSummary{
		Frames:     100,
		AvgMS:      50.5,
		MedianMS:   50.5,
		Top10AvgMS: 95.5,
		Top1AvgMS:  100,
		MaxMS:      100,
		StdDevMS:   29.011491975882016,
	}
	if diff := testutil.ApproxDiff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	if diff := testutil.Diff(SummarizeFrameTimes(nil), FrameTimeSummary{}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
