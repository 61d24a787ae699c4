package plog

import (
	"testing"

	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/speedscope"
	"github.com/NS2CDT/PerfAnalyzer/internal/testutil"
)

func TestCallTrees(t *testing.T) {
	l := load(t, testLogBytes())

	trees := l.CallTrees(l.Frames[0], false)
	if len(trees) != 1 {
		t.Fatalf("expected one tree, got %d", len(trees))
	}
	update := trees[0].Children[0]
	if update.ID != nametable.NodeID(idServer) || len(update.Children) != 3 {
		t.Fatalf("unexpected update node: %+v", update)
	}

	merged := l.CallTrees(l.Frames[0], true)[0].Children[0]
	if len(merged.Children) != 2 {
		t.Fatalf("expected Render records to be merged, got %d children", len(merged.Children))
	}
	if render := merged.Children[0]; render.CallCount != 3 || render.SelfTimeNS != 4000 {
		t.Fatalf("unexpected merged Render node: %+v", render)
	}

	if got := l.CallTrees(l.Frames[2], true); len(got) != 0 {
		t.Fatalf("an empty frame has no trees, got %d", len(got))
	}
}

func TestSpeedscope(t *testing.T) {
	l := load(t, testLogBytes())

	out := l.Speedscope(l.Frames[1])
	if out.Name != "frame 1" || len(out.Profiles) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	p := out.Profiles[0]
	want := &speedscope.SampledProfile{
		Name:         "ServerGame::Update",
		IsMainThread: true,
		StartValue:   0,
		EndValue:     5000,
		Samples:      [][]int{{0}, {0, 1}, {0, 1, 2}},
		Weights:      []uint64{1000, 3500, 500},
		Type:         speedscope.ProfileTypeSampled,
		Unit:         speedscope.ValueUnitNanoseconds,
	}
	if diff := testutil.Diff(p, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestSpeedscopeEvented(t *testing.T) {
	l := load(t, testLogBytes())

	out := l.SpeedscopeEvented(l.Frames[1])
	if len(out.Profiles) != 1 {
		t.Fatalf("expected one profile, got %d", len(out.Profiles))
	}
	p := out.Profiles[0]
	if p.StartValue != 0 || p.EndValue != 5000 {
		t.Fatalf("unexpected bounds: [%d, %d]", p.StartValue, p.EndValue)
	}
	if len(p.Events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(p.Events))
	}
	first, last := p.Events[0], p.Events[len(p.Events)-1]
	if first.Type != speedscope.EventTypeOpenFrame || last.Type != speedscope.EventTypeCloseFrame || first.Frame != last.Frame {
		t.Fatalf("expected the thread to enclose every event, got %+v and %+v", first, last)
	}
}
