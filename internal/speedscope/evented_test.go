package speedscope

import (
	"testing"

	"github.com/NS2CDT/PerfAnalyzer/internal/nodetree"
	"github.com/NS2CDT/PerfAnalyzer/internal/testutil"
)

func TestNewEventedOutput(t *testing.T) {
	root := &nodetree.Node{
		ID: 1, Name: "Thread", StartNS: 0, EndNS: 100,
		Children: []*nodetree.Node{
			{ID: 2, Name: "Physics", StartNS: 0, EndNS: 40},
			{ID: 3, Name: "Render", StartNS: 40, EndNS: 90},
		},
	}

	got := NewEventedOutput("frame 1", []Thread{{Name: "main", IsMain: true, Root: root}})
	want := EventedOutput{
		Schema:   schema,
		Exporter: "plog",
		Name:     "frame 1",
		Profiles: []*EventedProfile{
			{
				Name:       "main",
				StartValue: 0,
				EndValue:   100,
				Type:       ProfileTypeEvented,
				Unit:       ValueUnitNanoseconds,
				Events: []Event{
					{Type: EventTypeOpenFrame, Frame: 0, At: 0},
					{Type: EventTypeOpenFrame, Frame: 1, At: 0},
					{Type: EventTypeCloseFrame, Frame: 1, At: 40},
					{Type: EventTypeOpenFrame, Frame: 2, At: 40},
					{Type: EventTypeCloseFrame, Frame: 2, At: 90},
					{Type: EventTypeCloseFrame, Frame: 0, At: 100},
				},
			},
		},
		Shared: SharedData{
			Frames: []Frame{
				{Name: "Thread", Key: 1},
				{Name: "Physics", Key: 2},
				{Name: "Render", Key: 3},
			},
		},
	}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
