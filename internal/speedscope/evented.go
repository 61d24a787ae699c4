package speedscope

import "github.com/NS2CDT/PerfAnalyzer/internal/nodetree"

const (
	EventTypeOpenFrame  EventType = "O"
	EventTypeCloseFrame EventType = "C"

	ProfileTypeEvented ProfileType = "evented"
)

type (
	EventType string

	Event struct {
		Type  EventType `json:"type"`
		Frame int       `json:"frame"`
		At    uint64    `json:"at"`
	}

	EventedProfile struct {
		EndValue   uint64      `json:"endValue"`
		Events     []Event     `json:"events"`
		Name       string      `json:"name"`
		StartValue uint64      `json:"startValue"`
		Type       ProfileType `json:"type"`
		Unit       ValueUnit   `json:"unit"`
	}

	EventedOutput struct {
		Schema             string            `json:"$schema"`
		ActiveProfileIndex int               `json:"activeProfileIndex"`
		Exporter           string            `json:"exporter"`
		Name               string            `json:"name"`
		Profiles           []*EventedProfile `json:"profiles"`
		Shared             SharedData        `json:"shared"`
	}
)

// NewEventedOutput turns each thread's tree into open and close events at
// the laid out start and end of every node, keeping the order calls were
// made in.
func NewEventedOutput(name string, threads []Thread) EventedOutput {
	o := EventedOutput{
		Schema:   schema,
		Exporter: "plog",
		Name:     name,
		Profiles: make([]*EventedProfile, 0, len(threads)),
	}
	frameIndex := make(map[uint32]int)

	for i, t := range threads {
		p := &EventedProfile{
			Name:   t.Name,
			Type:   ProfileTypeEvented,
			Unit:   ValueUnitNanoseconds,
			Events: []Event{},
		}
		if t.Root != nil {
			p.StartValue = t.Root.StartNS
			p.EndValue = t.Root.EndNS
			var walk func(n *nodetree.Node)
			walk = func(n *nodetree.Node) {
				key := uint32(n.ID)
				fi, ok := frameIndex[key]
				if !ok {
					fi = len(o.Shared.Frames)
					frameIndex[key] = fi
					o.Shared.Frames = append(o.Shared.Frames, Frame{Name: n.Name, Key: key})
				}
				p.Events = append(p.Events, Event{Type: EventTypeOpenFrame, Frame: fi, At: n.StartNS})
				for _, c := range n.Children {
					walk(c)
				}
				p.Events = append(p.Events, Event{Type: EventTypeCloseFrame, Frame: fi, At: n.EndNS})
			}
			walk(t.Root)
		}
		if t.IsMain {
			o.ActiveProfileIndex = i
		}
		o.Profiles = append(o.Profiles, p)
	}
	return o
}
