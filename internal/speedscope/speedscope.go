// Package speedscope writes call trees in the speedscope file format
// (https://www.speedscope.app/file-format-schema.json).
package speedscope

import (
	"sort"

	"github.com/NS2CDT/PerfAnalyzer/internal/nodetree"
)

const (
	ValueUnitNanoseconds ValueUnit = "nanoseconds"
	ValueUnitCount       ValueUnit = "count"

	ProfileTypeSampled ProfileType = "sampled"

	schema = "https://www.speedscope.app/file-format-schema.json"
)

type (
	Frame struct {
		Name string `json:"name"`
		// Key is the node id in the originating log.
		Key uint32 `json:"key"`
	}

	SampledProfile struct {
		EndValue     uint64      `json:"endValue"`
		IsMainThread bool        `json:"isMainThread"`
		Name         string      `json:"name"`
		Samples      [][]int     `json:"samples"`
		StartValue   uint64      `json:"startValue"`
		Type         ProfileType `json:"type"`
		Unit         ValueUnit   `json:"unit"`
		Weights      []uint64    `json:"weights"`
	}

	SharedData struct {
		Frames []Frame `json:"frames"`
	}

	ProfileType string
	ValueUnit   string

	Output struct {
		Schema             string            `json:"$schema"`
		ActiveProfileIndex int               `json:"activeProfileIndex"`
		Exporter           string            `json:"exporter"`
		Name               string            `json:"name"`
		Profiles           []*SampledProfile `json:"profiles"`
		Shared             SharedData        `json:"shared"`
	}

	// Thread is one call tree to export as a profile.
	Thread struct {
		Name   string
		IsMain bool
		Root   *nodetree.Node
	}
)

// NewOutput turns each thread's tree into a sampled profile with one sample
// per node that has self time, weighted by it. Frames are shared between
// profiles.
func NewOutput(name string, threads []Thread) Output {
	o := Output{
		Schema:   schema,
		Exporter: "plog",
		Name:     name,
		Profiles: make([]*SampledProfile, 0, len(threads)),
	}
	frameIndex := make(map[uint32]int)

	for i, t := range threads {
		p := &SampledProfile{
			IsMainThread: t.IsMain,
			Name:         t.Name,
			Type:         ProfileTypeSampled,
			Unit:         ValueUnitNanoseconds,
			Samples:      [][]int{},
			Weights:      []uint64{},
		}
		if t.Root != nil {
			p.StartValue = t.Root.StartNS
			p.EndValue = t.Root.EndNS
			var stack []int
			var walk func(n *nodetree.Node)
			walk = func(n *nodetree.Node) {
				key := uint32(n.ID)
				fi, ok := frameIndex[key]
				if !ok {
					fi = len(o.Shared.Frames)
					frameIndex[key] = fi
					o.Shared.Frames = append(o.Shared.Frames, Frame{Name: n.Name, Key: key})
				}
				stack = append(stack, fi)
				if n.SelfTimeNS > 0 {
					p.Samples = append(p.Samples, append([]int(nil), stack...))
					p.Weights = append(p.Weights, n.SelfTimeNS)
				}
				for _, c := range n.Children {
					walk(c)
				}
				stack = stack[:len(stack)-1]
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

// SortSamplesForFlamegraph orders every profile's samples by frame name and
// gives each the same weight, which is what speedscope's left heavy view of
// a flamegraph expects.
func (o *Output) SortSamplesForFlamegraph() {
	frames := o.Shared.Frames
	for _, profile := range o.Profiles {
		SortSamplesAlphabetically(profile.Samples, frames)

		profile.Unit = ValueUnitCount
		for i := 0; i < len(profile.Weights); i++ {
			profile.Weights[i] = 1
		}
	}
}

func SortSamplesAlphabetically(samples [][]int, frames []Frame) {
	sort.Slice(samples, func(i, j int) bool {
		c := 0
		for {
			if len(samples[i]) == c {
				return true
			} else if len(samples[j]) == c {
				return false
			} else {
				if frames[samples[i][c]].Name < frames[samples[j][c]].Name {
					return true
				} else if frames[samples[i][c]].Name > frames[samples[j][c]].Name {
					return false
				} else {
					c += 1
				}
			}
		}
	})
}
