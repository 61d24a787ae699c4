package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
)

type speedscopeCmd struct {
	File       string `arg:"" type:"existingfile" help:"Path to the plog."`
	Frame      int    `help:"Index of the frame to export." required:""`
	Out        string `help:"Output file." short:"o" required:""`
	Flamegraph bool   `help:"Sort samples by name and weight them equally." xor:"view"`
	Evented    bool   `help:"Write open and close events instead of samples." xor:"view"`
}

func (c *speedscopeCmd) Run(g *globals) error {
	l, err := g.open(c.File)
	if err != nil {
		return err
	}
	if c.Frame < 0 || c.Frame >= len(l.Frames) {
		return fmt.Errorf("%w: frame %d not in [0, %d)", errorutil.ErrOutOfRange, c.Frame, len(l.Frames))
	}

	f := l.Frames[c.Frame]
	var out interface{}
	if c.Evented {
		out = l.SpeedscopeEvented(f)
	} else {
		o := l.Speedscope(f)
		if c.Flamegraph {
			o.SortSamplesForFlamegraph()
		}
		out = o
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Out, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(g.out, "wrote frame %d to %s\n", c.Frame, c.Out)
	return nil
}
