package main

import (
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
)

type diffCmd struct {
	Old   string `arg:"" type:"existingfile" help:"Baseline plog."`
	New   string `arg:"" type:"existingfile" help:"Plog to compare."`
	Top   int    `help:"Number of nodes to print, negative for all." default:"30"`
	Match string `help:"Only nodes whose name contains this, ignoring case."`
}

func (c *diffCmd) Run(g *globals) error {
	before, err := g.open(c.Old)
	if err != nil {
		return err
	}
	after, err := g.open(c.New)
	if err != nil {
		return err
	}

	diffs := metrics.Diff(before.NodeStats, after.NodeStats)
	table := tablewriter.NewWriter(g.out)
	table.SetHeader([]string{"Name", "Old Avg Excl (ms)", "New Avg Excl (ms)", "Delta (ms)"})
	table.SetBorder(false)

	label := strings.ToLower(c.Match)
	printed := 0
	for _, d := range diffs {
		if c.Top >= 0 && printed == c.Top {
			break
		}
		if label != "" && !strings.Contains(strings.ToLower(d.Name), label) {
			continue
		}
		old, cur := "-", "-"
		if d.Old != nil {
			old = ms(d.Old.AvgExclusiveTimeMS)
		}
		if d.New != nil {
			cur = ms(d.New.AvgExclusiveTimeMS)
		}
		table.Append([]string{d.Name, old, cur, ms(d.DeltaAvgExclusiveTimeMS)})
		printed++
	}
	table.Render()
	return nil
}
