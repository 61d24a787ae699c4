package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/rangeutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

type statsCmd struct {
	File    string  `arg:"" type:"existingfile" help:"Path to the plog."`
	Top     int     `help:"Number of nodes to print, negative for all." default:"30"`
	Sort    string  `help:"Sort key." default:"avg_exclusive" enum:"avg_exclusive,total_exclusive,peak_avg,peak,calls"`
	Match   string  `help:"Only nodes whose name contains this, ignoring case."`
	StartMS float64 `name:"start-ms" help:"Only frames ending at or after this time." default:"-1"`
	EndMS   float64 `name:"end-ms" help:"Only frames ending at or before this time." default:"-1"`
}

func (c *statsCmd) Run(g *globals) error {
	l, err := g.open(c.File)
	if err != nil {
		return err
	}

	frames := l.AllFrames()
	if c.StartMS >= 0 || c.EndMS >= 0 {
		start, end := c.StartMS, c.EndMS
		if start < 0 {
			start = 0
		}
		if end < 0 {
			end = float64(l.Duration().Microseconds()) / 1000.0
		}
		frames = l.FramesInRange(start, end)
	}

	stats, err := l.StatsForRange(g.ctx, frames.Start(), frames.End())
	if err != nil {
		return err
	}
	if c.Match != "" {
		ids := l.Names.Match(c.Match)
		matched := stats[:0]
		for _, s := range stats {
			if ids.Contains(s.ID) {
				matched = append(matched, s)
			}
		}
		stats = matched
		if len(stats) == 0 {
			return fmt.Errorf("%w: no node matches %q", errorutil.ErrNoResults, c.Match)
		}
	}

	writeHeader(g.out, l, frames)
	writeStatsTable(g.out, metrics.Top(stats, metrics.SortKey(c.Sort), c.Top))
	return nil
}

func writeHeader(w io.Writer, l *plog.Log, frames rangeutil.Window[*plog.Frame]) {
	ft := l.FrameTimeSummary()
	fmt.Fprintf(w, "version %d, %d frames, %.1fms, %d nodes, cost per call %.3gs\n",
		l.Version, len(l.Frames), float64(l.Duration().Microseconds())/1000.0, l.TotalNodes, l.CostPerCall)
	fmt.Fprintf(w, "frames [%d, %d)\n", frames.Start(), frames.End())
	fmt.Fprintf(w, "frame time avg %.3fms, median %.3fms, top 10%% %.3fms, top 1%% %.3fms, max %.3fms\n",
		ft.AvgMS, ft.MedianMS, ft.Top10AvgMS, ft.Top1AvgMS, ft.MaxMS)

	var idle, gc, children float64
	var records, n int
	var sections [plog.SectionGC + 1]float64
	for _, f := range frames.Slice() {
		for id := range sections {
			sections[id] += timeutil.RawToMS(int64(f.Section(plog.SectionID(id))))
		}
		if t := f.Main(); t != nil {
			idle += t.IdleTimeMS()
			gc += t.GCTimeMS()
			children += timeutil.RawToMS(int64(t.ChildTime(f.Calls)))
			records += len(t.Records(f.Calls))
			n++
		}
	}

	var parts []string
	for id, total := range sections {
		if total > 0 && !frames.Empty() {
			parts = append(parts, fmt.Sprintf("%v %.3fms", plog.SectionID(id), total/float64(frames.Len())))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "section avg %s\n", strings.Join(parts, ", "))
	}
	if n > 0 {
		fmt.Fprintf(w, "main thread idle avg %.3fms, gc avg %.3fms, children avg %.3fms, %.1f records\n",
			idle/float64(n), gc/float64(n), children/float64(n), float64(records)/float64(n))
	}
}

func ms(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func writeStatsTable(w io.Writer, stats []metrics.NodeStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Calls", "Calls/Record", "Avg Excl (ms)", "Total Excl (ms)", "Peak Avg (ms)", "Peak (ms)", "Frames"})
	table.SetBorder(false)
	for _, s := range stats {
		table.Append([]string{
			s.Name,
			strconv.FormatUint(s.CallCount, 10),
			strconv.FormatFloat(s.AvgCallCount, 'f', 2, 64),
			ms(s.AvgExclusiveTimeMS),
			ms(s.TotalExclusiveTimeMS),
			ms(s.PeakAvgTimeMS),
			ms(s.PeakTimeMS),
			strconv.FormatUint(uint64(s.FrameCount), 10),
		})
	}
	table.Render()
}
