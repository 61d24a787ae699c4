package plog

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
)

// statsChunk is the number of frames aggregated per task.
const statsChunk = 256

func (l *Log) clampRange(start, end int) (int, int) {
	start = min(max(start, 0), len(l.Frames))
	end = min(max(end, start), len(l.Frames))
	return start, end
}

// AggregateRange accumulates the frames [start, end) in parallel chunks.
// Network ids are excluded.
func (l *Log) AggregateRange(ctx context.Context, start, end int) (*metrics.Aggregator, error) {
	start, end = l.clampRange(start, end)
	capacity := l.Names.Cap()

	chunks := (end - start + statsChunk - 1) / statsChunk
	aggs := make([]*metrics.Aggregator, chunks)

	workers := l.workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := 0; c < chunks; c++ {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			agg := metrics.NewAggregator(capacity, l.networkIDs)
			from := start + c*statsChunk
			to := min(from+statsChunk, end)
			for _, f := range l.Frames[from:to] {
				agg.AddFrame(f.Calls)
			}
			aggs[c] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := metrics.NewAggregator(capacity, l.networkIDs)
	for _, agg := range aggs {
		total.Merge(agg)
	}
	return total, nil
}

// StatsForRange returns per-node statistics over the frames [start, end),
// ordered by node id.
func (l *Log) StatsForRange(ctx context.Context, start, end int) ([]metrics.NodeStats, error) {
	agg, err := l.AggregateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return agg.Stats(l.Names), nil
}

// MatchingNodes returns the whole-log statistics of every node whose name
// contains label, ignoring case.
func (l *Log) MatchingNodes(label string) []metrics.NodeStats {
	ids := l.Names.Match(label)
	var matched []metrics.NodeStats
	for _, s := range l.NodeStats {
		if ids.Contains(s.ID) {
			matched = append(matched, s)
		}
	}
	return matched
}

// IsNetworkNode reports whether id belongs to the network statistics
// namespace.
func (l *Log) IsNetworkNode(id nametable.NodeID) bool {
	return l.networkIDs.Contains(id)
}
