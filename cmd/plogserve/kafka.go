package main

import (
	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
)

type (
	// SummaryKafkaNode is one of the top nodes of a summary.
	SummaryKafkaNode struct {
		Name               string  `json:"name"`
		CallCount          uint64  `json:"call_count"`
		AvgExclusiveTimeMS float64 `json:"avg_exclusive_time_ms"`
		PeakTimeMS         float64 `json:"peak_time_ms"`
	}

	// SummaryKafkaMessage is what we publish for every decoded upload.
	SummaryKafkaMessage struct {
		ID          string                   `json:"plog_id"`
		Environment string                   `json:"environment,omitempty"`
		Version     byte                     `json:"version"`
		Frames      int                      `json:"frames"`
		DurationMS  float64                  `json:"duration_ms"`
		FrameTimes  metrics.FrameTimeSummary `json:"frame_times"`
		TopNodes    []SummaryKafkaNode       `json:"top_nodes"`
		Received    int64                    `json:"received"`
	}
)

func buildSummaryKafkaMessage(s plog.Summary, environment string) SummaryKafkaMessage {
	nodes := make([]SummaryKafkaNode, 0, len(s.TopNodes))
	for _, n := range s.TopNodes {
		nodes = append(nodes, SummaryKafkaNode{
			Name:               n.Name,
			CallCount:          n.CallCount,
			AvgExclusiveTimeMS: n.AvgExclusiveTimeMS,
			PeakTimeMS:         n.PeakTimeMS,
		})
	}
	return SummaryKafkaMessage{
		ID:          s.ID,
		Environment: environment,
		Version:     s.Version,
		Frames:      s.Frames,
		DurationMS:  s.DurationMS,
		FrameTimes:  s.FrameTimes,
		TopNodes:    nodes,
		Received:    s.CreatedAt.Unix(),
	}
}
