package main

import (
	"net/http"

	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

type (
	GetNodesResponse struct {
		Nodes []metrics.NodeStats `json:"nodes"`
	}

	GetNodeTimeSeriesResponse struct {
		Node            metrics.NodeStats `json:"node"`
		StartFrame      int               `json:"start_frame"`
		EndTimesMS      []float64         `json:"end_times_ms"`
		ExclusiveTimeMS []float64         `json:"exclusive_time_ms"`
	}

	GetNodeFramesResponse struct {
		Node   metrics.NodeStats     `json:"node"`
		Frames []plog.NodeFrameEntry `json:"frames"`
	}
)

func (e *environment) getNodes(w http.ResponseWriter, r *http.Request) {
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	nodes, err := selectNodes(r, l, l.NodeStats)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, r, http.StatusOK, GetNodesResponse{Nodes: nodes})
}

// nodeParam resolves the node_id route parameter to its whole-log stats.
func (e *environment) nodeParam(w http.ResponseWriter, r *http.Request, l *plog.Log) (metrics.NodeStats, bool) {
	id, err := nodeIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return metrics.NodeStats{}, false
	}
	node, ok := l.Node(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return metrics.NodeStats{}, false
	}
	return node, true
}

func (e *environment) getNodeTimeSeries(w http.ResponseWriter, r *http.Request) {
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	node, ok := e.nodeParam(w, r, l)
	if !ok {
		return
	}
	frames, err := frameWindow(r, l)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series := l.NodeTimeSeries(node.ID, frames)
	resp := GetNodeTimeSeriesResponse{
		Node:            node,
		StartFrame:      frames.Start(),
		EndTimesMS:      make([]float64, 0, len(series)),
		ExclusiveTimeMS: make([]float64, 0, len(series)),
	}
	for i, v := range series {
		resp.EndTimesMS = append(resp.EndTimesMS, frames.At(i).EndTimeMS())
		resp.ExclusiveTimeMS = append(resp.ExclusiveTimeMS, timeutil.RawToMS(int64(v)))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (e *environment) getNodeFrames(w http.ResponseWriter, r *http.Request) {
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	node, ok := e.nodeParam(w, r, l)
	if !ok {
		return
	}
	frames, err := frameWindow(r, l)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, r, http.StatusOK, GetNodeFramesResponse{
		Node:   node,
		Frames: l.NodeFrameStats(node.ID, frames, r.URL.Query().Get("thread")),
	})
}
