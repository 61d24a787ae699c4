package main

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/nodetree"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
)

type (
	GetFramesResponse struct {
		Frames []*plog.Frame `json:"frames"`
	}

	GetFrameCallTreeResponse struct {
		Frame     *plog.Frame                            `json:"frame"`
		CallTrees []*nodetree.Node                       `json:"call_trees"`
		Functions map[nametable.NodeID]nodetree.Function `json:"functions"`
	}
)

func (e *environment) getFrames(w http.ResponseWriter, r *http.Request) {
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	frames, err := frameWindow(r, l)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, r, http.StatusOK, GetFramesResponse{Frames: frames.Slice()})
}

func (e *environment) getFrameCallTree(w http.ResponseWriter, r *http.Request) {
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	f, ok := frameParam(r, l)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s := sentry.StartSpan(r.Context(), "calltree")
	s.Description = "Build call trees"
	trees := l.CallTrees(f, r.URL.Query().Get("merge") == "1")
	functions := make(map[nametable.NodeID]nodetree.Function)
	for _, t := range trees {
		t.CollectFunctions(functions)
	}
	s.Finish()

	writeJSON(w, r, http.StatusOK, GetFrameCallTreeResponse{
		Frame:     f,
		CallTrees: trees,
		Functions: functions,
	})
}

func (e *environment) getFrameSpeedscope(w http.ResponseWriter, r *http.Request) {
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	f, ok := frameParam(r, l)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s := sentry.StartSpan(r.Context(), "speedscope")
	s.Description = "Export frame"
	var out interface{}
	switch r.URL.Query().Get("view") {
	case "evented":
		out = l.SpeedscopeEvented(f)
	case "flamegraph":
		o := l.Speedscope(f)
		o.SortSamplesForFlamegraph()
		out = o
	default:
		out = l.Speedscope(f)
	}
	s.Finish()

	writeJSON(w, r, http.StatusOK, out)
}
