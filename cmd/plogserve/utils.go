package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/httputil"
	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/rangeutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

const defaultTopNodes = 50

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	hub := sentry.GetHubFromContext(r.Context())

	s := sentry.StartSpan(r.Context(), "json.marshal")
	b, err := json.Marshal(v)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// loadLog returns the log named by the plog_id route parameter. On failure
// the response has been written.
func (e *environment) loadLog(w http.ResponseWriter, r *http.Request) (*plog.Log, bool) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	id := httprouter.ParamsFromContext(ctx).ByName("plog_id")
	hub.Scope().SetTag("plog_id", id)

	l, err := e.logs.get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, storageutil.ErrObjectNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, errorutil.ErrDataIntegrity):
			hub.CaptureException(err)
			w.WriteHeader(http.StatusUnprocessableEntity)
		default:
			hub.CaptureException(err)
			w.WriteHeader(http.StatusInternalServerError)
		}
		return nil, false
	}
	return l, true
}

// frameWindow selects frames either by end time (start_ms, end_ms) or by
// index (start, end). Without parameters it covers the whole log.
func frameWindow(r *http.Request, l *plog.Log) (rangeutil.Window[*plog.Frame], error) {
	startMS, hasStart, err := httputil.QueryFloat(r, "start_ms")
	if err != nil {
		return rangeutil.Window[*plog.Frame]{}, err
	}
	endMS, hasEnd, err := httputil.QueryFloat(r, "end_ms")
	if err != nil {
		return rangeutil.Window[*plog.Frame]{}, err
	}
	if hasStart || hasEnd {
		if !hasEnd {
			endMS = float64(l.Duration().Microseconds()) / 1000.0
		}
		return l.FramesInRange(startMS, endMS), nil
	}

	start, err := httputil.QueryInt(r, "start", 0)
	if err != nil {
		return rangeutil.Window[*plog.Frame]{}, err
	}
	end, err := httputil.QueryInt(r, "end", len(l.Frames))
	if err != nil {
		return rangeutil.Window[*plog.Frame]{}, err
	}
	return l.FrameWindow(start, end), nil
}

func nodeIDParam(r *http.Request) (nametable.NodeID, error) {
	raw := httprouter.ParamsFromContext(r.Context()).ByName("node_id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nametable.NoNode, err
	}
	return nametable.NodeID(id), nil
}

func frameParam(r *http.Request, l *plog.Log) (*plog.Frame, bool) {
	raw := httprouter.ParamsFromContext(r.Context()).ByName("frame")
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 || i >= len(l.Frames) {
		return nil, false
	}
	return l.Frames[i], true
}

// selectNodes filters stats by the match parameter and keeps the top ones by
// the sort parameter.
func selectNodes(r *http.Request, l *plog.Log, stats []metrics.NodeStats) ([]metrics.NodeStats, error) {
	if label := r.URL.Query().Get("match"); label != "" {
		ids := l.Names.Match(label)
		matched := make([]metrics.NodeStats, 0, len(stats))
		for _, s := range stats {
			if ids.Contains(s.ID) {
				matched = append(matched, s)
			}
		}
		stats = matched
	}
	top, err := httputil.QueryInt(r, "top", defaultTopNodes)
	if err != nil {
		return nil, err
	}
	key := metrics.SortKey(r.URL.Query().Get("sort"))
	if key == "" {
		key = metrics.SortAvgExclusive
	}
	return metrics.Top(stats, key, top), nil
}
