package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/httputil"
	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

type (
	PostPlogResponse struct {
		ID      string       `json:"id"`
		Summary plog.Summary `json:"summary"`
	}

	GetStatsResponse struct {
		StartFrame int                 `json:"start_frame"`
		EndFrame   int                 `json:"end_frame"`
		Nodes      []metrics.NodeStats `json:"nodes"`
	}

	GetDiffResponse struct {
		Before string                  `json:"before"`
		After  string                  `json:"after"`
		Nodes  []metrics.NodeStatsDiff `json:"nodes"`
	}
)

func (e *environment) postPlog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	id := uuid.New().String()
	hub.Scope().SetTag("plog_id", id)

	s := sentry.StartSpan(ctx, "storage.write")
	s.Description = "Store raw plog"
	_, err := storageutil.Copy(ctx, e.storage, storageutil.PlogPath(id), r.Body)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	l, err := plog.LoadObject(ctx, e.storage, storageutil.PlogPath(id), plog.WithWorkers(e.config.Workers))
	if err != nil {
		if derr := e.storage.Delete(ctx, storageutil.PlogPath(id)); derr != nil {
			hub.CaptureException(derr)
		}
		if errors.Is(err, errorutil.ErrDataIntegrity) {
			log.Warn().Err(err).Str("plog_id", id).Msg("rejected invalid plog")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	e.logs.add(id, l)

	top := e.config.TopNodes
	if top <= 0 {
		top = defaultTopNodes
	}
	summary := l.Summarize(id, top)

	s = sentry.StartSpan(ctx, "storage.write")
	s.Description = "Store summary"
	err = plog.WriteSummary(ctx, e.storage, summary)
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if e.summariesWriter != nil {
		e.publishSummary(ctx, summary)
	}

	writeJSON(w, r, http.StatusCreated, PostPlogResponse{ID: id, Summary: summary})
}

func (e *environment) publishSummary(ctx context.Context, summary plog.Summary) {
	hub := sentry.GetHubFromContext(ctx)
	b, err := json.Marshal(buildSummaryKafkaMessage(summary, e.config.Environment))
	if err != nil {
		hub.CaptureException(err)
		return
	}
	err = e.summariesWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(summary.ID),
		Value: b,
	})
	if err != nil {
		hub.CaptureException(err)
	}
}

func (e *environment) getSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	id := httprouter.ParamsFromContext(ctx).ByName("plog_id")

	s := sentry.StartSpan(ctx, "storage.read")
	summary, err := plog.ReadSummary(ctx, e.storage, id)
	s.Finish()
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, summary)
}

func (e *environment) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	l, ok := e.loadLog(w, r)
	if !ok {
		return
	}

	frames, err := frameWindow(r, l)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := sentry.StartSpan(ctx, "stats")
	s.Description = "Aggregate frame range"
	stats, err := l.StatsForRange(ctx, frames.Start(), frames.End())
	s.Finish()
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	nodes, err := selectNodes(r, l, stats)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, r, http.StatusOK, GetStatsResponse{
		StartFrame: frames.Start(),
		EndFrame:   frames.End(),
		Nodes:      nodes,
	})
}

func (e *environment) getDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _, ok := httputil.GetRequiredQueryParameters(w, r, "against")
	if !ok {
		return
	}
	after, ok := e.loadLog(w, r)
	if !ok {
		return
	}
	before, err := e.logs.get(ctx, p["against"])
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			http.Error(w, "unknown plog in against", http.StatusNotFound)
			return
		}
		sentry.GetHubFromContext(ctx).CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	diffs := metrics.Diff(before.NodeStats, after.NodeStats)
	top, err := httputil.QueryInt(r, "top", defaultTopNodes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if top >= 0 && top < len(diffs) {
		diffs = diffs[:top]
	}

	writeJSON(w, r, http.StatusOK, GetDiffResponse{
		Before: p["against"],
		After:  httprouter.ParamsFromContext(ctx).ByName("plog_id"),
		Nodes:  diffs,
	})
}
