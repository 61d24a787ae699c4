package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/NS2CDT/PerfAnalyzer/internal/httputil"
	"github.com/NS2CDT/PerfAnalyzer/internal/logutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
)

type environment struct {
	config ServiceConfig

	storage      objectStore
	closeStorage func() error
	logs         *logCache

	summariesWriter *kafka.Writer
}

var release string

func newEnvironment(ctx context.Context) (*environment, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	e := environment{config: config}

	e.storage, e.closeStorage, err = newStorage(ctx, config)
	if err != nil {
		return nil, err
	}
	e.logs = newLogCache(e.storage, config.CacheSize, plog.WithWorkers(config.Workers))

	if len(config.SummaryKafkaBrokers) > 0 {
		e.summariesWriter = &kafka.Writer{
			Addr:         kafka.TCP(config.SummaryKafkaBrokers...),
			Async:        true,
			Balancer:     kafka.CRC32Balancer{},
			BatchSize:    10,
			Compression:  kafka.Lz4,
			ReadTimeout:  3 * time.Second,
			Topic:        config.SummaryKafkaTopic,
			WriteTimeout: 3 * time.Second,
		}
	}
	return &e, nil
}

func (e *environment) shutdown() {
	if e.closeStorage != nil {
		if err := e.closeStorage(); err != nil {
			sentry.CaptureException(err)
		}
	}
	if e.summariesWriter != nil {
		if err := e.summariesWriter.Close(); err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodPost, "/plogs", e.postPlog},
		{http.MethodGet, "/plogs/:plog_id/summary", e.getSummary},
		{http.MethodGet, "/plogs/:plog_id/stats", e.getStats},
		{http.MethodGet, "/plogs/:plog_id/diff", e.getDiff},
		{http.MethodGet, "/plogs/:plog_id/frames", e.getFrames},
		{http.MethodGet, "/plogs/:plog_id/frames/:frame/calltree", e.getFrameCallTree},
		{http.MethodGet, "/plogs/:plog_id/frames/:frame/speedscope", e.getFrameSpeedscope},
		{http.MethodGet, "/plogs/:plog_id/nodes", e.getNodes},
		{http.MethodGet, "/plogs/:plog_id/nodes/:node_id/timeseries", e.getNodeTimeSeries},
		{http.MethodGet, "/plogs/:plog_id/nodes/:node_id/frames", e.getNodeFrames},
		{http.MethodGet, "/health", e.getHealth},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.DecompressPayload(route.handler)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	logutil.ConfigureLogger()

	env, err := newEnvironment(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}
	if err := logutil.SetLevel(env.config.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   env.config.SentryDSN,
		EnableTracing:         true,
		Environment:           env.config.Environment,
		Release:               release,
		TracesSampleRate:      1.0,
		BeforeSendTransaction: httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + env.config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().Str("port", env.config.Port).Str("storage", env.config.Storage).Msg("plogserve listening")
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
