package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/logutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
)

type (
	cli struct {
		LogLevel  string `help:"Log level." default:"info" env:"LOG_LEVEL"`
		Quiet     bool   `help:"Only log warnings and errors." short:"q"`
		Workers   int    `help:"Frames attributed concurrently, 0 for one per CPU." env:"PLOG_WORKERS"`
		SentryDSN string `help:"Report errors to this Sentry DSN." env:"SENTRY_DSN"`

		Stats      statsCmd      `cmd:"" help:"Print per-node statistics of a plog."`
		Diff       diffCmd       `cmd:"" help:"Compare the node statistics of two plogs."`
		Speedscope speedscopeCmd `cmd:"" help:"Export one frame in the speedscope format."`
		Upload     uploadCmd     `cmd:"" help:"Store a plog and its summary in a bucket."`
	}

	globals struct {
		ctx     context.Context
		out     io.Writer
		workers int
	}
)

func (g *globals) open(path string) (*plog.Log, error) {
	return plog.Open(g.ctx, path, plog.WithWorkers(g.workers))
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("plogdump"),
		kong.Description("Inspect profiler logs."),
		kong.UsageOnError(),
	)

	logutil.ConfigureLogger()
	if err := logutil.SetLevel(c.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	if c.Quiet {
		log.Logger = log.Sample(logutil.LevelSampler{Level: zerolog.WarnLevel})
	}

	if c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: c.SentryDSN}); err != nil {
			log.Fatal().Err(err).Msg("can't initialize sentry")
		}
	}

	err := kctx.Run(&globals{
		ctx:     context.Background(),
		out:     os.Stdout,
		workers: c.Workers,
	})
	if err != nil {
		if !errorutil.IsInputError(err) {
			sentry.CaptureException(err)
			sentry.Flush(2 * time.Second)
		}
		log.Error().Err(err).Str("command", kctx.Command()).Msg("command failed")
		os.Exit(1)
	}
}
