package plog

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/NS2CDT/PerfAnalyzer/internal/bytestream"
	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/logutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
)

type (
	options struct {
		workers    int
		bufferSize int
		logger     *zerolog.Logger
	}

	// Option configures Load.
	Option func(*options)
)

// WithWorkers bounds the number of frames attributed concurrently. Values
// below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBufferSize sets the size of the decode window.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithLogger replaces the global logger for load diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

func newOptions(opts []Option) options {
	o := options{bufferSize: bytestream.DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = &log.Logger
	}
	return o
}

// Load decodes the first size bytes of src. The whole stream is decoded
// before Load returns; on any error, including cancellation of ctx, no Log is
// returned.
func Load(ctx context.Context, src io.Reader, size int64, opts ...Option) (*Log, error) {
	o := newOptions(opts)
	logger := o.logger.With().Str("load_id", uuid.New().String()).Logger()

	span := sentry.StartSpan(ctx, "plog.load")
	defer span.Finish()
	ctx = span.Context()

	r := bytestream.NewReader(src, size, bytestream.WithBufferSize(o.bufferSize), bytestream.WithContext(ctx))
	defer r.Close()

	start := time.Now()
	parse := span.StartChild("plog.parse")
	l, err := decode(ctx, r)
	parse.Finish()
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Dur("duration", time.Since(start)).
		Int("frames", len(l.Frames)).
		Int("names", l.Names.Len()).
		Int64("bytes", size).
		Msg("plog parsed")

	start = time.Now()
	attribute := span.StartChild("plog.attribute")
	err = attributeFrames(ctx, l, o.workers)
	attribute.Finish()
	if err != nil {
		return nil, err
	}
	logger.Debug().Dur("duration", time.Since(start)).Int("workers", o.workers).Msg("plog frames attributed")
	logClampedFrames(logger, l.Frames)

	start = time.Now()
	stats := span.StartChild("plog.stats")
	l.workers = o.workers
	l.NodeStats, err = l.StatsForRange(ctx, 0, len(l.Frames))
	stats.Finish()
	if err != nil {
		return nil, err
	}
	l.nodeLookup = make(map[nametable.NodeID]int, len(l.NodeStats))
	for i, s := range l.NodeStats {
		l.nodeLookup[s.ID] = i
	}
	logger.Debug().Dur("duration", time.Since(start)).Int("nodes", len(l.NodeStats)).Msg("plog stats computed")

	return l, nil
}

// clampSampleEvery is the share of clamped frames logged individually.
const clampSampleEvery = 100

func logClampedFrames(logger zerolog.Logger, frames []*Frame) {
	frameLog := logger.Sample(&logutil.FrameSampler{Level: zerolog.WarnLevel, Every: clampSampleEvery})
	clamped := 0
	for _, f := range frames {
		if f.Clamped == 0 {
			continue
		}
		clamped++
		frameLog.Debug().Int("frame", f.Index).Int("clamped", f.Clamped).Msg("frame attribution clamped")
	}
	if clamped > 0 {
		logger.Info().Int("frames", clamped).Msg("plog has frames with clamped attribution")
	}
}

// Open loads the plog file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Load(ctx, f, fi.Size(), opts...)
}

// LoadObject loads a plog stored under name in h.
func LoadObject(ctx context.Context, h storageutil.ObjectHandler, name string, opts ...Option) (*Log, error) {
	rc, err := h.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Load(ctx, rc, rc.Size(), opts...)
}

func decode(ctx context.Context, r *bytestream.Reader) (*Log, error) {
	version, err := r.ReadByte()
	if err != nil {
		return nil, &DecodeError{Offset: 0, Frame: -1, Err: err}
	}
	cost, err := r.ReadVarInt64()
	if err != nil {
		return nil, &DecodeError{Offset: 1, Frame: -1, Err: err}
	}

	d := newDecoder(ctx, r)
	if err := d.run(); err != nil {
		return nil, err
	}

	l := &Log{
		Version:     version,
		CostPerCall: float64(cost) * 1e-12,
		StartTime:   d.baseline,
		Names:       d.names,
		Frames:      d.frames,
		Network:     d.network,
		networkIDs:  d.names.Select(nametable.IsNetworkName),
	}
	l.WellKnown = calltree.ResolveWellKnown(l.Names)

	for _, f := range l.Frames {
		l.TotalNodes += f.CallCount()
	}
	if l.TotalNodes > 0 && l.WellKnown.Thread == nametable.NoNode {
		return nil, fmt.Errorf("%w: %q", ErrMissingWellKnownNode, calltree.ThreadNodeName)
	}
	return l, nil
}

// attributeFrames runs time attribution over every frame. Frames own their
// records, so each task only touches its own frame.
func attributeFrames(ctx context.Context, l *Log, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range l.Frames {
		f := f
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := calltree.Attribute(f.Calls, l.WellKnown, l.Names)
			if err != nil {
				return fmt.Errorf("frame %d: %w", f.Index, err)
			}
			f.Threads = res.Threads
			f.MainThread = res.MainThread
			f.NetTime = res.NetTime
			f.Clamped = res.Clamped
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
