package plog

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"

	"github.com/NS2CDT/PerfAnalyzer/internal/bytestream"
	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/testutil"
)

const (
	idThread uint32 = iota + 1
	idServer
	idRender
	idIdle
	idHeapAlloc
	idClient
	idMessage
	idClass
	idField
	idClassEnd
	idNetworkEnd
	idLabel

	idPhysics uint32 = 0x12345
)

func load(t *testing.T, data []byte, opts ...Option) *Log {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	l, err := Load(context.Background(), bytes.NewReader(data), int64(len(data)), opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l
}

// testLogBytes builds a log with one placeholder and four real frames. The
// third frame has no calls.
func testLogBytes() []byte {
	e := testutil.NewEncoder(3, 250)
	e.Name(idThread, calltree.ThreadNodeName).
		Name(idServer, calltree.ServerUpdateNodeName).
		Name(idRender, "Render").
		Name(idIdle, "ServerGame::Idle").
		Name(idHeapAlloc, calltree.HeapAllocateNodeName).
		Name(idClient, "client-0").
		Name(idMessage, "message-Move").
		Name(idClass, "class-Player").
		Name(idField, "field-origin").
		Name(idClassEnd, "class-end").
		Name(idNetworkEnd, "network-end").
		Name(idLabel, "round start").
		Name(idPhysics, "Physics::Step")

	e.Frame(1_000_000).
		Enter(idThread, 1, 5).Leave().
		Markers(extensionMarkers, testutil.MarkerRecord{Kind: uint32(MarkerFocusGained), Timestamp: 1_000_500})

	e.Frame(1_016_000, 100, 200).
		Enter(idThread, 1, 1000).
		Enter(idServer, 1, 900).
		Call(idRender, 2, 300).
		Call(idRender, 1, 100).
		Call(idIdle, 1, 200).
		Leave().
		Leave()

	e.Frame(1_033_000).
		Enter(idThread, 1, 500).
		Enter(idServer, 1, 400).
		Call(idRender, 1, 50).
		Leave().
		Leave().
		Markers(extensionMarkers, testutil.MarkerRecord{
			Kind:      uint32(MarkerTracesFlushed),
			ThreadID:  2,
			UserValue: 7,
			LabelID:   idLabel,
			Timestamp: 1_020_000,
		}).
		NetworkStats().
		StringID(idClient).VarInts(10, 1, 20, 3).
		StringID(idMessage).VarInts(2, 64, 1, 32).
		StringID(idClass).VarInts(1, 2, 3, 4).
		StringID(idField).VarInts(1, 2, 3, 4).
		VarInts(2, 9).
		VarInts(2, 5, 6).
		VarInts(1, 7).
		VarInts(1, 1, 2, 3, 1, 2, 3, 4, 5, 6, 7, 8).
		StringID(idClassEnd).
		StringID(idNetworkEnd)

	e.Frame(1_050_000)

	e.Frame(1_066_000).
		Enter(idThread, 1, 800).
		Enter(idServer, 1, 700).
		Call(idPhysics, 0, 70).
		Call(idClient, 1, 5).
		Leave().
		Leave()

	return e.Bytes()
}

func attributed(id uint32, depth int32, count, time, exclusive uint32) calltree.CallRecord {
	return calltree.CallRecord{ID: nametable.NodeID(id), Depth: depth, CallCount: count, Time: time, ExclusiveTime: exclusive}
}

func TestLoad(t *testing.T) {
	l := load(t, testLogBytes())

	if l.Version != 3 {
		t.Fatalf("Version = %d", l.Version)
	}
	if diff := testutil.ApproxDiff(l.CostPerCall, 250e-12); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if l.StartTime != 1_000_000 {
		t.Fatalf("StartTime = %d", l.StartTime)
	}
	if len(l.Frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(l.Frames))
	}
	if l.TotalNodes != 12 {
		t.Fatalf("TotalNodes = %d", l.TotalNodes)
	}

	server := calltree.Thread{
		ID:         nametable.NodeID(idServer),
		Name:       calltree.ServerUpdateNodeName,
		Flags:      calltree.FlagMainThread | calltree.FlagIdle,
		Time:       800,
		IdleTime:   200,
		IdleCount:  1,
		StartIndex: 1,
		EntryIndex: 2,
		NodeCount:  5,
	}
	want := &Frame{
		Index:     0,
		StartTime: 0,
		EndTime:   16_000,
		Sections:  []uint32{100, 200},
		Calls: []calltree.CallRecord{
			{},
			attributed(idThread, 1, 1, 800, 100),
			attributed(idServer, 2, 1, 700, 100),
			attributed(idRender, 3, 2, 300, 300),
			attributed(idRender, 3, 1, 100, 100),
			attributed(idIdle, 3, 1, 200, 200),
		},
		MaxDepth:   3,
		Markers:    []Marker{{Kind: MarkerFocusGained, Timestamp: 500}},
		Threads:    []calltree.Thread{server},
		MainThread: 0,
		NetTime:    800,
	}
	if diff := testutil.Diff(l.Frames[0], want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	f1 := l.Frames[1]
	if f1.StartTime != 16_000 || f1.EndTime != 33_000 {
		t.Fatalf("frame 1 spans [%d, %d]", f1.StartTime, f1.EndTime)
	}
	wantMarkers := []Marker{{
		Kind:      MarkerTracesFlushed,
		ThreadID:  2,
		UserValue: 7,
		LabelID:   nametable.NodeID(idLabel),
		Label:     "round start",
		Timestamp: 20_000,
	}}
	if diff := testutil.Diff(f1.Markers, wantMarkers); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	if l.Frames[2].CallCount() != 0 || len(l.Frames[2].Threads) != 0 || l.Frames[2].MainThread != -1 {
		t.Fatalf("frame 2 should be empty: %+v", l.Frames[2])
	}

	wantCalls := []calltree.CallRecord{
		{},
		attributed(idThread, 1, 1, 800, 100),
		attributed(idServer, 2, 1, 700, 625),
		attributed(idPhysics, 3, 1, 70, 70),
		attributed(idClient, 3, 1, 5, 5),
	}
	if diff := testutil.Diff(l.Frames[3].Calls, wantCalls); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}

	wantNetwork := NetworkSummary{
		Blocks:         1,
		Clients:        1,
		SnapshotBytes:  10,
		BytesSent:      20,
		VoiceBytesSent: 3,
		Classes: map[string]NetworkClassStats{
			"class-Player": {Count: 1, OverheadBits: 1, TotalBits: 2, BaselineBits: 3, DiffBits: 4, Fields: 1},
		},
		Messages: map[string]NetworkMessageStats{
			"message-Move": {Count: 2, Bytes: 64, SentCount: 1, SentBytes: 32},
		},
	}
	if diff := testutil.Diff(l.Network, wantNetwork); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestLoadWithSmallBuffer(t *testing.T) {
	data := testLogBytes()
	want := load(t, data)

	got, err := Load(
		context.Background(),
		iotest.OneByteReader(bytes.NewReader(data)),
		int64(len(data)),
		WithBufferSize(bytestream.MinBufferSize),
		WithWorkers(1),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := testutil.Diff(got.Frames, want.Frames); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
	if diff := testutil.Diff(got.NodeStats, want.NodeStats); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestPlaceholderFrameIsDropped(t *testing.T) {
	e := testutil.NewEncoder(1, 3)
	e.Name(1, calltree.ThreadNodeName).
		Name(2, "Work").
		Frame(500).
		Frame(1500).
		Enter(1, 1, 100).
		Call(2, 1, 40)

	l := load(t, e.Bytes())

	if l.Version != 1 {
		t.Fatalf("Version = %d", l.Version)
	}
	if name, _ := l.Names.Name(1); name != calltree.ThreadNodeName {
		t.Fatalf("id 1 bound to %q", name)
	}
	if len(l.Frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(l.Frames))
	}
	f := l.Frames[0]
	if f.StartTime != 0 || f.EndTime != 1000 {
		t.Fatalf("frame spans [%d, %d]", f.StartTime, f.EndTime)
	}
	if len(f.Threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(f.Threads))
	}
	wantCalls := []calltree.CallRecord{
		{},
		attributed(1, 1, 1, 100, 60),
		attributed(2, 2, 1, 40, 40),
	}
	if diff := testutil.Diff(f.Calls, wantCalls); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestThreadEntrySkipsHeapAllocator(t *testing.T) {
	e := testutil.NewEncoder(1, 3)
	e.Name(1, calltree.ThreadNodeName).
		Name(2, calltree.HeapAllocateNodeName).
		Name(3, "RenderThread::Run").
		Frame(0).
		Frame(100).
		Enter(1, 1, 100).
		Call(2, 1, 10).
		Call(3, 1, 80)

	l := load(t, e.Bytes())
	threads := l.Frames[0].Threads
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	if threads[0].Name != "RenderThread::Run" || threads[0].EntryIndex != 3 {
		t.Fatalf("thread entry is %q at %d", threads[0].Name, threads[0].EntryIndex)
	}
}

func TestLogWithoutCallsNeedsNoThreadNode(t *testing.T) {
	e := testutil.NewEncoder(1, 0)
	e.Name(1, "Render").Frame(0).Frame(10).Frame(20)

	l := load(t, e.Bytes())
	if len(l.Frames) != 2 || l.TotalNodes != 0 || len(l.NodeStats) != 0 {
		t.Fatalf("unexpected log: %d frames, %d nodes", len(l.Frames), l.TotalNodes)
	}
}

func TestClampedFramesAreLogged(t *testing.T) {
	e := testutil.NewEncoder(3, 0)
	e.Name(idThread, calltree.ThreadNodeName).
		Name(idRender, "Render").
		Name(idIdle, "ServerGame::Idle").
		Frame(0)
	for i := uint64(1); i <= 3; i++ {
		e.Frame(i*16_000).
			Enter(idThread, 1, 100).
			Enter(idRender, 1, 10).
			Call(idIdle, 1, 20).
			Leave().
			Leave()
	}

	var buf bytes.Buffer
	l := load(t, e.Bytes(), WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	for _, f := range l.Frames {
		if f.Clamped != 4 {
			t.Fatalf("frame %d: expected 4 clamps, got %d", f.Index, f.Clamped)
		}
	}
	out := buf.String()
	if got := strings.Count(out, "frame attribution clamped"); got != 1 {
		t.Fatalf("expected one sampled frame line, got %d in %s", got, out)
	}
	if !strings.Contains(out, `"frames":3,"message":"plog has frames with clamped attribution"`) {
		t.Fatalf("missing clamp summary in %s", out)
	}
}

func TestEmptyStream(t *testing.T) {
	l := load(t, testutil.NewEncoder(1, 0).Bytes())
	if len(l.Frames) != 0 || l.Duration() != 0 {
		t.Fatalf("expected an empty log")
	}
}

func TestLoadErrors(t *testing.T) {
	header := func() *testutil.Encoder {
		return testutil.NewEncoder(1, 5).Name(idThread, calltree.ThreadNodeName)
	}
	truncated := header().Frame(0).Frame(10).Call(idThread, 1, 300).Bytes()
	truncated = truncated[:len(truncated)-1]

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "unknown record type",
			data: header().Byte(7 << 5).Bytes(),
			want: ErrUnknownRecordType,
		},
		{
			name: "unknown extension",
			data: header().Frame(0).Extended(2).Bytes(),
			want: ErrUnknownExtension,
		},
		{
			name: "unknown network section",
			data: header().Name(2, "bogus").NetworkStats().StringID(2).Bytes(),
			want: ErrUnknownNetworkSection,
		},
		{
			name: "call with unbound id",
			data: header().Frame(0).Frame(10).Call(9, 1, 1).Bytes(),
			want: ErrUnboundNodeID,
		},
		{
			name: "network reference to unbound id",
			data: header().NetworkStats().StringID(99).Bytes(),
			want: ErrUnboundNodeID,
		},
		{
			name: "name bound twice",
			data: header().Name(idThread, "again").Bytes(),
			want: nametable.ErrDuplicateNodeID,
		},
		{
			name: "frame time goes backwards",
			data: header().Frame(100).Frame(200).Frame(150).Bytes(),
			want: ErrNonMonotonicTime,
		},
		{
			name: "frame before the baseline",
			data: header().Frame(100).Frame(50).Bytes(),
			want: ErrNonMonotonicTime,
		},
		{
			name: "missing thread node",
			data: testutil.NewEncoder(1, 5).Name(2, "Render").Frame(0).Frame(10).Call(2, 1, 1).Bytes(),
			want: ErrMissingWellKnownNode,
		},
		{
			name: "truncated record",
			data: truncated,
			want: bytestream.ErrTruncatedStream,
		},
		{
			name: "truncated header",
			data: []byte{1, 0x80},
			want: bytestream.ErrTruncatedStream,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l, err := Load(context.Background(), bytes.NewReader(test.data), int64(len(test.data)), WithLogger(zerolog.Nop()))
			if !errors.Is(err, test.want) {
				t.Fatalf("expected %v, got %v", test.want, err)
			}
			if !errors.Is(err, errorutil.ErrDataIntegrity) {
				t.Fatalf("expected a data integrity error, got %v", err)
			}
			if l != nil {
				t.Fatal("a failed load must not return a log")
			}
		})
	}
}

func TestDecodeErrorLocation(t *testing.T) {
	data := testutil.NewEncoder(1, 5).
		Name(idThread, calltree.ThreadNodeName).
		Frame(0).
		Frame(10).
		Call(idThread, 1, 1).
		Byte(7 << 5).
		Bytes()

	_, err := Load(context.Background(), bytes.NewReader(data), int64(len(data)), WithLogger(zerolog.Nop()))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected a *DecodeError, got %v", err)
	}
	if decodeErr.Offset != int64(len(data)-1) || decodeErr.Frame != 0 {
		t.Fatalf("error located at offset %d frame %d", decodeErr.Offset, decodeErr.Frame)
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := testLogBytes()
	l, err := Load(ctx, bytes.NewReader(data), int64(len(data)), WithLogger(zerolog.Nop()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if l != nil {
		t.Fatal("a cancelled load must not return a log")
	}
}
