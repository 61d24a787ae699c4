package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/plog"
	"github.com/NS2CDT/PerfAnalyzer/internal/speedscope"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageprovider"
	"github.com/NS2CDT/PerfAnalyzer/internal/storageutil"
	"github.com/NS2CDT/PerfAnalyzer/internal/testutil"
)

func writePlog(t *testing.T, renderTime uint32) string {
	t.Helper()
	e := testutil.NewEncoder(1, 100)
	e.Name(1, calltree.ThreadNodeName).
		Name(2, calltree.ServerUpdateNodeName).
		Name(3, "Render").
		Frame(0)
	for i := uint64(1); i <= 4; i++ {
		e.Frame(i*16_000, 150).
			Enter(1, 1, 1000).
			Enter(2, 1, 900).
			Call(3, 1, renderTime).
			Leave().
			Leave()
	}
	path := filepath.Join(t.TempDir(), "test.plog")
	if err := os.WriteFile(path, e.Bytes(), 0o644); err != nil {
		t.Fatalf("can't write plog: %v", err)
	}
	return path
}

func newGlobals(out *bytes.Buffer) *globals {
	return &globals{ctx: context.Background(), out: out, workers: 1}
}

func TestStatsCommand(t *testing.T) {
	path := writePlog(t, 300)

	tests := []struct {
		name    string
		cmd     statsCmd
		want    []string
		notWant []string
	}{
		{
			name: "all nodes",
			cmd:  statsCmd{File: path, Top: -1, Sort: "avg_exclusive", StartMS: -1, EndMS: -1},
			want: []string{"4 frames", "frames [0, 4)", "main thread idle avg 0.000ms", "children avg 9.000ms, 3.0 records", "section avg unspecified 1.500ms", "Render", calltree.ServerUpdateNodeName},
		},
		{
			name:    "matching nodes",
			cmd:     statsCmd{File: path, Top: -1, Sort: "avg_exclusive", Match: "rend", StartMS: -1, EndMS: -1},
			want:    []string{"Render", "3.000"},
			notWant: []string{calltree.ServerUpdateNodeName},
		},
		{
			name: "time range",
			cmd:  statsCmd{File: path, Top: 1, Sort: "calls", StartMS: 30, EndMS: -1},
			want: []string{"frames [1, 4)"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := tt.cmd.Run(newGlobals(&out)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(out.String(), s) {
					t.Fatalf("output is missing %q:\n%s", s, out.String())
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out.String(), s) {
					t.Fatalf("output contains %q:\n%s", s, out.String())
				}
			}
		})
	}
}

func TestStatsCommandWithoutMatches(t *testing.T) {
	var out bytes.Buffer
	cmd := statsCmd{File: writePlog(t, 300), Top: -1, Sort: "calls", Match: "nothing", StartMS: -1, EndMS: -1}
	if err := cmd.Run(newGlobals(&out)); !errors.Is(err, errorutil.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestDiffCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := diffCmd{Old: writePlog(t, 100), New: writePlog(t, 300), Top: -1}
	if err := cmd.Run(newGlobals(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{"Render", "1.000", "3.000", "-2.000"} {
		if !strings.Contains(out.String(), s) {
			t.Fatalf("output is missing %q:\n%s", s, out.String())
		}
	}
}

func TestSpeedscopeCommand(t *testing.T) {
	var out bytes.Buffer
	dst := filepath.Join(t.TempDir(), "frame.json")
	cmd := speedscopeCmd{File: writePlog(t, 300), Frame: 2, Out: dst}
	if err := cmd.Run(newGlobals(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("can't read output: %v", err)
	}
	var o speedscope.Output
	if err := json.Unmarshal(b, &o); err != nil {
		t.Fatalf("can't decode output: %v", err)
	}
	if o.Name != "frame 2" || len(o.Profiles) != 1 {
		t.Fatalf("unexpected output: name %q, %d profiles", o.Name, len(o.Profiles))
	}

	cmd.Evented = true
	if err := cmd.Run(newGlobals(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err = os.ReadFile(dst)
	if err != nil {
		t.Fatalf("can't read output: %v", err)
	}
	var evented speedscope.EventedOutput
	if err := json.Unmarshal(b, &evented); err != nil {
		t.Fatalf("can't decode output: %v", err)
	}
	if len(evented.Profiles) != 1 || len(evented.Profiles[0].Events) != 6 {
		t.Fatalf("unexpected evented output: %+v", evented)
	}

	cmd.Frame = 4
	if err := cmd.Run(newGlobals(&out)); !errors.Is(err, errorutil.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestUploadCommand(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	cmd := uploadCmd{File: writePlog(t, 300), Bucket: "file://" + dir, ID: "abc", Top: 5}
	if err := cmd.Run(newGlobals(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	b, err := storageprovider.OpenBlob(ctx, "file://"+dir)
	if err != nil {
		t.Fatalf("can't open bucket: %v", err)
	}
	defer b.Close()
	s, err := plog.ReadSummary(ctx, b, "abc")
	if err != nil {
		t.Fatalf("can't read summary: %v", err)
	}
	if s.ID != "abc" || s.Frames != 4 {
		t.Fatalf("unexpected summary: id %q, %d frames", s.ID, s.Frames)
	}
	if _, err := plog.LoadObject(ctx, b, storageutil.PlogPath("abc")); err != nil {
		t.Fatalf("can't load uploaded plog: %v", err)
	}

	cmd.ID = "a/b"
	if err := cmd.Run(newGlobals(&out)); err == nil {
		t.Fatal("expected an error for an invalid id")
	}
}
