package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.klog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	add := wire.MethodAddEventConsumer
	next := wire.CallbackNext
	latency := 1500 * time.Microsecond
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: "conn-1111-aaaa", Side: log.SideExtension,
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Package: "io.karoo-ext.sample",
			Message: &log.MessageEvent{Kind: wire.KindCall, MessageID: 7, Method: &add, Target: "consumer-1", Tag: "io.hammerhead.karooext.models.RideState.Params"},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: "conn-1111-aaaa", Side: log.SideExtension,
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Package: "io.karoo-ext.sample",
			Message: &log.MessageEvent{Kind: wire.KindCallback, HandlerID: "consumer-1", Callback: &next, Latency: &latency},
		},
		{
			Timestamp: ts.Add(2 * time.Second), ConnectionID: "conn-2222-bbbb", Side: log.SideHost,
			Direction: log.DirectionIn, Layer: log.LayerBridge, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConsumer, ID: "consumer-1", OldState: "ATTACHED", NewState: "REMOVED"},
		},
		{
			Timestamp: ts.Add(3 * time.Second), ConnectionID: "conn-2222-bbbb", Side: log.SideHost,
			Layer: log.LayerTransport, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "connection reset", Context: "read"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"2026-03-14T09:30:00.000000Z [conn:conn-111] EXTENSION OUT WIRE AddEventConsumer",
		"Target: consumer-1",
		"Package: io.karoo-ext.sample",
		"onNext",
		"Latency: 1.500ms",
		"Entity: CONSUMER consumer-1",
		"ATTACHED -> REMOVED",
		"Message: connection reset",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestViewFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	tests := []struct {
		name   string
		filter func() ViewFilter
		want   int
	}{
		{"All", func() ViewFilter { return ViewFilter{} }, 4},
		{"Wire", func() ViewFilter {
			l := log.LayerWire
			return ViewFilter{Layer: &l}
		}, 2},
		{"In", func() ViewFilter {
			d := log.DirectionIn
			return ViewFilter{Direction: &d}
		}, 3},
		{"State", func() ViewFilter {
			c := log.CategoryState
			return ViewFilter{Category: &c}
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunView(path, tt.filter(), &buf); err != nil {
				t.Fatalf("RunView failed: %v", err)
			}
			if got := strings.Count(buf.String(), "[conn:"); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Bridge"); err != nil || l != log.LayerBridge {
		t.Errorf("ParseLayerFlag(Bridge) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}

	var first exportedEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first.Side != "EXTENSION" || first.Layer != "WIRE" || first.Type != "AddEventConsumer" {
		t.Errorf("unexpected event: %+v", first)
	}
	if first.Message == nil || first.Message.MessageID != 7 || first.Target != "consumer-1" {
		t.Errorf("unexpected message: %+v", first.Message)
	}

	var second exportedEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if second.Message == nil || second.Message.LatencyUs != 1500 {
		t.Errorf("latency not exported: %+v", second.Message)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header plus 4", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,connection_id,side") {
		t.Errorf("unexpected header: %s", lines[0])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFilterWritesMatches(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.klog")

	var buf bytes.Buffer
	err := RunFilter(path, FilterOptions{Output: out, Target: "consumer-1", Layer: "wire"}, &buf)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected report: %s", buf.String())
	}

	r, err := log.NewReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	n := 0
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		n++
	}
	if n != 2 {
		t.Errorf("filtered file has %d events, want 2", n)
	}
}

func TestFilterOptionsErrors(t *testing.T) {
	tests := []FilterOptions{
		{TimeStart: "yesterday"},
		{TimeEnd: "tomorrow"},
		{Layer: "service"},
		{Direction: "sideways"},
		{Category: "snapshot"},
	}
	for _, opts := range tests {
		if _, err := opts.Filter(); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 4 || stats.Errors != 1 || len(stats.Connections) != 2 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.Operations["AddEventConsumer"] != 1 || stats.Operations["onNext"] != 1 {
		t.Errorf("unexpected operations: %v", stats.Operations)
	}
	if c := stats.Connections["conn-1111-aaaa"]; c == nil || c.Package != "io.karoo-ext.sample" || c.MaxLatency != 1500*time.Microsecond {
		t.Errorf("unexpected connection stats: %+v", c)
	}

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	for _, want := range []string{"Total Events: 4", "BRIDGE:", "HOST:", "Connections: 2", "Errors: 1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output", want)
		}
	}
}
