package engine

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteLog(t *testing.T) {
	samples := []Sensor{
		{X: 1, Y: 2, Heading: math.Pi / 2, Bumper: true, Infrared: 3, Battery: 999.5},
		{X: 4, Y: 1, Heading: 0, Infrared: 0, Battery: 12.26},
	}
	var buf bytes.Buffer
	if err := WriteLog(&buf, samples); err != nil {
		t.Fatalf("WriteLog failed: %v", err)
	}

	expected := "y, x, head, bump, ifr, batt\n" +
		"2, 1, 90.0, 1, 3, 999.5\n" +
		"1, 4, 0.0, 0, 0, 12.3\n"
	if buf.String() != expected {
		t.Errorf("Unexpected log:\n%s\nwant\n%s", buf.String(), expected)
	}
}

func TestWriteStats(t *testing.T) {
	st := Statistics{
		CellTotal: 10, CellVisited: 2, DirtTotal: 7, DirtCleaned: 1,
		BatteryTotal: 3.5, BatteryMean: 998.24,
		Forward: 2, Turn: 1, Bumps: 0, Clean: 1, Load: 4,
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, st); err != nil {
		t.Fatalf("WriteStats failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header and one row, got %d lines", len(lines))
	}
	if lines[0] != StatsHeader {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[1] != "10, 2, 7, 1, 3.5, 998.2, 2, 1, 0, 1, 4" {
		t.Errorf("Unexpected row %q", lines[1])
	}
}

func TestFileSinkPersistsRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	m, _ := ParseLayout(testLayout)

	sim := NewSimulator()
	sim.SetMap(m)
	sim.SetSink(NewFileSink(dir))
	sim.Configure(Callbacks{
		OnStart:  func() { sim.Wake() },
		Behavior: func() { sim.Forward() },
	}, 4)

	result, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	logData, err := os.ReadFile(filepath.Join(dir, "log.csv"))
	if err != nil {
		t.Fatalf("Expected log.csv: %v", err)
	}
	logLines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	if len(logLines) != result.Ticks+1 {
		t.Errorf("Expected %d log lines, got %d", result.Ticks+1, len(logLines))
	}
	if logLines[1] != "1, 1, 0.0, 0, 0, 1000.0" {
		t.Errorf("Unexpected first sample %q", logLines[1])
	}

	statsData, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatalf("Expected stats.csv: %v", err)
	}
	if !strings.Contains(string(statsData), StatsRow(result.Stats)) {
		t.Errorf("Stats file does not contain the run statistics:\n%s", statsData)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	var events []string
	failing := &recordingSink{events: &events, err: errors.New("boom")}
	ok := &recordingSink{events: &events}
	ms := MultiSink{failing, ok}

	if err := ms.SaveLog(nil); err == nil {
		t.Error("Expected joined error")
	}
	if err := ms.SaveStats(Statistics{}); err == nil {
		t.Error("Expected joined error")
	}
	if len(events) != 4 {
		t.Errorf("Expected every sink to be called, got %v", events)
	}
	if err := (MultiSink{ok}).SaveMap(nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
