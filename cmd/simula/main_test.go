package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/results"
)

var tinyLayout = []string{
	"########",
	"#B..2..#",
	"#......#",
	"#..3...#",
	"########",
}

func setupMaps(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	m, err := engine.ParseLayout(tinyLayout)
	if err != nil {
		t.Fatalf("Failed to parse layout: %v", err)
	}
	if err := m.SaveFile(filepath.Join(dir, "tiny.pgm")); err != nil {
		t.Fatalf("Failed to write map: %v", err)
	}
	t.Setenv("MAPS_DIR", dir)
	t.Chdir(t.TempDir())
	return dir
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := newApp(&buf).Run(context.Background(), append([]string{"simula"}, args...))
	return buf.String(), err
}

func TestRunByName(t *testing.T) {
	setupMaps(t)

	out, err := runApp(t, "run", "--map", "tiny", "--program", "idle", "--time", "5")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Program idle on tiny: 5 ticks, stopped by budget") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, engine.StatsHeader) {
		t.Errorf("Expected statistics table, got:\n%s", out)
	}
}

func TestRunWritesOutputAndResults(t *testing.T) {
	dir := setupMaps(t)
	outDir := filepath.Join(t.TempDir(), "out")
	dbPath := filepath.Join(t.TempDir(), "results.db")

	out, err := runApp(t, "run",
		"--map", filepath.Join(dir, "tiny.pgm"),
		"--program", "cleaner",
		"--time", "40",
		"--out", outDir,
		"--results-db", dbPath,
		"--team", "red",
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Recorded run") {
		t.Errorf("Expected the run to be recorded, got:\n%s", out)
	}

	for _, name := range []string{"log.csv", "stats.csv"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("Expected %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("Expected %s to have content", name)
		}
	}

	store, err := results.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open results: %v", err)
	}
	defer store.Close()
	runs, err := store.List(results.Filter{Team: "red"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 1 || runs[0].MapName != "tiny" {
		t.Errorf("Expected one run on tiny, got %+v", runs)
	}
}

func TestResultsExport(t *testing.T) {
	setupMaps(t)
	dbPath := filepath.Join(t.TempDir(), "results.db")

	for _, team := range []string{"red", "blue"} {
		if _, err := runApp(t, "run", "--map", "tiny", "--program", "idle", "--time", "5", "--results-db", dbPath, "--team", team); err != nil {
			t.Fatalf("run for %s failed: %v", team, err)
		}
	}

	out, err := runApp(t, "results", "--results-db", dbPath, "--team", "red")
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected a header and one run, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "team, map, ") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "red, tiny, ") {
		t.Errorf("Unexpected row %q", lines[1])
	}

	if _, err := runApp(t, "results", "--results-db", filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("Expected an error for a missing database")
	}
}

func TestRunRandomArenaSavesMap(t *testing.T) {
	outDir := t.TempDir()

	out, err := runApp(t, "run", "--program", "forward", "--time", "3", "--seed", "42", "--out", outDir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "on random") {
		t.Errorf("Expected a random arena, got:\n%s", out)
	}
	m, err := engine.LoadMapFile(filepath.Join(outDir, "map.pgm"))
	if err != nil {
		t.Fatalf("Expected the generated map to be saved: %v", err)
	}
	if base, ok := m.Base(); !ok || base != (engine.Position{X: 1, Y: 1}) {
		t.Errorf("Expected the saved map to carry the default base, got %+v", base)
	}
}

func TestRunDefaultsWriteToWorkingDir(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)

	if _, err := runApp(t, "run", "--program", "forward", "--time", "3", "--seed", "7"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, name := range []string{"log.csv", "stats.csv", "map.pgm"} {
		if _, err := os.Stat(filepath.Join(work, name)); err != nil {
			t.Errorf("Expected %s in the working directory: %v", name, err)
		}
	}
}

func TestRunErrors(t *testing.T) {
	setupMaps(t)

	if _, err := runApp(t, "run", "--program", "teleport"); err == nil || !strings.Contains(err.Error(), "unknown program") {
		t.Errorf("Expected unknown program error, got %v", err)
	}
	if _, err := runApp(t, "run", "--map", "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected missing map error, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()

	out, err := runApp(t, "generate", "--dir", dir, "--rows", "10", "--cols", "12", "--dirt", "5", "--seed", "7", "small")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, "Generated small (10x12") {
		t.Errorf("Unexpected output:\n%s", out)
	}
	m, err := engine.LoadMapFile(filepath.Join(dir, "small.pgm"))
	if err != nil {
		t.Fatalf("Expected small.pgm: %v", err)
	}
	if len(m.DirtRecords()) != 5 {
		t.Errorf("Expected 5 dirty cells, got %d", len(m.DirtRecords()))
	}

	if _, err := runApp(t, "generate", "--dir", dir, "--preset", "noobs", "--rows", "10", "--cols", "10"); err != nil {
		t.Fatalf("generate preset failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "noobs.pgm")); err != nil {
		t.Errorf("Expected the preset name to be used: %v", err)
	}

	if _, err := runApp(t, "generate", "--dir", dir); err == nil {
		t.Error("Expected an error without name or preset")
	}
	if _, err := runApp(t, "generate", "--dir", dir, "--preset", "bogus"); err == nil {
		t.Error("Expected an error for an unknown preset")
	}
}

func TestShow(t *testing.T) {
	setupMaps(t)

	out, err := runApp(t, "show", "tiny")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, "Base at (1,1)") {
		t.Errorf("Expected base line, got:\n%s", out)
	}
	for _, row := range tinyLayout {
		if !strings.Contains(out, row) {
			t.Errorf("Expected row %q in output", row)
		}
	}

	if _, err := runApp(t, "show"); err == nil {
		t.Error("Expected error without a map")
	}
}

func TestPrograms(t *testing.T) {
	out, err := runApp(t, "programs")
	if err != nil {
		t.Fatalf("programs failed: %v", err)
	}
	for _, name := range []string{"cleaner", "forward", "idle", "square", "wallfollow"} {
		if !strings.Contains(out, name) {
			t.Errorf("Expected %s in the list", name)
		}
	}
}
