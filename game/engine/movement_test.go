package engine

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWakeOnRecordedBase(t *testing.T) {
	sim := newTestSim(t, 10)

	x, y := sim.Wake()
	if x != 1 || y != 1 {
		t.Errorf("Expected wake at (1,1), got (%d,%d)", x, y)
	}
	state := sim.State()
	if state.Heading != 0 {
		t.Errorf("Expected heading 0 next to the west border, got %f", state.Heading)
	}
	if state.Battery != MaxBattery {
		t.Errorf("Expected full battery, got %f", state.Battery)
	}
	if sim.Counter() != 1 {
		t.Errorf("Expected wake to record one tick, got %d", sim.Counter())
	}
	if sim.RunState() != StateActive {
		t.Errorf("Expected active state, got %s", sim.RunState())
	}
	if !sim.AtBase() {
		t.Error("Expected robot to be at base")
	}
	if sim.Stats().BatteryTotal != 0 {
		t.Errorf("Expected wake to be free, consumed %f", sim.Stats().BatteryTotal)
	}
}

func TestWakeWithoutBaseUsesOriginAndSavesMap(t *testing.T) {
	m, err := ParseLayout([]string{
		"#####",
		"#...#",
		"#.2.#",
		"#####",
	})
	if err != nil {
		t.Fatalf("Failed to parse layout: %v", err)
	}

	dir := t.TempDir()
	sim := NewSimulator()
	sim.SetMap(m)
	sim.SetSink(NewFileSink(dir))
	sim.Configure(Callbacks{Behavior: func() {}}, 10)

	x, y := sim.Wake()
	if x != 1 || y != 1 {
		t.Errorf("Expected wake at origin, got (%d,%d)", x, y)
	}
	if sim.State().Heading != 0 {
		t.Errorf("Expected heading 0, got %f", sim.State().Heading)
	}
	base, ok := sim.BasePosition()
	if !ok || base != (Position{X: 1, Y: 1}) {
		t.Errorf("Expected base at origin, got %v (%v)", base, ok)
	}
	if !sim.AtBase() {
		t.Error("Expected the origin to act as base")
	}

	saved, err := LoadMapFile(filepath.Join(dir, "map.pgm"))
	if err != nil {
		t.Fatalf("Expected generated map to be saved: %v", err)
	}
	if !saved.IsBase(1, 1) || saved.CellDirt(2, 2) != 2 {
		t.Errorf("Saved map does not match: %v", saved.Layout())
	}
}

func TestWakeDoesNotSaveNamedMap(t *testing.T) {
	m, _ := ParseLayout([]string{
		"####",
		"#..#",
		"####",
	})
	m.Name = "maps/tiny.pgm"

	dir := t.TempDir()
	sim := NewSimulator()
	sim.SetMap(m)
	sim.SetSink(NewFileSink(dir))
	sim.Configure(Callbacks{Behavior: func() {}}, 10)
	sim.Wake()

	if _, err := os.Stat(filepath.Join(dir, "map.pgm")); !os.IsNotExist(err) {
		t.Errorf("Expected no map to be saved for a loaded map, got %v", err)
	}
}

func TestActionsIgnoredWhileAsleep(t *testing.T) {
	sim := newTestSim(t, 10)

	if sim.Forward() {
		t.Error("Expected forward to be refused before wake")
	}
	sim.Turn(math.Pi)
	sim.Clean()
	if sim.Load() {
		t.Error("Expected load to be refused before wake")
	}

	if sim.Counter() != 0 {
		t.Errorf("Expected no ticks before wake, got %d", sim.Counter())
	}
	if !sim.Done() {
		t.Error("Expected acting on a sleeping robot to end the run")
	}
	if sim.Stats() != (Statistics{CellTotal: sim.Stats().CellTotal, DirtTotal: sim.Stats().DirtTotal}) {
		t.Errorf("Expected no counters before wake, got %+v", sim.Stats())
	}
}

func TestTurnNormalizesHeading(t *testing.T) {
	tests := []struct {
		name     string
		alpha    float64
		expected float64
	}{
		{"quarter", math.Pi / 2, math.Pi / 2},
		{"negative quarter", -math.Pi / 2, 3 * math.Pi / 2},
		{"full turn", 2 * math.Pi, 0},
		{"several turns", 5 * math.Pi, math.Pi},
		{"large negative", -7, 2*math.Pi*2 - 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSim(t, 10)
			sim.Wake()
			sim.Turn(tt.alpha)

			h := sim.State().Heading
			if !approxEqual(h, tt.expected) {
				t.Errorf("Expected heading %f, got %f", tt.expected, h)
			}
			if h < 0 || h >= 2*math.Pi {
				t.Errorf("Heading %f outside [0, 2pi)", h)
			}
			if !approxEqual(sim.Battery(), MaxBattery-CostTurn) {
				t.Errorf("Expected turn to cost %f, battery %f", CostTurn, sim.Battery())
			}
			if sim.Counter() != 2 || sim.Stats().Turn != 1 {
				t.Errorf("Expected one turn tick, counter %d turns %d", sim.Counter(), sim.Stats().Turn)
			}
		})
	}
}

func TestForwardOrthogonal(t *testing.T) {
	sim := newTestSim(t, 10)
	sim.Wake()

	if !sim.Forward() {
		t.Fatal("Expected forward to succeed")
	}
	state := sim.State()
	if state.X != 2 || state.Y != 1 {
		t.Errorf("Expected (2,1), got (%d,%d)", state.X, state.Y)
	}
	if state.Battery != MaxBattery-CostMove {
		t.Errorf("Expected battery %f, got %f", MaxBattery-CostMove, state.Battery)
	}
	if sim.Counter() != 2 {
		t.Errorf("Expected counter 2, got %d", sim.Counter())
	}
	stats := sim.Stats()
	if stats.Forward != 1 || stats.CellVisited != 1 {
		t.Errorf("Expected 1 forward and 1 visited cell, got %+v", stats)
	}
}

func TestForwardBumpIsFreeTick(t *testing.T) {
	sim := newTestSim(t, 20)
	sim.Wake()
	for i := 0; i < 4; i++ {
		if !sim.Forward() {
			t.Fatalf("Forward %d failed", i)
		}
	}
	before := sim.State()
	counter := sim.Counter()

	if sim.Forward() {
		t.Fatal("Expected a bump against the east wall")
	}
	after := sim.State()
	if !after.Bumper {
		t.Error("Expected bumper to be set")
	}
	if after.X != before.X || after.Y != before.Y {
		t.Errorf("Expected position unchanged, moved from (%d,%d) to (%d,%d)", before.X, before.Y, after.X, after.Y)
	}
	if after.Battery != before.Battery-CostBump {
		t.Errorf("Expected bump to cost exactly %f, battery %f -> %f", CostBump, before.Battery, after.Battery)
	}
	if sim.Stats().Bumps != 1 {
		t.Errorf("Expected 1 bump, got %d", sim.Stats().Bumps)
	}
	if sim.Counter() != counter {
		t.Errorf("Expected bump not to advance counter, %d -> %d", counter, sim.Counter())
	}
	if len(sim.History()) != counter {
		t.Errorf("Expected %d history samples, got %d", counter, len(sim.History()))
	}

	sim.Turn(math.Pi)
	if sim.Bumper() {
		t.Error("Expected turn to clear the bumper")
	}
}

func TestForwardDiagonal(t *testing.T) {
	sim := newTestSim(t, 10)
	sim.Wake()
	sim.Turn(math.Pi / 4)

	if !sim.Forward() {
		t.Fatal("Expected diagonal forward to succeed")
	}
	// 1 + 0.70711 stays in the same cell
	state := sim.State()
	if state.X != 1 || state.Y != 1 {
		t.Errorf("Expected sub-cell drift to stay on (1,1), got (%d,%d)", state.X, state.Y)
	}
	if !approxEqual(state.Battery, MaxBattery-CostTurn-CostMoveDiag) {
		t.Errorf("Expected diagonal cost, battery %f", state.Battery)
	}

	if !sim.Forward() {
		t.Fatal("Expected second diagonal forward to succeed")
	}
	state = sim.State()
	if state.X != 2 || state.Y != 2 {
		t.Errorf("Expected (2,2), got (%d,%d)", state.X, state.Y)
	}
	if state.Infrared != 3 {
		t.Errorf("Expected infrared 3 on the dirty cell, got %d", state.Infrared)
	}
	if sim.Stats().CellVisited != 2 {
		t.Errorf("Expected 2 visited cells, got %d", sim.Stats().CellVisited)
	}
}

func TestForwardNeverEntersWall(t *testing.T) {
	headings := []float64{0, math.Pi / 4, math.Pi / 2, 3 * math.Pi / 4, math.Pi, 5 * math.Pi / 4, 3 * math.Pi / 2, 7 * math.Pi / 4}

	for _, h := range headings {
		sim := newTestSim(t, 200)
		sim.Wake()
		sim.Turn(h)
		for i := 0; i < 20; i++ {
			before := sim.State()
			moved := sim.Forward()
			after := sim.State()
			if sim.Map().IsWall(after.Y, after.X) {
				t.Fatalf("Heading %f: robot inside wall at (%d,%d)", h, after.X, after.Y)
			}
			if !moved && (after.X != before.X || after.Y != before.Y) {
				t.Fatalf("Heading %f: bump moved the robot", h)
			}
			if after.Battery > before.Battery {
				t.Fatalf("Heading %f: battery increased while moving", h)
			}
		}
	}
}

func TestCleanUntilEmpty(t *testing.T) {
	sim := newTestSim(t, 20)
	sim.Wake()
	sim.Turn(math.Pi / 2)
	sim.Forward()
	sim.Turn(-math.Pi / 2)
	sim.Forward()

	if sim.Infrared() != 3 {
		t.Fatalf("Expected to stand on dirt 3, infrared %d", sim.Infrared())
	}

	for i, want := range []int{2, 1, 0} {
		got := sim.Clean()
		if got != want {
			t.Errorf("Clean %d: expected %d, got %d", i+1, want, got)
		}
		cleaned := sim.Stats().DirtCleaned
		if want > 0 && cleaned != 0 {
			t.Errorf("Clean %d: cell credited before reaching 0", i+1)
		}
		if want == 0 && cleaned != 1 {
			t.Errorf("Expected one cleaned cell, got %d", cleaned)
		}
	}

	if sim.Map().CellDirt(2, 2) != 0 {
		t.Errorf("Expected grid dirt 0, got %d", sim.Map().CellDirt(2, 2))
	}
	for _, d := range sim.Map().DirtRecords() {
		if d.X == 2 && d.Y == 2 && d.Depth != 0 {
			t.Errorf("Expected dirt record to follow the grid, depth %d", d.Depth)
		}
	}

	battery := sim.Battery()
	counter := sim.Counter()
	stats := sim.Stats()
	if sim.Clean() != 0 {
		t.Error("Expected clean cell to stay clean")
	}
	if sim.Battery() != battery {
		t.Errorf("Expected cleaning a clean cell to be free, %f -> %f", battery, sim.Battery())
	}
	if sim.Counter() != counter+1 {
		t.Errorf("Expected clean to record a tick")
	}
	if got := sim.Stats(); got.Clean != stats.Clean || got.DirtCleaned != stats.DirtCleaned {
		t.Errorf("Expected no counter change on a clean cell, %+v -> %+v", stats, got)
	}
	if stats.Clean != 3 {
		t.Errorf("Expected 3 clean actions, got %d", stats.Clean)
	}
	if !approxEqual(sim.Battery(), MaxBattery-2*CostTurn-2*CostMove-3*CostClean) {
		t.Errorf("Unexpected battery %f", sim.Battery())
	}
}

func TestLoadBattery(t *testing.T) {
	sim := newTestSim(t, 20)
	sim.Wake()

	if !sim.Load() {
		t.Error("Expected load to succeed at base")
	}
	if sim.Battery() != MaxBattery {
		t.Errorf("Expected battery clamped to max, got %f", sim.Battery())
	}
	if sim.Counter() != 2 {
		t.Errorf("Expected load to record a tick, counter %d", sim.Counter())
	}

	sim.robot.battery = 500
	sim.Load()
	if sim.Battery() != 500+ChargeStep {
		t.Errorf("Expected %f, got %f", 500+ChargeStep, sim.Battery())
	}

	sim.Forward()
	counter := sim.Counter()
	if sim.Load() {
		t.Error("Expected load to fail away from base")
	}
	if sim.Counter() != counter {
		t.Error("Expected failed load not to record a tick")
	}
	if sim.Stats().Load != 1 {
		t.Errorf("Expected 1 failed load, got %d", sim.Stats().Load)
	}
}

func TestBatteryNeverNegative(t *testing.T) {
	sim := newTestSim(t, 20)
	sim.Wake()
	sim.Turn(math.Pi)
	sim.robot.battery = 0.3

	sim.Forward() // bump costs more than what is left
	if sim.Battery() != 0 {
		t.Errorf("Expected battery clamped at 0, got %f", sim.Battery())
	}
	if !approxEqual(sim.Stats().BatteryTotal, CostTurn+0.3) {
		t.Errorf("Expected only the drawn amount to be counted, got %f", sim.Stats().BatteryTotal)
	}
	if !sim.Done() {
		t.Error("Expected the stop flag to be raised")
	}
}

func TestVisitedCellsAreDeduplicated(t *testing.T) {
	sim := newTestSim(t, 50)
	sim.Wake()
	for i := 0; i < 3; i++ {
		sim.Forward()
		sim.Turn(math.Pi)
		sim.Forward()
		sim.Turn(math.Pi)
	}

	if got := sim.Stats().CellVisited; got != 2 {
		t.Errorf("Expected 2 distinct visited cells, got %d", got)
	}
	if got := sim.Stats().Forward; got != 6 {
		t.Errorf("Expected 6 forwards, got %d", got)
	}
	if len(sim.VisitedCells()) != 2 {
		t.Errorf("Expected 2 visited positions, got %v", sim.VisitedCells())
	}
}
