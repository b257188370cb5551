package engine

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestSnapshotRestoreMidRun(t *testing.T) {
	sim := newTestSim(t, 20)
	sim.Wake()
	sim.Turn(math.Pi / 2)
	sim.Forward()
	sim.Turn(-math.Pi / 2)
	sim.Forward()
	sim.Clean()

	st, err := sim.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded SimState
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	restored := NewSimulator()
	if err := restored.Restore(&decoded, Callbacks{Behavior: func() {}}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if restored.State() != sim.State() {
		t.Errorf("Expected sensors %+v, got %+v", sim.State(), restored.State())
	}
	if restored.Stats() != sim.Stats() {
		t.Errorf("Expected stats %+v, got %+v", sim.Stats(), restored.Stats())
	}
	if restored.Counter() != sim.Counter() || restored.ExecTime() != sim.ExecTime() {
		t.Errorf("Counters differ: %d/%d vs %d/%d", restored.Counter(), restored.ExecTime(), sim.Counter(), sim.ExecTime())
	}
	if !reflect.DeepEqual(restored.History(), sim.History()) {
		t.Error("Expected history to survive the round trip")
	}
	if !reflect.DeepEqual(restored.Map().DirtRecords(), sim.Map().DirtRecords()) {
		t.Errorf("Dirt records differ: %v vs %v", restored.Map().DirtRecords(), sim.Map().DirtRecords())
	}
	if restored.RunState() != StateActive || !restored.Running() {
		t.Errorf("Expected an active running simulator, got %s", restored.RunState())
	}

	// Both continue identically
	sim.Clean()
	restored.Clean()
	if restored.Stats() != sim.Stats() {
		t.Errorf("Stats diverged after resuming: %+v vs %+v", restored.Stats(), sim.Stats())
	}
	if !restored.Step(func() { restored.Forward() }) {
		t.Error("Expected restored run to accept steps")
	}
}

func TestSnapshotAfterFinish(t *testing.T) {
	m, _ := ParseLayout(testLayout)
	sim := NewSimulator()
	sim.SetMap(m)
	sim.Configure(Callbacks{
		OnStart:  func() { sim.Wake() },
		Behavior: func() { sim.Forward() },
	}, 3)
	sim.Run(context.Background())

	st, err := sim.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	restored := NewSimulator()
	if err := restored.Restore(st, Callbacks{}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Running() {
		t.Error("Expected finished run to stay finished")
	}
	if restored.Result() == nil || restored.Result().Ticks != 3 {
		t.Errorf("Expected result to be restored, got %+v", restored.Result())
	}
	if len(restored.History()) != 3 {
		t.Errorf("Expected 3 history samples, got %d", len(restored.History()))
	}
	if restored.Forward() {
		t.Error("Expected a finished run to refuse actions")
	}
}

func TestRestoreRejectsBadState(t *testing.T) {
	sim := NewSimulator()
	if err := sim.Restore(nil, Callbacks{}); err == nil {
		t.Error("Expected error for nil state")
	}
	if err := sim.Restore(&SimState{Layout: testLayout, ExecTime: 0}, Callbacks{}); err == nil {
		t.Error("Expected error for invalid exec time")
	}
	if err := sim.Restore(&SimState{Layout: testLayout, ExecTime: 5, Counter: 6}, Callbacks{}); err == nil {
		t.Error("Expected error for counter beyond budget")
	}
	if err := sim.Restore(&SimState{Layout: []string{"#x#"}, ExecTime: 5}, Callbacks{}); err == nil {
		t.Error("Expected error for bad layout")
	}
	if _, err := NewSimulator().Snapshot(); err == nil {
		t.Error("Expected error snapshotting without a map")
	}
}
