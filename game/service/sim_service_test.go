package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/results"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

var testLayout = []string{
	"#######",
	"#B....#",
	"#.3...#",
	"#.....#",
	"#######",
}

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    int
	mu       sync.Mutex
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id string, mapName string, arena *engine.Map, execTime int) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	sim := engine.NewSimulator()
	if arena != nil {
		sim.SetMap(arena.Clone())
	}
	if err := sim.Configure(service.Manual(), execTime); err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		Sim:            sim,
		MapName:        mapName,
		ExecTime:       sim.ExecTime(),
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
		Arena:          sim.Map().Clone(),
	}
	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[id]
	if !exists {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return errors.New("session not found")
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}
	session.Lock()
	session.LastAccessedAt = time.Now()
	session.Unlock()
	return nil
}

func (m *MockSessionManager) Save(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return errors.New("session not found")
	}
	m.saves++
	return nil
}

// MockMapManager implements service.MapManager for testing
type MockMapManager struct {
	maps map[string]*engine.Map
}

func NewMockMapManager(t *testing.T) *MockMapManager {
	m, err := engine.ParseLayout(testLayout)
	if err != nil {
		t.Fatalf("Failed to parse layout: %v", err)
	}
	m.Name = "test"
	return &MockMapManager{maps: map[string]*engine.Map{"test": m}}
}

func (m *MockMapManager) LoadMap(name string) (*engine.Map, error) {
	mp, ok := m.maps[name]
	if !ok {
		return nil, errors.New("map not found")
	}
	return mp.Clone(), nil
}

func (m *MockMapManager) ListMaps() ([]*service.MapInfo, error) {
	var infos []*service.MapInfo
	for _, mp := range m.maps {
		infos = append(infos, service.NewMapInfo(mp))
	}
	return infos, nil
}

func (m *MockMapManager) GetDefault() *engine.Map {
	return m.maps["test"].Clone()
}

func (m *MockMapManager) SaveMap(name string, mp *engine.Map) error {
	stored := mp.Clone()
	stored.Name = name
	m.maps[name] = stored
	return nil
}

func (m *MockMapManager) GenerateMap(name string, opts service.GenerateOptions) (*engine.Map, error) {
	mp, err := engine.Generate(engine.NewRand(opts.Seed), opts.Rows, opts.Cols, opts.Dirt, opts.Density)
	if err != nil {
		return nil, err
	}
	mp.Name = name
	return mp, m.SaveMap(name, mp)
}

// MockResultStore implements service.ResultStore for testing
type MockResultStore struct {
	RecordFunc func(team, mapName string, st engine.Statistics) (results.Run, error)
	runs       []results.Run
	mu         sync.Mutex
}

func (m *MockResultStore) Record(team, mapName string, st engine.Statistics) (results.Run, error) {
	if m.RecordFunc != nil {
		return m.RecordFunc(team, mapName, st)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run := results.Run{ID: fmt.Sprintf("run_%d", len(m.runs)+1), Team: team, MapName: mapName, Stats: st}
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *MockResultStore) List(f results.Filter) ([]results.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]results.Run(nil), m.runs...), nil
}

// MockPublisher records published events
type MockPublisher struct {
	events map[string]int
	mu     sync.Mutex
}

func (p *MockPublisher) Publish(sessionID, event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string]int{}
	}
	p.events[event]++
}

func (p *MockPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[event]
}

type fixture struct {
	svc       service.SimService
	sessions  *MockSessionManager
	maps      *MockMapManager
	store     *MockResultStore
	publisher *MockPublisher
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		sessions:  NewMockSessionManager(),
		maps:      NewMockMapManager(t),
		store:     &MockResultStore{},
		publisher: &MockPublisher{},
	}
	f.svc = service.NewSimService(f.sessions, f.maps, service.Options{
		Results:   f.store,
		Publisher: f.publisher,
	})
	return f
}

func mustAct(t *testing.T, svc service.SimService, id, action string, angle float64) *service.ActionResult {
	t.Helper()
	res, err := svc.Act(context.Background(), id, service.ActionRequest{Action: action, Angle: angle})
	if err != nil {
		t.Fatalf("Act(%s) failed: %v", action, err)
	}
	return res
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("named map", func(t *testing.T) {
		info, err := f.svc.CreateSession(ctx, "test", 50, "blue")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.MapName != "test" || info.Team != "blue" || info.ExecTime != 50 {
			t.Errorf("Unexpected session info %+v", info)
		}
		if info.State != "asleep" || info.Running {
			t.Errorf("Expected an idle asleep robot, got %s running=%v", info.State, info.Running)
		}
		if info.Stats.DirtTotal != 3 {
			t.Errorf("Expected dirt_total 3, got %d", info.Stats.DirtTotal)
		}
	})

	t.Run("default map", func(t *testing.T) {
		info, err := f.svc.CreateSession(ctx, "", 0, "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.MapName != "test" {
			t.Errorf("Expected default map test, got %s", info.MapName)
		}
		if info.ExecTime != engine.MaxArea {
			t.Errorf("Expected exec time clamped to %d, got %d", engine.MaxArea, info.ExecTime)
		}
	})

	t.Run("unknown map", func(t *testing.T) {
		_, err := f.svc.CreateSession(ctx, "missing", 10, "")
		if err == nil {
			t.Fatal("Expected error for unknown map")
		}
	})
}

func TestManualRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 10, "red")

	if _, err := f.svc.Act(ctx, info.ID, service.ActionRequest{Action: "forward"}); !errors.Is(err, service.ErrRobotAsleep) {
		t.Errorf("Expected ErrRobotAsleep, got %v", err)
	}

	res := mustAct(t, f.svc, info.ID, "wake", 0)
	if !res.Success || res.Counter != 1 || res.Robot.Battery != engine.MaxBattery {
		t.Errorf("Unexpected wake result %+v", res)
	}

	mustAct(t, f.svc, info.ID, "turn", math.Pi/2)
	res = mustAct(t, f.svc, info.ID, "forward", 0)
	if !res.Success || res.Robot.X != 1 || res.Robot.Y != 2 {
		t.Errorf("Expected move to (1,2), got %+v", res.Robot)
	}

	mustAct(t, f.svc, info.ID, "turn", -math.Pi/2)
	res = mustAct(t, f.svc, info.ID, "forward", 0)
	if res.Robot.Infrared != 3 {
		t.Errorf("Expected infrared 3 on the dirt, got %d", res.Robot.Infrared)
	}

	res = mustAct(t, f.svc, info.ID, "clean", 0)
	if !res.Success || res.Remaining == nil || *res.Remaining != 2 {
		t.Errorf("Unexpected clean result %+v", res)
	}

	res = mustAct(t, f.svc, info.ID, "load", 0)
	if res.Success {
		t.Error("Expected load away from the base to fail")
	}

	if _, err := f.svc.Act(ctx, info.ID, service.ActionRequest{Action: "dance"}); !errors.Is(err, service.ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}

	res = mustAct(t, f.svc, info.ID, "stop", 0)
	if !res.Done || res.Reason != engine.StopRequested {
		t.Errorf("Expected a requested stop, got %+v", res)
	}
	if len(f.store.runs) != 1 || f.store.runs[0].Team != "red" || f.store.runs[0].MapName != "test" {
		t.Errorf("Expected the run to be recorded, got %+v", f.store.runs)
	}

	if _, err := f.svc.Act(ctx, info.ID, service.ActionRequest{Action: "wake"}); !errors.Is(err, service.ErrRunFinished) {
		t.Errorf("Expected ErrRunFinished, got %v", err)
	}
	if f.publisher.count("tick") != 6 {
		t.Errorf("Expected 6 tick events, got %d", f.publisher.count("tick"))
	}
	if f.publisher.count("finished") != 1 {
		t.Errorf("Expected a finished event, got %d", f.publisher.count("finished"))
	}
}

func TestManualRunEndsOnBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 3, "")

	mustAct(t, f.svc, info.ID, "wake", 0)
	mustAct(t, f.svc, info.ID, "forward", 0)
	res := mustAct(t, f.svc, info.ID, "forward", 0)
	if !res.Done || res.Reason != engine.StopBudget {
		t.Errorf("Expected budget stop, got %+v", res)
	}
	if len(f.store.runs) != 1 || f.store.runs[0].Team != "anonymous" {
		t.Errorf("Expected an anonymous recorded run, got %+v", f.store.runs)
	}

	stats, err := f.svc.GetStats(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if !stats.Finished || stats.Ticks != 3 || stats.Stats.Forward != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestResetSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 20, "")

	mustAct(t, f.svc, info.ID, "wake", 0)
	mustAct(t, f.svc, info.ID, "forward", 0)

	reset, err := f.svc.ResetSession(ctx, info.ID)
	if err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	if reset.State != "asleep" || reset.Counter != 0 || reset.Running {
		t.Errorf("Expected a fresh session, got %+v", reset)
	}
	if len(f.store.runs) != 1 {
		t.Errorf("Expected the interrupted run to be recorded, got %d runs", len(f.store.runs))
	}

	res := mustAct(t, f.svc, info.ID, "wake", 0)
	if res.Counter != 1 {
		t.Errorf("Expected a new run to begin, counter %d", res.Counter)
	}
}

func TestRunProgram(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 40, "green")

	if _, err := f.svc.RunProgram(ctx, info.ID, service.RunRequest{Program: "nope"}); err == nil {
		t.Error("Expected error for unknown program")
	}

	done, err := f.svc.RunProgram(ctx, info.ID, service.RunRequest{Program: "cleaner", Wait: true})
	if err != nil {
		t.Fatalf("RunProgram failed: %v", err)
	}
	if done.Running || done.Busy || done.Program != "cleaner" {
		t.Errorf("Expected a finished run, got %+v", done)
	}
	if done.Counter > 40 {
		t.Errorf("Run exceeded the budget: %d", done.Counter)
	}
	if len(f.store.runs) != 1 || f.store.runs[0].Team != "green" {
		t.Errorf("Expected the run to be recorded, got %+v", f.store.runs)
	}

	history, err := f.svc.GetHistory(ctx, info.ID, service.HistoryOptions{Order: "asc", Limit: 5})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if history.TotalSamples != done.Counter || len(history.Samples) != 5 {
		t.Errorf("Unexpected history page %+v", history)
	}
	if history.Samples[0].X != 1 || history.Samples[0].Y != 1 {
		t.Errorf("Expected the first sample on the base, got %+v", history.Samples[0])
	}

	// A second run starts over on a clean copy of the map
	again, err := f.svc.RunProgram(ctx, info.ID, service.RunRequest{Program: "idle", Wait: true})
	if err != nil {
		t.Fatalf("Second RunProgram failed: %v", err)
	}
	if again.Stats.DirtTotal != 3 {
		t.Errorf("Expected a fresh map, dirt_total %d", again.Stats.DirtTotal)
	}
}

func TestRunProgramInBackground(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", engine.MaxArea, "")

	started, err := f.svc.RunProgram(ctx, info.ID, service.RunRequest{Program: "forward"})
	if err != nil {
		t.Fatalf("RunProgram failed: %v", err)
	}
	if started.Program != "forward" {
		t.Errorf("Expected program forward, got %s", started.Program)
	}

	// Reads while the program runs must not race the loop
	for i := 0; i < 5; i++ {
		if _, err := f.svc.GetState(ctx, info.ID); err != nil {
			t.Fatalf("GetState failed: %v", err)
		}
	}

	if _, err := f.svc.StopSession(ctx, info.ID); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.svc.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	state, _ := f.svc.GetState(ctx, info.ID)
	if state.Running || state.Busy {
		t.Errorf("Expected the run to be over, got %+v", state)
	}
	if state.Reason == "" {
		t.Error("Expected a stop reason")
	}
}

func TestRunProgramRejectsConcurrentRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 10, "")

	mustAct(t, f.svc, info.ID, "wake", 0)
	if _, err := f.svc.RunProgram(ctx, info.ID, service.RunRequest{Program: "idle"}); !errors.Is(err, service.ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}
}

func TestGetState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 10, "")
	mustAct(t, f.svc, info.ID, "wake", 0)

	state, err := f.svc.GetState(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Rows != 5 || state.Cols != 7 || len(state.Layout) != 5 {
		t.Errorf("Unexpected dimensions %dx%d", state.Rows, state.Cols)
	}
	if state.Base == nil || !state.AtBase {
		t.Error("Expected the robot on its base")
	}
	if state.State != "active" || !state.Running {
		t.Errorf("Expected an active run, got %s", state.State)
	}

	if _, err := f.svc.GetState(ctx, "missing"); err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestGetHistoryPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 50, "")
	mustAct(t, f.svc, info.ID, "wake", 0)
	for i := 0; i < 4; i++ {
		mustAct(t, f.svc, info.ID, "forward", 0)
	}
	// 5 samples at x=1..5 on the first row

	tests := []struct {
		name     string
		opts     service.HistoryOptions
		count    int
		firstX   int
		hasNext  bool
		pages    int
		pageSize int
	}{
		{"defaults newest first", service.HistoryOptions{}, 5, 5, false, 1, 20},
		{"ascending page 1", service.HistoryOptions{Order: "asc", Limit: 2}, 2, 1, true, 3, 2},
		{"ascending page 3", service.HistoryOptions{Order: "asc", Limit: 2, Page: 3}, 1, 5, false, 3, 2},
		{"descending page 2", service.HistoryOptions{Limit: 2, Page: 2}, 2, 3, true, 3, 2},
		{"past the end", service.HistoryOptions{Order: "asc", Limit: 2, Page: 9}, 0, 0, false, 3, 2},
		{"limit capped", service.HistoryOptions{Limit: 500}, 5, 5, false, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := f.svc.GetHistory(ctx, info.ID, tt.opts)
			if err != nil {
				t.Fatalf("GetHistory failed: %v", err)
			}
			if len(h.Samples) != tt.count {
				t.Fatalf("Expected %d samples, got %d", tt.count, len(h.Samples))
			}
			if tt.count > 0 && h.Samples[0].X != tt.firstX {
				t.Errorf("Expected first sample at x=%d, got %d", tt.firstX, h.Samples[0].X)
			}
			if h.HasNext != tt.hasNext || h.TotalPages != tt.pages || h.PageSize != tt.pageSize {
				t.Errorf("Unexpected paging %+v", h)
			}
			if h.TotalSamples != 5 {
				t.Errorf("Expected 5 samples in total, got %d", h.TotalSamples)
			}
		})
	}
}

func TestMapsAndResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.svc.LoadMap(ctx, "test")
	if err != nil {
		t.Fatalf("LoadMap failed: %v", err)
	}
	if detail.MapID != "test" || len(detail.Layout) != 5 || detail.DirtTotal != 3 {
		t.Errorf("Unexpected map detail %+v", detail)
	}

	gen, err := f.svc.GenerateMap(ctx, "small", service.GenerateOptions{Rows: 10, Cols: 10, Dirt: 4, Seed: 1})
	if err != nil {
		t.Fatalf("GenerateMap failed: %v", err)
	}
	if gen.MapID != "small" || gen.DirtCells != 4 {
		t.Errorf("Unexpected generated map %+v", gen)
	}

	maps, _ := f.svc.ListMaps(ctx)
	if len(maps) != 2 {
		t.Errorf("Expected 2 maps, got %d", len(maps))
	}

	if len(f.svc.ListPrograms(ctx)) == 0 {
		t.Error("Expected built-in programs")
	}

	runs, err := f.svc.ListResults(ctx, results.Filter{})
	if err != nil || len(runs) != 0 {
		t.Errorf("Expected no results yet, got %v, %v", runs, err)
	}

	bare := service.NewSimService(NewMockSessionManager(), f.maps, service.Options{})
	if _, err := bare.ListResults(ctx, results.Filter{}); !errors.Is(err, service.ErrResultsDisabled) {
		t.Errorf("Expected ErrResultsDisabled, got %v", err)
	}
}

func TestRecordFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.store.RecordFunc = func(team, mapName string, st engine.Statistics) (results.Run, error) {
		return results.Run{}, errors.New("disk full")
	}
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 2, "")

	mustAct(t, f.svc, info.ID, "wake", 0)
	res := mustAct(t, f.svc, info.ID, "forward", 0)
	if !res.Done {
		t.Error("Expected the run to finish despite the store failure")
	}
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info, _ := f.svc.CreateSession(ctx, "test", 10, "")

	if err := f.svc.DeleteSession(ctx, info.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := f.svc.GetSession(ctx, info.ID); err == nil {
		t.Error("Expected deleted session to be gone")
	}
	sessions, _ := f.svc.ListSessions(ctx)
	if len(sessions) != 0 {
		t.Errorf("Expected no sessions, got %d", len(sessions))
	}
}
