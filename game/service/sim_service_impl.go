package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/programs"
	"github.com/wricardo/mcp-training/roombasim/game/results"
)

// Options holds the optional collaborators of the service
type Options struct {
	// Results records every finished run when set
	Results ResultStore
	// Publisher receives tick samples and state changes when set
	Publisher Publisher
	// OutputDir, when set, receives log.csv and stats.csv per session
	OutputDir string
}

// simServiceImpl implements the SimService interface
type simServiceImpl struct {
	sessions SessionManager
	maps     MapManager
	opts     Options
	mu       sync.RWMutex
	runs     sync.WaitGroup
}

// NewSimService creates a new simulator service instance
func NewSimService(sessions SessionManager, maps MapManager, opts Options) SimService {
	return &simServiceImpl{
		sessions: sessions,
		maps:     maps,
		opts:     opts,
	}
}

// CreateSession creates a new session on the named map, or on the default
// map when mapName is empty.
func (s *simServiceImpl) CreateSession(ctx context.Context, mapName string, execTime int, team string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var arena *engine.Map
	var err error
	if mapName != "" {
		arena, err = s.maps.LoadMap(mapName)
		if err != nil {
			if strings.Contains(err.Error(), "map not found") {
				available, listErr := s.maps.ListMaps()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, m := range available {
						ids = append(ids, m.MapID)
					}
					return nil, fmt.Errorf("map '%s' not found. Available maps: %v", mapName, ids)
				}
				return nil, fmt.Errorf("map '%s' not found. Use /api/maps to list available maps", mapName)
			}
			return nil, fmt.Errorf("failed to load map %s: %w", mapName, err)
		}
	} else {
		arena = s.maps.GetDefault()
		if arena != nil {
			mapName = arena.Name
		}
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", mapName, arena, execTime)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess.Lock()
	sess.Team = team
	s.attach(sess)
	info := sessionInfo(sess)
	sess.Unlock()

	s.save(sess.ID, "create")
	return info, nil
}

// GetSession retrieves session information
func (s *simServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	sess.Lock()
	defer sess.Unlock()
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *simServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.Lock()
		result = append(result, sessionInfo(sess))
		sess.Unlock()
	}
	return result, nil
}

// DeleteSession stops any run and removes the session
func (s *simServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.Sim.RequestStop()
	}
	return s.sessions.Delete(sessionID)
}

// ResetSession puts a fresh copy of the session's map in place and readies
// the robot for a new manual run. A manual run in progress is finished and
// recorded first.
func (s *simServiceImpl) ResetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	sess.Lock()
	if sess.Busy {
		sess.Unlock()
		return nil, ErrRunInProgress
	}
	if sess.Sim.Running() {
		s.finish(sess)
	}
	err = s.rearm(sess, Manual())
	sess.Program = ""
	info := sessionInfo(sess)
	sess.Unlock()
	if err != nil {
		return nil, err
	}

	s.publishState(sessionID)
	s.save(sessionID, "reset")
	return info, nil
}

// Act executes a single robot command. The first command of a run begins it.
func (s *simServiceImpl) Act(ctx context.Context, sessionID string, req ActionRequest) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	action := strings.ToLower(strings.TrimSpace(req.Action))

	sess.Lock()
	result, err := s.act(sess, action, req.Angle)
	sess.Unlock()
	if err != nil {
		return nil, err
	}

	s.publishState(sessionID)
	s.save(sessionID, action)
	return result, nil
}

// act runs one command with the session lock held
func (s *simServiceImpl) act(sess *Session, action string, angle float64) (*ActionResult, error) {
	sim := sess.Sim
	if sess.Busy {
		return nil, fmt.Errorf("%w: program %s is driving the robot", ErrRunInProgress, sess.Program)
	}

	result := &ActionResult{Action: action}

	if action == "stop" {
		if !sim.Running() {
			return nil, ErrRunFinished
		}
		s.finish(sess)
		result.Success = true
		result.Message = "Run stopped"
		fillAction(result, sim)
		return result, nil
	}

	switch action {
	case "wake", "turn", "forward", "clean", "load":
	default:
		return nil, fmt.Errorf("%w '%s'. Valid actions: wake, turn, forward, clean, load, stop", ErrUnknownAction, action)
	}

	if sim.RunState() == engine.StateStopped {
		return nil, ErrRunFinished
	}
	if sim.RunState() == engine.StateAsleep && action != "wake" {
		return nil, ErrRobotAsleep
	}
	if !sim.Running() {
		if err := sim.Begin(context.Background()); err != nil {
			if errors.Is(err, engine.ErrNotConfigured) {
				return nil, ErrRunFinished
			}
			return nil, err
		}
	}

	switch action {
	case "wake":
		x, y := sim.Wake()
		result.Success = true
		result.Message = fmt.Sprintf("Robot awake at (%d,%d)", x, y)
	case "turn":
		sim.Turn(angle)
		result.Success = true
		result.Message = fmt.Sprintf("Turned %.3f rad, heading %.1f degrees", angle, sim.State().HeadingDegrees())
	case "forward":
		result.Success = sim.Forward()
		if result.Success {
			st := sim.State()
			result.Message = fmt.Sprintf("Moved to (%d,%d)", st.X, st.Y)
		} else {
			result.Message = "Bumped into a wall"
		}
	case "clean":
		before := sim.Infrared()
		remaining := sim.Clean()
		result.Remaining = &remaining
		result.Success = before > 0
		if result.Success {
			result.Message = fmt.Sprintf("Cleaned, %d dirt left here", remaining)
		} else {
			result.Message = "Nothing to clean here"
		}
	case "load":
		result.Success = sim.Load()
		if result.Success {
			result.Message = fmt.Sprintf("Charging, battery %.1f", sim.Battery())
		} else {
			result.Message = "Not on the base"
		}
	}

	if sim.Done() {
		s.finish(sess)
	}
	fillAction(result, sim)
	return result, nil
}

// RunProgram starts a built-in program on a fresh copy of the session map.
func (s *simServiceImpl) RunProgram(ctx context.Context, sessionID string, req RunRequest) (*SessionInfo, error) {
	prog, err := programs.Get(req.Program)
	if err != nil {
		return nil, fmt.Errorf("%w. Available programs: %v", err, programs.Names())
	}

	s.mu.Lock()
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	sess.Lock()
	if sess.Busy || sess.Sim.Running() {
		sess.Unlock()
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	cb := prog.New(sess.Sim)
	if err := s.rearm(sess, cb); err != nil {
		sess.Unlock()
		s.mu.Unlock()
		return nil, err
	}
	if err := sess.Sim.Begin(context.Background()); err != nil {
		sess.Unlock()
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to start program: %w", err)
	}
	sess.Program = prog.Name
	sess.Busy = true
	sess.Unlock()
	s.mu.Unlock()

	log.Printf("Session %s: running program %s", sessionID, prog.Name)
	s.runs.Add(1)
	if req.Wait {
		s.drive(sess, prog.Name, cb.Behavior)
	} else {
		go s.drive(sess, prog.Name, cb.Behavior)
	}

	sess.Lock()
	defer sess.Unlock()
	return sessionInfo(sess), nil
}

// drive steps a program until the run ends. The session lock is taken per
// step so readers see consistent snapshots between ticks.
func (s *simServiceImpl) drive(sess *Session, program string, behavior func()) {
	defer s.runs.Done()
	for {
		sess.Lock()
		more := sess.Sim.Step(behavior)
		sess.Unlock()
		if !more {
			break
		}
	}

	sess.Lock()
	s.finish(sess)
	sess.Busy = false
	sess.Unlock()

	s.publishState(sess.ID)
	s.save(sess.ID, "program "+program)
}

// Shutdown asks every background program to stop and waits for the runs to
// finish, or for ctx to expire.
func (s *simServiceImpl) Shutdown(ctx context.Context) error {
	for _, sess := range s.sessions.List() {
		sess.Sim.RequestStop()
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopSession asks a running program to stop. A manual run is finished
// right away.
func (s *simServiceImpl) StopSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	sess.Sim.RequestStop()

	sess.Lock()
	if !sess.Busy && sess.Sim.Running() {
		s.finish(sess)
	}
	info := sessionInfo(sess)
	sess.Unlock()

	s.publishState(sessionID)
	s.save(sessionID, "stop")
	return info, nil
}

// ListPrograms returns the built-in programs
func (s *simServiceImpl) ListPrograms(ctx context.Context) []programs.Program {
	return programs.List()
}

// GetState returns a picture of the session
func (s *simServiceImpl) GetState(ctx context.Context, sessionID string) (*StateView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)

	sess.Lock()
	defer sess.Unlock()
	return stateView(sess), nil
}

// GetHistory returns paginated tick samples of the current or last run
func (s *simServiceImpl) GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	sess.Lock()
	history := sess.Sim.History()
	sess.Unlock()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var samples []engine.Sensor
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			samples = append(samples, history[i])
		}
	} else if start < total {
		samples = history[start:end]
	}
	if samples == nil {
		samples = []engine.Sensor{}
	}

	return &HistoryResponse{
		Samples:      samples,
		TotalSamples: total,
		Page:         opts.Page,
		PageSize:     opts.Limit,
		TotalPages:   totalPages,
		HasNext:      opts.Page < totalPages,
		HasPrevious:  opts.Page > 1,
	}, nil
}

// GetStats returns the statistics of the current or last run
func (s *simServiceImpl) GetStats(ctx context.Context, sessionID string) (*StatsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	sess.Lock()
	defer sess.Unlock()

	resp := &StatsResponse{}
	if res := sess.Sim.Result(); res != nil && !sess.Sim.Running() {
		resp.Stats = res.Stats
		resp.Ticks = res.Ticks
		resp.Finished = true
		resp.Reason = res.Reason
	} else {
		resp.Stats = sess.Sim.Stats()
		resp.Ticks = sess.Sim.Counter()
	}
	resp.Coverage = resp.Stats.Coverage()
	return resp, nil
}

// ListMaps returns the map catalogue
func (s *simServiceImpl) ListMaps(ctx context.Context) ([]*MapInfo, error) {
	return s.maps.ListMaps()
}

// LoadMap returns a map with its layout
func (s *simServiceImpl) LoadMap(ctx context.Context, mapName string) (*MapDetail, error) {
	m, err := s.maps.LoadMap(mapName)
	if err != nil {
		return nil, err
	}
	return mapDetail(m), nil
}

// GenerateMap generates a random map and stores it in the catalogue
func (s *simServiceImpl) GenerateMap(ctx context.Context, mapName string, opts GenerateOptions) (*MapDetail, error) {
	m, err := s.maps.GenerateMap(mapName, opts)
	if err != nil {
		return nil, err
	}
	return mapDetail(m), nil
}

// ListResults returns stored run results, best coverage first
func (s *simServiceImpl) ListResults(ctx context.Context, filter results.Filter) ([]results.Run, error) {
	if s.opts.Results == nil {
		return nil, ErrResultsDisabled
	}
	return s.opts.Results.List(filter)
}

// attach wires the tick observer and the output sink into a session
func (s *simServiceImpl) attach(sess *Session) {
	id := sess.ID
	sim := sess.Sim
	if s.opts.Publisher != nil {
		sim.OnTick(func(sample engine.Sensor) {
			s.opts.Publisher.Publish(id, "tick", TickEvent{Tick: sim.Counter(), Sample: sample})
		})
	}
	if s.opts.OutputDir != "" {
		sim.SetSink(engine.NewFileSink(filepath.Join(s.opts.OutputDir, id)))
	}
}

// rearm loads a fresh copy of the arena and configures the simulator with
// cb. Caller holds the session lock.
func (s *simServiceImpl) rearm(sess *Session, cb engine.Callbacks) error {
	if sess.Arena != nil {
		if err := sess.Sim.SetMap(sess.Arena.Clone()); err != nil {
			return err
		}
	}
	s.attach(sess)
	if err := sess.Sim.Configure(cb, sess.ExecTime); err != nil {
		return fmt.Errorf("failed to configure simulator: %w", err)
	}
	if sess.Arena == nil {
		// The simulator generated its own arena
		sess.Arena = sess.Sim.Map().Clone()
	}
	return nil
}

// finish tears the run down and records its statistics. Caller holds the
// session lock.
func (s *simServiceImpl) finish(sess *Session) *engine.RunResult {
	result := sess.Sim.Finish()
	if result == nil {
		return nil
	}
	if s.opts.Results != nil {
		team := sess.Team
		if team == "" {
			team = "anonymous"
		}
		mapName := sess.MapName
		if mapName == "" {
			mapName = "generated"
		}
		if _, err := s.opts.Results.Record(team, mapName, result.Stats); err != nil {
			log.Printf("Warning: Failed to record result for session %s: %v", sess.ID, err)
		}
	}
	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(sess.ID, "finished", result.Stats)
	}
	return result
}

func (s *simServiceImpl) publishState(sessionID string) {
	if s.opts.Publisher == nil {
		return
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return
	}
	sess.Lock()
	view := stateView(sess)
	sess.Unlock()
	s.opts.Publisher.Publish(sessionID, "state_update", view)
}

func (s *simServiceImpl) save(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		fmt.Printf("Warning: Failed to persist session %s after %s: %v\n", sessionID, after, err)
	}
}

func sessionInfo(sess *Session) *SessionInfo {
	sim := sess.Sim
	info := &SessionInfo{
		ID:             sess.ID,
		MapName:        sess.MapName,
		Team:           sess.Team,
		Program:        sess.Program,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		ExecTime:       sim.ExecTime(),
		Counter:        sim.Counter(),
		State:          sim.RunState().String(),
		Running:        sim.Running(),
		Busy:           sess.Busy,
		Robot:          sim.State(),
		Stats:          sim.Stats(),
	}
	if res := sim.Result(); res != nil && !sim.Running() {
		info.Stats = res.Stats
		info.Reason = res.Reason
	}
	return info
}

func stateView(sess *Session) *StateView {
	sim := sess.Sim
	view := &StateView{
		SessionID: sess.ID,
		MapName:   sess.MapName,
		Robot:     sim.State(),
		AtBase:    sim.AtBase(),
		Visited:   sim.VisitedCells(),
		Stats:     sim.Stats(),
		Counter:   sim.Counter(),
		ExecTime:  sim.ExecTime(),
		State:     sim.RunState().String(),
		Running:   sim.Running(),
		Busy:      sess.Busy,
		Program:   sess.Program,
	}
	if m := sim.Map(); m != nil {
		view.Rows = m.Rows()
		view.Cols = m.Cols()
		view.Layout = m.Layout()
		if base, ok := m.Base(); ok {
			view.Base = &base
		}
	}
	if res := sim.Result(); res != nil && !sim.Running() {
		view.Stats = res.Stats
		view.Reason = res.Reason
	}
	return view
}

func fillAction(result *ActionResult, sim *engine.Simulator) {
	result.Robot = sim.State()
	result.Counter = sim.Counter()
	result.ExecTime = sim.ExecTime()
	result.Stats = sim.Stats()
	if !sim.Running() {
		result.Done = true
		if res := sim.Result(); res != nil {
			result.Reason = res.Reason
			result.Stats = res.Stats
		}
	}
}

func mapDetail(m *engine.Map) *MapDetail {
	return &MapDetail{MapInfo: *NewMapInfo(m), Layout: m.Layout()}
}
