package engine

import (
	"context"
	"fmt"
)

// SimState is a serializable copy of a simulator, used to persist sessions
type SimState struct {
	MapName  string       `json:"map_name"`
	Layout   []string     `json:"layout"`
	Dirt     []DirtRecord `json:"dirt"`
	Base     *Position    `json:"base,omitempty"`
	Robot    RobotState   `json:"robot"`
	Stats    Statistics   `json:"stats"`
	Visited  []Position   `json:"visited"`
	History  []Sensor     `json:"history"`
	Counter  int          `json:"counter"`
	ExecTime int          `json:"exec_time"`
	State    string       `json:"state"`
	Running  bool         `json:"running"`
	Stopping bool         `json:"stopping"`
	Reason   StopReason   `json:"reason,omitempty"`
	Result   *RunResult   `json:"result,omitempty"`
}

// RobotState holds the continuous robot state
type RobotState struct {
	FX       float64 `json:"fx"`
	FY       float64 `json:"fy"`
	Heading  float64 `json:"heading"`
	Battery  float64 `json:"battery"`
	Bumper   bool    `json:"bumper"`
	Infrared int     `json:"infrared"`
}

// Snapshot captures the simulator state. The control callbacks are not part
// of it.
func (s *Simulator) Snapshot() (*SimState, error) {
	if s.world == nil {
		return nil, fmt.Errorf("nothing to snapshot: no map loaded")
	}
	st := &SimState{
		MapName: s.world.Name,
		Layout:  s.world.Layout(),
		Dirt:    s.world.DirtRecords(),
		Robot: RobotState{
			FX:       s.robot.fx,
			FY:       s.robot.fy,
			Heading:  s.robot.heading,
			Battery:  s.robot.battery,
			Bumper:   s.robot.bumper,
			Infrared: s.robot.infrared,
		},
		Stats:    s.stats.Snapshot(),
		Visited:  s.stats.VisitedCells(),
		History:  s.History(),
		Counter:  s.counter,
		ExecTime: s.execTime,
		State:    s.state.String(),
		Running:  s.running,
		Stopping: s.stop.Load(),
		Reason:   s.reason,
		Result:   s.result,
	}
	if base, ok := s.world.Base(); ok {
		st.Base = &base
	}
	return st, nil
}

// Restore replaces the simulator state with a snapshot. A snapshot taken
// mid-run resumes with cb as its control program.
func (s *Simulator) Restore(st *SimState, cb Callbacks) error {
	if st == nil {
		return fmt.Errorf("state cannot be nil")
	}
	m, err := ParseLayout(st.Layout)
	if err != nil {
		return fmt.Errorf("restore map: %w", err)
	}
	m.Name = st.MapName
	m.dirt = append([]DirtRecord(nil), st.Dirt...)
	m.dirtIdx = make(map[Position]int, len(m.dirt))
	for i, d := range m.dirt {
		m.dirtIdx[Position{X: d.X, Y: d.Y}] = i
	}
	if st.Base != nil {
		m.base = *st.Base
		m.hasBase = true
	}
	if st.ExecTime <= 0 || st.ExecTime > MaxArea {
		return fmt.Errorf("restore: invalid exec time %d", st.ExecTime)
	}
	if st.Counter < 0 || st.Counter > st.ExecTime || len(st.History) > st.ExecTime {
		return fmt.Errorf("restore: counter %d outside budget %d", st.Counter, st.ExecTime)
	}

	s.world = m
	s.robot = Robot{
		fx:       st.Robot.FX,
		fy:       st.Robot.FY,
		heading:  st.Robot.Heading,
		battery:  st.Robot.Battery,
		bumper:   st.Robot.Bumper,
		infrared: st.Robot.Infrared,
	}
	s.stats.Reset()
	s.stats.counters = st.Stats
	for _, p := range st.Visited {
		if p.X >= 0 && p.Y >= 0 && p.X < MaxWorldSize && p.Y < MaxWorldSize {
			s.stats.visited[p.Y][p.X] = true
		}
	}

	s.callbacks = cb
	s.execTime = st.ExecTime
	s.counter = st.Counter
	s.running = st.Running
	s.reason = st.Reason
	s.result = st.Result
	s.stop.Store(st.Stopping)
	switch st.State {
	case StateActive.String():
		s.state = StateActive
	case StateStopped.String():
		s.state = StateStopped
	default:
		s.state = StateAsleep
	}

	if s.running {
		s.history = NewHistory(st.ExecTime)
		for i, sample := range st.History {
			s.history.Write(i, sample)
		}
		s.configured = true
		s.ctx = context.Background()
	} else {
		s.history = nil
		s.configured = false
	}
	return nil
}
