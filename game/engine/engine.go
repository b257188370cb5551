package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// Callbacks is the control program driven by the execution loop. OnStart
// runs once before the loop, Behavior once per iteration and OnStop after
// the run has been persisted. Only Behavior is required.
type Callbacks struct {
	OnStart  func()
	Behavior func()
	OnStop   func()
}

// Actuator is the robot API available to control programs. *Simulator
// implements it.
type Actuator interface {
	Wake() (x, y int)
	Turn(alpha float64)
	Forward() bool
	Clean() int
	Load() bool

	State() Sensor
	Bumper() bool
	Infrared() int
	Battery() float64
	AtBase() bool
	BasePosition() (Position, bool)
}

// StopReason explains why a run ended
type StopReason string

const (
	StopBattery   StopReason = "battery"
	StopBudget    StopReason = "budget"
	StopRequested StopReason = "requested"
	StopCancelled StopReason = "cancelled"
	// StopContract ends a run whose program acts on a sleeping robot
	StopContract  StopReason = "contract"
)

// RunResult is what a finished run hands back after teardown
type RunResult struct {
	Stats   Statistics `json:"stats"`
	History []Sensor   `json:"history"`
	Ticks   int        `json:"ticks"`
	Reason  StopReason `json:"reason"`
}

// Simulator is the simulation context: map, robot, statistics, history and
// loop state. It is not safe for concurrent use except for RequestStop.
type Simulator struct {
	world   *Map
	robot   Robot
	stats   Stats
	history *History

	counter  int
	execTime int
	state    RunState

	callbacks  Callbacks
	configured bool
	running    bool
	stop       atomic.Bool
	reason     StopReason
	ctx        context.Context
	result     *RunResult

	sink     Sink
	rng      *rand.Rand
	logger   *log.Logger
	observer func(Sensor)
}

// NewSimulator creates an unconfigured simulator with no map loaded
func NewSimulator() *Simulator {
	return &Simulator{
		rng:    NewRand(time.Now().UnixNano()),
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets the logger used for debug traces
func (s *Simulator) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	s.logger = l
}

// SetSink sets where the run log, statistics and generated maps are persisted
func (s *Simulator) SetSink(sink Sink) {
	s.sink = sink
}

// SetRand replaces the random source used for default map generation
func (s *Simulator) SetRand(r *rand.Rand) {
	if r != nil {
		s.rng = r
	}
}

// OnTick registers a function called with every recorded sample
func (s *Simulator) OnTick(fn func(Sensor)) {
	s.observer = fn
}

// SetMap loads a map into the simulator. Statistics are rebuilt from it.
func (s *Simulator) SetMap(m *Map) error {
	if m == nil {
		return fmt.Errorf("map cannot be nil")
	}
	if s.running {
		return ErrRunInProgress
	}
	s.logger.Printf("Loading map %s (%dx%d)", m.Name, m.rows, m.cols)
	s.world = m
	s.stats.Reset()
	s.stats.RebuildFromMap(m)
	return nil
}

// Map returns the loaded map, nil before Configure or SetMap
func (s *Simulator) Map() *Map {
	return s.world
}

// Configure installs the control program and the tick budget. execTime
// outside (0, MaxArea] is clamped to MaxArea. When no map is loaded a
// default arena is generated.
func (s *Simulator) Configure(cb Callbacks, execTime int) error {
	if cb.Behavior == nil {
		return ErrNoBehavior
	}
	if s.running {
		return ErrRunInProgress
	}
	if execTime <= 0 || execTime > MaxArea {
		execTime = MaxArea
	}

	if s.world == nil {
		m, err := Generate(s.rng, MaxWorldSize, MaxWorldSize, DefaultDirtCells, s.rng.Float64()*DefaultMaxDensity)
		if err != nil {
			return fmt.Errorf("generate default map: %w", err)
		}
		s.world = m
	}

	s.callbacks = cb
	s.execTime = execTime
	s.history = NewHistory(execTime)
	s.counter = 0
	s.robot = Robot{}
	s.state = StateAsleep
	s.stats.Reset()
	s.stats.RebuildFromMap(s.world)
	s.stop.Store(false)
	s.reason = ""
	s.result = nil
	s.configured = true
	return nil
}

// ExecTime returns the configured tick budget
func (s *Simulator) ExecTime() int { return s.execTime }

// Counter returns the number of advancing ticks recorded so far
func (s *Simulator) Counter() int { return s.counter }

// RunState returns the lifecycle phase
func (s *Simulator) RunState() RunState { return s.state }

// Running reports whether a run has begun and not finished
func (s *Simulator) Running() bool { return s.running }

// Stats returns a snapshot of the statistics
func (s *Simulator) Stats() Statistics { return s.stats.Snapshot() }

// History returns a copy of the samples recorded so far
func (s *Simulator) History() []Sensor {
	if s.result != nil && s.history == nil {
		out := make([]Sensor, len(s.result.History))
		copy(out, s.result.History)
		return out
	}
	return s.history.Samples(s.counter)
}

// VisitedCells lists the cells the robot has entered
func (s *Simulator) VisitedCells() []Position { return s.stats.VisitedCells() }

// RequestStop asks the loop to end the run at the next check. Safe to call
// from any goroutine.
func (s *Simulator) RequestStop() {
	s.stop.Store(true)
}

// Run drives the control program until the battery is exhausted, the tick
// budget is spent, a stop is requested or ctx is cancelled, then tears down.
func (s *Simulator) Run(ctx context.Context) (*RunResult, error) {
	if err := s.Begin(ctx); err != nil {
		return nil, err
	}
	for s.Step(s.callbacks.Behavior) {
	}
	return s.Finish(), nil
}

// Begin starts a run without driving the loop. Use Step to advance it and
// Finish to tear it down.
func (s *Simulator) Begin(ctx context.Context) error {
	if !s.configured {
		return ErrNotConfigured
	}
	if s.running {
		return ErrRunInProgress
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.counter = 0
	s.stop.Store(false)
	s.reason = ""
	s.result = nil
	s.running = true
	s.logger.Printf("Run started: budget %d ticks", s.execTime)
	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart()
	}
	return nil
}

// Step invokes fn once unless the run should stop. It reports whether fn ran.
func (s *Simulator) Step(fn func()) bool {
	if !s.running || s.Done() {
		return false
	}
	fn()
	return true
}

// Done reports whether the loop condition no longer holds
func (s *Simulator) Done() bool {
	switch {
	case s.stop.Load():
		if s.reason == "" {
			s.reason = StopRequested
		}
		return true
	case s.counter >= s.execTime:
		s.reason = StopBudget
		return true
	case s.ctx != nil && s.ctx.Err() != nil:
		s.reason = StopCancelled
		return true
	}
	return false
}

// Finish ends the run: persists the log, then the statistics, releases the
// history buffer and finally calls OnStop. Persistence failures are logged
// and do not abort the teardown. Calling Finish again returns the same result.
func (s *Simulator) Finish() *RunResult {
	if !s.running {
		return s.result
	}
	if !s.Done() && s.reason == "" {
		s.reason = StopRequested
	}
	s.running = false
	s.configured = false
	s.state = StateStopped

	samples := s.history.Samples(s.counter)
	s.stats.SetBatteryMean(s.history.MeanBattery(s.counter))
	stats := s.stats.Snapshot()

	if s.sink != nil {
		if err := s.sink.SaveLog(samples); err != nil {
			log.Printf("Warning: failed to save run log: %v", err)
		}
		if err := s.sink.SaveStats(stats); err != nil {
			log.Printf("Warning: failed to save run stats: %v", err)
		}
	}
	s.history.Release()
	s.history = nil

	s.result = &RunResult{
		Stats:   stats,
		History: samples,
		Ticks:   s.counter,
		Reason:  s.reason,
	}
	s.logger.Printf("Run finished after %d ticks (%s)", s.counter, s.reason)

	if s.callbacks.OnStop != nil {
		s.callbacks.OnStop()
	}
	return s.result
}

// Result returns the outcome of the last finished run, nil while running
func (s *Simulator) Result() *RunResult {
	return s.result
}
