package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/programs"
	"github.com/wricardo/mcp-training/roombasim/game/results"
)

var (
	ErrRunInProgress   = errors.New("a run is in progress")
	ErrRunFinished     = errors.New("run finished, reset the session to start again")
	ErrRobotAsleep     = errors.New("robot is asleep, wake it first")
	ErrUnknownAction   = errors.New("unknown action")
	ErrResultsDisabled = errors.New("results store not configured")
)

// SimService defines all simulator operations exposed to transports
type SimService interface {
	// Session Management
	CreateSession(ctx context.Context, mapName string, execTime int, team string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ResetSession(ctx context.Context, sessionID string) (*SessionInfo, error)

	// Robot Control
	Act(ctx context.Context, sessionID string, req ActionRequest) (*ActionResult, error)
	RunProgram(ctx context.Context, sessionID string, req RunRequest) (*SessionInfo, error)
	StopSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListPrograms(ctx context.Context) []programs.Program

	// Simulation State
	GetState(ctx context.Context, sessionID string) (*StateView, error)
	GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)
	GetStats(ctx context.Context, sessionID string) (*StatsResponse, error)

	// Maps
	ListMaps(ctx context.Context) ([]*MapInfo, error)
	LoadMap(ctx context.Context, mapName string) (*MapDetail, error)
	GenerateMap(ctx context.Context, mapName string, opts GenerateOptions) (*MapDetail, error)

	// Results
	ListResults(ctx context.Context, filter results.Filter) ([]results.Run, error)

	// Shutdown stops background programs and waits for them
	Shutdown(ctx context.Context) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, mapName string, arena *engine.Map, execTime int) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// MapManager handles the map catalogue
type MapManager interface {
	LoadMap(name string) (*engine.Map, error)
	ListMaps() ([]*MapInfo, error)
	GetDefault() *engine.Map
	SaveMap(name string, m *engine.Map) error
	GenerateMap(name string, opts GenerateOptions) (*engine.Map, error)
}

// ResultStore keeps the statistics of finished runs
type ResultStore interface {
	Record(team, mapName string, st engine.Statistics) (results.Run, error)
	List(f results.Filter) ([]results.Run, error)
}

// Publisher receives live updates for a session. The websocket hub
// implements it.
type Publisher interface {
	Publish(sessionID, event string, data interface{})
}

// Session represents an active simulation session. Sim is not safe for
// concurrent use: hold the session lock while touching it.
type Session struct {
	ID             string
	Sim            *engine.Simulator
	MapName        string
	Team           string
	Program        string
	ExecTime       int
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Arena is the untouched map every reset starts from
	Arena *engine.Map

	// Busy is set while a program drives the simulator in the background
	Busy bool

	mu sync.Mutex
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Manual returns the callbacks of a session driven action by action
func Manual() engine.Callbacks {
	return engine.Callbacks{Behavior: func() {}}
}
