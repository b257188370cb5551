package service

import (
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

// SessionInfo provides information about a simulation session
type SessionInfo struct {
	ID             string            `json:"id"`
	MapName        string            `json:"map_name"`
	Team           string            `json:"team,omitempty"`
	Program        string            `json:"program,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	ExecTime       int               `json:"exec_time"`
	Counter        int               `json:"counter"`
	State          string            `json:"state"`
	Running        bool              `json:"running"`
	Busy           bool              `json:"busy"`
	Robot          engine.Sensor     `json:"robot"`
	Stats          engine.Statistics `json:"stats"`
	Reason         engine.StopReason `json:"reason,omitempty"`
}

// ActionRequest is a single robot command. Angle is in radians and only
// used by "turn".
type ActionRequest struct {
	Action string  `json:"action"` // wake, turn, forward, clean, load, stop
	Angle  float64 `json:"angle,omitempty"`
}

// ActionResult contains the outcome of one command
type ActionResult struct {
	Action    string            `json:"action"`
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Remaining *int              `json:"remaining,omitempty"` // dirt left after clean
	Robot     engine.Sensor     `json:"robot"`
	Counter   int               `json:"counter"`
	ExecTime  int               `json:"exec_time"`
	Done      bool              `json:"done"`
	Reason    engine.StopReason `json:"reason,omitempty"`
	Stats     engine.Statistics `json:"stats"`
}

// RunRequest starts a built-in program. With Wait the call returns once the
// run has finished.
type RunRequest struct {
	Program string `json:"program"`
	Wait    bool   `json:"wait,omitempty"`
}

// StateView is a read-only picture of a session for clients
type StateView struct {
	SessionID string            `json:"session_id"`
	MapName   string            `json:"map_name"`
	Rows      int               `json:"rows"`
	Cols      int               `json:"cols"`
	Layout    []string          `json:"layout"`
	Base      *engine.Position  `json:"base,omitempty"`
	Robot     engine.Sensor     `json:"robot"`
	AtBase    bool              `json:"at_base"`
	Visited   []engine.Position `json:"visited"`
	Stats     engine.Statistics `json:"stats"`
	Counter   int               `json:"counter"`
	ExecTime  int               `json:"exec_time"`
	State     string            `json:"state"`
	Running   bool              `json:"running"`
	Busy      bool              `json:"busy"`
	Program   string            `json:"program,omitempty"`
	Reason    engine.StopReason `json:"reason,omitempty"`
}

// TickEvent is published for every recorded sample
type TickEvent struct {
	Tick   int           `json:"tick"`
	Sample engine.Sensor `json:"sample"`
}

// StatsResponse carries the statistics of the current or last run
type StatsResponse struct {
	Stats    engine.Statistics `json:"stats"`
	Coverage float64           `json:"coverage"`
	Ticks    int               `json:"ticks"`
	Finished bool              `json:"finished"`
	Reason   engine.StopReason `json:"reason,omitempty"`
}

// HistoryOptions configures history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated tick samples
type HistoryResponse struct {
	Samples      []engine.Sensor `json:"samples"`
	TotalSamples int             `json:"total_samples"`
	Page         int             `json:"page"`
	PageSize     int             `json:"page_size"`
	TotalPages   int             `json:"total_pages"`
	HasNext      bool            `json:"has_next"`
	HasPrevious  bool            `json:"has_previous"`
}

// MapInfo provides information about a map in the catalogue
type MapInfo struct {
	Filename  string           `json:"filename,omitempty"`
	MapID     string           `json:"map_id"` // The identifier to use for session creation
	Rows      int              `json:"rows"`
	Cols      int              `json:"cols"`
	CellTotal int              `json:"cell_total"`
	DirtCells int              `json:"dirt_cells"`
	DirtTotal int              `json:"dirt_total"`
	Base      *engine.Position `json:"base,omitempty"`
}

// NewMapInfo summarizes a map for listings
func NewMapInfo(m *engine.Map) *MapInfo {
	cells, dirt := m.CountCells()
	info := &MapInfo{
		MapID:     m.Name,
		Rows:      m.Rows(),
		Cols:      m.Cols(),
		CellTotal: cells,
		DirtCells: len(m.DirtRecords()),
		DirtTotal: dirt,
	}
	if base, ok := m.Base(); ok {
		info.Base = &base
	}
	return info
}

// MapDetail is a map with its ASCII layout
type MapDetail struct {
	MapInfo
	Layout []string `json:"layout"`
}

// GenerateOptions configures random map generation. A preset overrides the
// dirt, density and base settings.
type GenerateOptions struct {
	Preset     string  `json:"preset,omitempty"`
	Rows       int     `json:"rows,omitempty"`
	Cols       int     `json:"cols,omitempty"`
	Dirt       int     `json:"dirt,omitempty"`
	Density    float64 `json:"density,omitempty"`
	Seed       int64   `json:"seed,omitempty"`
	RandomBase bool    `json:"random_base,omitempty"`
}
