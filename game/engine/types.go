package engine

import (
	"fmt"
	"math"
)

const (
	// World limits
	MaxWorldSize = 50
	MaxArea      = MaxWorldSize * MaxWorldSize
	MinWorldSize = 3
	MaxDirt      = 5

	// Battery limits
	MaxBattery    = 1000.0
	StopThreshold = 0.1
	ChargeStep    = 10.0

	// Action costs
	CostTurn     = 0.1
	CostMove     = 1.0
	CostMoveDiag = 1.4
	CostBump     = 0.5
	CostClean    = 0.5

	// Default arena used when no map has been loaded
	DefaultDirtCells  = 100
	DefaultMaxDensity = 0.05

	// PGM sentinels
	PGMWall  = 128
	PGMEmpty = 255
	PGMBase  = 0
	PGMMax   = 255

	WebSocketBufferSize = 256
)

// Cell is the content of a single grid cell. Values 1..MaxDirt are dirt depths.
type Cell uint8

const (
	CellEmpty Cell = 0
	CellWall  Cell = 100
	CellBase  Cell = 101
)

// DirtCell returns the cell holding the given dirt depth, clamped to [0, MaxDirt].
func DirtCell(depth int) Cell {
	if depth <= 0 {
		return CellEmpty
	}
	if depth > MaxDirt {
		depth = MaxDirt
	}
	return Cell(depth)
}

// Dirt returns the dirt depth of the cell, 0 for walls, bases and empty cells.
func (c Cell) Dirt() int {
	if c >= 1 && c <= MaxDirt {
		return int(c)
	}
	return 0
}

// Char returns the ASCII glyph used by layouts.
func (c Cell) Char() byte {
	switch {
	case c == CellWall:
		return '#'
	case c == CellBase:
		return 'B'
	case c.Dirt() > 0:
		return byte('0' + c.Dirt())
	default:
		return '.'
	}
}

func (c Cell) String() string {
	switch {
	case c == CellWall:
		return "wall"
	case c == CellBase:
		return "base"
	case c.Dirt() > 0:
		return fmt.Sprintf("dirt(%d)", c.Dirt())
	default:
		return "empty"
	}
}

// Position represents x,y coordinates; x is the column and y the row
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DirtRecord tracks a dirty cell of the map
type DirtRecord struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Depth int `json:"depth"`
}

// Sensor is the robot state as seen by a control program. It is also the
// unit recorded in the tick history.
type Sensor struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Heading  float64 `json:"heading"`
	Bumper   bool    `json:"bumper"`
	Infrared int     `json:"infrared"`
	Battery  float64 `json:"battery"`
}

// HeadingDegrees returns the heading converted to degrees
func (s Sensor) HeadingDegrees() float64 {
	return s.Heading * 180 / math.Pi
}

// Statistics is a value snapshot of the run counters
type Statistics struct {
	CellTotal    int     `json:"cell_total"`
	CellVisited  int     `json:"cell_visited"`
	DirtTotal    int     `json:"dirt_total"`
	DirtCleaned  int     `json:"dirt_cleaned"`
	BatteryTotal float64 `json:"bat_total"`
	BatteryMean  float64 `json:"bat_mean"`
	Forward      int     `json:"forward"`
	Turn         int     `json:"turn"`
	Bumps        int     `json:"bumps"`
	Clean        int     `json:"clean"`
	Load         int     `json:"load"`
}

// Coverage returns the share of reachable cells visited so far
func (s Statistics) Coverage() float64 {
	if s.CellTotal == 0 {
		return 0
	}
	return float64(s.CellVisited) / float64(s.CellTotal)
}

// Action identifies a counted robot action
type Action int

const (
	ActionForward Action = iota
	ActionTurn
	ActionBump
	ActionClean
	ActionLoad
)

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionTurn:
		return "turn"
	case ActionBump:
		return "bump"
	case ActionClean:
		return "clean"
	case ActionLoad:
		return "load"
	}
	return "unknown"
}

// RunState is the lifecycle phase of a simulator
type RunState int

const (
	StateAsleep RunState = iota
	StateActive
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateAsleep:
		return "asleep"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}
