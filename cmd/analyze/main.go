// Command analyze prints quick, human-readable heuristics about the PGM maps
// in the maps directory. It summarizes dimensions, obstacle density, dirt,
// the tick budget a full sweep needs, and highlights dirt that is too far
// from the base to clean and still come back to recharge.
package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

// AnalysisPoint denotes a grid coordinate used during analysis output.
type AnalysisPoint struct {
	X, Y int
}

// Analysis holds the figures printed for one map
type Analysis struct {
	Name       string
	Rows, Cols int
	FreeCells  int
	WallCells  int
	DirtCells  int
	DirtDepth  int
	Start      AnalysisPoint
	HasBase    bool
	Reachable  int
	// Farthest is the battery cost of the most expensive cell to reach
	Farthest float64
	// MinTicks is a lower bound on the ticks needed to visit every
	// reachable cell and clean every reachable unit of dirt
	MinTicks int
	// Stranded lists dirt whose round trip from the start costs more than a
	// full battery
	Stranded []AnalysisPoint
}

func main() {
	dir := "maps"
	if env := os.Getenv("MAPS_DIR"); env != "" {
		dir = env
	}
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob(filepath.Join(dir, "*.pgm"))
		if err != nil {
			fmt.Printf("Error listing maps: %v\n", err)
			os.Exit(1)
		}
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		if _, err := analyzeMap(os.Stdout, file); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func analyzeMap(w io.Writer, path string) (*Analysis, error) {
	m, err := engine.LoadMapFile(path)
	if err != nil {
		return nil, err
	}
	a := analyze(m)
	a.Name = filepath.Base(path)
	report(w, a)
	return a, nil
}

func analyze(m *engine.Map) *Analysis {
	a := &Analysis{Rows: m.Rows(), Cols: m.Cols()}
	a.FreeCells, a.DirtDepth = m.CountCells()
	a.WallCells = a.Rows*a.Cols - a.FreeCells
	a.DirtCells = len(m.DirtRecords())

	if base, ok := m.Base(); ok {
		a.Start = AnalysisPoint{base.X, base.Y}
		a.HasBase = true
	} else {
		a.Start = AnalysisPoint{1, 1}
	}

	cost := travelCost(m, a.Start)
	a.Reachable = len(cost)

	reachableDepth := 0
	for p, c := range cost {
		if c > a.Farthest {
			a.Farthest = c
		}
		reachableDepth += m.CellDirt(p.Y, p.X)
	}
	// wake, one move per cell besides the start, one clean per unit of dirt
	if a.Reachable > 0 {
		a.MinTicks = 1 + (a.Reachable - 1) + reachableDepth
	}

	for _, d := range m.DirtRecords() {
		p := AnalysisPoint{d.X, d.Y}
		c, ok := cost[p]
		if !ok {
			continue
		}
		if 2*c+float64(d.Depth)*engine.CostClean > engine.MaxBattery {
			a.Stranded = append(a.Stranded, p)
		}
	}
	return a
}

// travelCost returns the cheapest battery cost from start to every
// reachable cell, with straight moves costing CostMove and diagonal moves
// CostMoveDiag.
func travelCost(m *engine.Map, start AnalysisPoint) map[AnalysisPoint]float64 {
	cost := make(map[AnalysisPoint]float64)
	if m.IsWall(start.Y, start.X) {
		return cost
	}

	done := make(map[AnalysisPoint]bool)
	cost[start] = 0
	for {
		cur, best := AnalysisPoint{}, math.Inf(1)
		for p, c := range cost {
			if !done[p] && c < best {
				cur, best = p, c
			}
		}
		if math.IsInf(best, 1) {
			return cost
		}
		done[cur] = true

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				n := AnalysisPoint{cur.X + dx, cur.Y + dy}
				if m.IsWall(n.Y, n.X) || done[n] {
					continue
				}
				step := engine.CostMove
				if dx != 0 && dy != 0 {
					step = engine.CostMoveDiag
				}
				if c, seen := cost[n]; !seen || best+step < c {
					cost[n] = best + step
				}
			}
		}
	}
}

func report(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Grid Size: %d x %d\n", a.Rows, a.Cols)
	interior := (a.Rows - 2) * (a.Cols - 2)
	obstacles := a.WallCells - (2*a.Rows + 2*a.Cols - 4)
	if interior > 0 {
		fmt.Fprintf(w, "Obstacle Density: %.1f%% (%d interior walls)\n", 100*float64(obstacles)/float64(interior), obstacles)
	}
	fmt.Fprintf(w, "Free Cells: %d\n", a.FreeCells)
	fmt.Fprintf(w, "Dirty Cells: %d (total depth %d)\n", a.DirtCells, a.DirtDepth)
	if a.HasBase {
		fmt.Fprintf(w, "Base Position: (%d, %d)\n", a.Start.X, a.Start.Y)
	} else {
		fmt.Fprintf(w, "Base Position: none, robot starts at (%d, %d)\n", a.Start.X, a.Start.Y)
	}

	if unreachable := a.FreeCells - a.Reachable; unreachable > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d free cells cannot be reached from the start\n", unreachable)
	} else {
		fmt.Fprintf(w, "✅ Every free cell is reachable from the start\n")
	}

	fmt.Fprintf(w, "Farthest Cell: %.1f battery units away\n", a.Farthest)
	fmt.Fprintf(w, "Full Sweep: at least %d ticks (budget %d)\n", a.MinTicks, engine.MaxArea)
	if a.MinTicks > engine.MaxArea {
		fmt.Fprintf(w, "⚠️  WARNING: a full sweep cannot fit in the largest tick budget\n")
	}

	if len(a.Stranded) > 0 {
		fmt.Fprintf(w, "⚠️  CRITICAL: %d dirty cells cannot be cleaned on one battery charge with a return trip\n", len(a.Stranded))
		for i, p := range a.Stranded {
			if i < 5 {
				fmt.Fprintf(w, "   Stranded: (%d, %d)\n", p.X, p.Y)
			}
		}
		if len(a.Stranded) > 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(a.Stranded)-5)
		}
	} else {
		fmt.Fprintf(w, "✅ All reachable dirt can be cleaned with a return to base\n")
	}
}
