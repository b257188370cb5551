// Command validate checks the PGM maps in a maps directory (../maps by
// default, or the first argument). For every map it checks:
//   - the P2 header and cell values
//   - size limits and a closed wall border
//   - a base, when present, sitting on the inner edge
//   - connectivity: every free or dirty cell is reachable from the start cell
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateMap loads and validates a single PGM map file
func validateMap(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	m, err := engine.LoadMapFile(filePath)
	if err != nil {
		result.fail("Failed to load map: %v", err)
		return result
	}

	if err := engine.ValidateMap(m); err != nil {
		result.fail("%v", err)
		return result
	}

	cells, dirt := m.CountCells()
	if cells == 0 {
		result.fail("Map has no free cells")
		return result
	}

	start, hasBase := m.Base()
	if !hasBase {
		start = engine.Position{X: 1, Y: 1}
		if m.IsWall(start.Y, start.X) {
			result.fail("Map has no base and the default start (1,1) is a wall")
			return result
		}
	}

	reach := validateConnectivity(m, start)
	if !reach.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, reach.Errors...)

	if result.Valid {
		result.info("Grid: %dx%d", m.Rows(), m.Cols())
		if hasBase {
			result.info("Base: (%d,%d)", start.X, start.Y)
		} else {
			result.info("Base: none, robot starts at (1,1)")
		}
		result.info("Free cells: %d", cells)
		result.info("Dirty cells: %d (total depth %d)", len(m.DirtRecords()), dirt)
	}

	return result
}

// validateConnectivity flood fills from start over non-wall cells. Forward
// steps may be diagonal and only the destination cell is checked, so the
// fill uses all eight neighbours.
func validateConnectivity(m *engine.Map, start engine.Position) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	if m.IsWall(start.Y, start.X) {
		result.fail("Start cell (%d,%d) is a wall", start.X, start.Y)
		return result
	}

	visited := make(map[engine.Position]bool)
	queue := []engine.Position{start}
	visited[start] = true

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := engine.Position{X: p.X + dx, Y: p.Y + dy}
				if visited[n] || m.IsWall(n.Y, n.X) {
					continue
				}
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}

	var unreachableDirt []engine.DirtRecord
	for _, d := range m.DirtRecords() {
		if !visited[engine.Position{X: d.X, Y: d.Y}] {
			unreachableDirt = append(unreachableDirt, d)
		}
	}

	cells, _ := m.CountCells()
	isolated := cells - len(visited)

	if len(unreachableDirt) > 0 {
		result.fail("Connectivity failure: %d/%d dirty cells unreachable from start", len(unreachableDirt), len(m.DirtRecords()))
		for _, d := range unreachableDirt {
			result.Errors = append(result.Errors, fmt.Sprintf("Unreachable: dirt %d at (%d,%d)", d.Depth, d.X, d.Y))
		}
	} else {
		result.info("Connectivity: all %d dirty cells reachable from start", len(m.DirtRecords()))
	}
	if isolated > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Warning: %d free cells can never be visited", isolated))
	}

	return result
}

// main validates every *.pgm file in the maps directory, printing a concise
// report and exiting with non-zero status if any are invalid.
func main() {
	mapDir := "../maps"
	if len(os.Args) > 1 {
		mapDir = os.Args[1]
	}
	files, err := filepath.Glob(filepath.Join(mapDir, "*.pgm"))
	if err != nil {
		fmt.Printf("Error finding map files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No maps found in %s\n", mapDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateMap(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All maps are valid!")
	} else {
		fmt.Println("❌ Some maps have errors")
		os.Exit(1)
	}
}
