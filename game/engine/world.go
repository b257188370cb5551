package engine

import (
	"fmt"
	"math"
)

// Map is the arena the robot lives in. The grid has a fixed capacity of
// MaxWorldSize x MaxWorldSize; only the first rows x cols cells are active.
type Map struct {
	// Name identifies where the map came from. Empty for generated maps.
	Name string

	cells   [MaxWorldSize][MaxWorldSize]Cell
	rows    int
	cols    int
	dirt    []DirtRecord
	dirtIdx map[Position]int
	base    Position
	hasBase bool
}

// NewMap returns an empty map of the given size surrounded by walls
func NewMap(rows, cols int) (*Map, error) {
	if rows > MaxWorldSize || cols > MaxWorldSize {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrWorldTooLarge, rows, cols, MaxWorldSize, MaxWorldSize)
	}
	if rows < MinWorldSize || cols < MinWorldSize {
		return nil, fmt.Errorf("%w: %dx%d", ErrWorldTooSmall, rows, cols)
	}
	m := &Map{rows: rows, cols: cols, dirtIdx: make(map[Position]int)}
	for y := 0; y < rows; y++ {
		m.cells[y][0] = CellWall
		m.cells[y][cols-1] = CellWall
	}
	for x := 0; x < cols; x++ {
		m.cells[0][x] = CellWall
		m.cells[rows-1][x] = CellWall
	}
	return m, nil
}

// Rows returns the number of active rows
func (m *Map) Rows() int { return m.rows }

// Cols returns the number of active columns
func (m *Map) Cols() int { return m.cols }

func (m *Map) inBounds(y, x int) bool {
	return y >= 0 && y < m.rows && x >= 0 && x < m.cols
}

// Cell returns the cell at row y, column x. Out-of-bounds reads as a wall.
func (m *Map) Cell(y, x int) Cell {
	if !m.inBounds(y, x) {
		return CellWall
	}
	return m.cells[y][x]
}

// IsWall reports whether (y, x) blocks movement. Anything outside the active
// area counts as a wall.
func (m *Map) IsWall(y, x int) bool {
	return m.Cell(y, x) == CellWall
}

// IsBase reports whether (y, x) is the charging base
func (m *Map) IsBase(y, x int) bool {
	return m.inBounds(y, x) && m.cells[y][x] == CellBase
}

// CellDirt returns the dirt depth at (y, x), 0 for anything that is not dirt
func (m *Map) CellDirt(y, x int) int {
	return m.Cell(y, x).Dirt()
}

// SetCellDirt overwrites the dirt depth of a non-wall, non-base cell. The
// matching dirt record is created, updated or kept at depth 0.
func (m *Map) SetCellDirt(y, x, depth int) {
	if !m.inBounds(y, x) {
		return
	}
	c := m.cells[y][x]
	if c == CellWall || c == CellBase {
		return
	}
	m.cells[y][x] = DirtCell(depth)
	m.syncDirt(y, x)
}

// CleanCell removes one unit of dirt from (y, x) and returns the remaining depth
func (m *Map) CleanCell(y, x int) int {
	d := m.CellDirt(y, x)
	if d == 0 {
		return 0
	}
	m.cells[y][x] = DirtCell(d - 1)
	m.syncDirt(y, x)
	return d - 1
}

func (m *Map) syncDirt(y, x int) {
	if m.dirtIdx == nil {
		m.dirtIdx = make(map[Position]int)
	}
	p := Position{X: x, Y: y}
	depth := m.cells[y][x].Dirt()
	if i, ok := m.dirtIdx[p]; ok {
		m.dirt[i].Depth = depth
		return
	}
	if depth > 0 {
		m.dirtIdx[p] = len(m.dirt)
		m.dirt = append(m.dirt, DirtRecord{X: x, Y: y, Depth: depth})
	}
}

// setCell writes a raw cell value, used while building a map
func (m *Map) setCell(y, x int, c Cell) {
	m.cells[y][x] = c
	if c.Dirt() > 0 {
		m.syncDirt(y, x)
	}
}

// DirtRecords returns a copy of the dirt records in creation order
func (m *Map) DirtRecords() []DirtRecord {
	out := make([]DirtRecord, len(m.dirt))
	copy(out, m.dirt)
	return out
}

// Base returns the base coordinates and whether a base is recorded
func (m *Map) Base() (Position, bool) {
	return m.base, m.hasBase
}

// PutBase marks (x, y) as the base and returns the heading that faces the
// interior of the arena from that spot.
func (m *Map) PutBase(x, y int) float64 {
	if m.hasBase && m.inBounds(m.base.Y, m.base.X) && m.cells[m.base.Y][m.base.X] == CellBase {
		m.cells[m.base.Y][m.base.X] = CellEmpty
	}
	if m.inBounds(y, x) {
		if m.cells[y][x].Dirt() > 0 {
			m.cells[y][x] = CellEmpty
			m.syncDirt(y, x)
		}
		m.cells[y][x] = CellBase
	}
	m.base = Position{X: x, Y: y}
	m.hasBase = true
	return BaseHeading(x, y, m.cols)
}

// BaseHeading returns the heading facing into the arena for a base at (x, y)
func BaseHeading(x, y, cols int) float64 {
	switch {
	case x == 1:
		return 0
	case x == cols-2:
		return math.Pi
	case y == 1:
		return math.Pi / 2
	default:
		return 3 * math.Pi / 2
	}
}

// CountCells returns the number of non-wall cells and the sum of dirt depths
func (m *Map) CountCells() (cells, dirt int) {
	for y := 0; y < m.rows; y++ {
		for x := 0; x < m.cols; x++ {
			c := m.cells[y][x]
			if c == CellWall {
				continue
			}
			cells++
			dirt += c.Dirt()
		}
	}
	return cells, dirt
}

// Grid returns a copy of the active area
func (m *Map) Grid() [][]Cell {
	grid := make([][]Cell, m.rows)
	for y := range grid {
		grid[y] = make([]Cell, m.cols)
		copy(grid[y], m.cells[y][:m.cols])
	}
	return grid
}

// Clone returns a deep copy of the map
func (m *Map) Clone() *Map {
	c := *m
	c.dirt = m.DirtRecords()
	c.dirtIdx = make(map[Position]int, len(m.dirtIdx))
	for k, v := range m.dirtIdx {
		c.dirtIdx[k] = v
	}
	return &c
}
