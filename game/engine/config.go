package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateMap checks that a map is usable for a run: closed border, a base
// sitting on the interior edge, and dirt records matching the grid.
func ValidateMap(m *Map) error {
	if m == nil {
		return fmt.Errorf("map validation: map is nil")
	}
	if m.rows < MinWorldSize || m.cols < MinWorldSize {
		return fmt.Errorf("map validation: size %dx%d below minimum %d", m.rows, m.cols, MinWorldSize)
	}

	for x := 0; x < m.cols; x++ {
		if m.cells[0][x] != CellWall || m.cells[m.rows-1][x] != CellWall {
			return fmt.Errorf("map validation: border open at column %d", x)
		}
	}
	for y := 0; y < m.rows; y++ {
		if m.cells[y][0] != CellWall || m.cells[y][m.cols-1] != CellWall {
			return fmt.Errorf("map validation: border open at row %d", y)
		}
	}

	if base, ok := m.Base(); ok {
		if !m.IsBase(base.Y, base.X) {
			return fmt.Errorf("map validation: base (%d,%d) is not marked on the grid", base.X, base.Y)
		}
		if base.X != 1 && base.X != m.cols-2 && base.Y != 1 && base.Y != m.rows-2 {
			return fmt.Errorf("map validation: base (%d,%d) is not next to the border", base.X, base.Y)
		}
	}

	for _, d := range m.dirt {
		if got := m.CellDirt(d.Y, d.X); got != d.Depth {
			return fmt.Errorf("map validation: dirt record (%d,%d) depth %d, grid has %d", d.X, d.Y, d.Depth, got)
		}
	}
	return nil
}

// ParseLayout builds a map from rows of glyphs: '#' wall, '.' empty,
// 'B' base and '1'..'5' dirt. All rows must have the same length.
func ParseLayout(layout []string) (*Map, error) {
	rows := len(layout)
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrMalformedMap)
	}
	cols := len(layout[0])
	if rows > MaxWorldSize || cols > MaxWorldSize {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrWorldTooLarge, rows, cols, MaxWorldSize, MaxWorldSize)
	}

	m := &Map{rows: rows, cols: cols, dirtIdx: make(map[Position]int)}
	for y, line := range layout {
		if len(line) != cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformedMap, y, len(line), cols)
		}
		for x := 0; x < cols; x++ {
			switch ch := line[x]; {
			case ch == '#':
				m.cells[y][x] = CellWall
			case ch == '.' || ch == ' ':
				m.cells[y][x] = CellEmpty
			case ch == 'B':
				if m.hasBase {
					return nil, fmt.Errorf("%w: second base at (%d,%d)", ErrMalformedMap, y, x)
				}
				m.cells[y][x] = CellBase
				m.base = Position{X: x, Y: y}
				m.hasBase = true
			case ch >= '1' && ch <= '0'+MaxDirt:
				m.setCell(y, x, DirtCell(int(ch-'0')))
			default:
				return nil, fmt.Errorf("%w: invalid character '%c' at row %d, col %d", ErrMalformedMap, ch, y, x)
			}
		}
	}
	return m, nil
}

// Layout renders the map as rows of glyphs, the inverse of ParseLayout
func (m *Map) Layout() []string {
	out := make([]string, m.rows)
	var sb strings.Builder
	for y := 0; y < m.rows; y++ {
		sb.Reset()
		for x := 0; x < m.cols; x++ {
			sb.WriteByte(m.cells[y][x].Char())
		}
		out[y] = sb.String()
	}
	return out
}

// LoadMapByName loads "<name>.pgm" from the maps directory. MAPS_DIR
// overrides the default "maps" directory.
func LoadMapByName(name string) (*Map, error) {
	if !strings.HasSuffix(name, ".pgm") {
		name = name + ".pgm"
	}
	dir := "maps"
	if env := os.Getenv("MAPS_DIR"); env != "" {
		dir = env
	}
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("map file '%s' not found", name)
	}

	m, err := LoadMapFile(path)
	if err != nil {
		return nil, err
	}
	m.Name = strings.TrimSuffix(name, ".pgm")
	return m, nil
}
