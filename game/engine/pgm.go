package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const pgmMagic = "P2"

// LoadMap parses a plain-text PGM (P2) stream into a map. A '#' starts a
// comment running to the end of the line. The maxval must be 255.
func LoadMap(r io.Reader, name string) (*Map, error) {
	tokens, err := pgmTokens(r)
	if err != nil {
		return nil, err
	}
	if len(tokens) < 4 {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedMap)
	}
	if tokens[0] != pgmMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformedMap, tokens[0])
	}

	header := make([]int, 3)
	for i := range header {
		v, err := strconv.Atoi(tokens[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: header field %d: %v", ErrMalformedMap, i+1, err)
		}
		header[i] = v
	}
	cols, rows := header[0], header[1]
	if rows > MaxWorldSize || cols > MaxWorldSize {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrWorldTooLarge, rows, cols, MaxWorldSize, MaxWorldSize)
	}
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedMap, rows, cols)
	}
	if header[2] != PGMMax {
		return nil, fmt.Errorf("%w: maxval %d, want %d", ErrMalformedMap, header[2], PGMMax)
	}

	body := tokens[4:]
	if len(body) < rows*cols {
		return nil, fmt.Errorf("%w: expected %d cells, got %d", ErrMalformedMap, rows*cols, len(body))
	}

	m := &Map{Name: name, rows: rows, cols: cols, dirtIdx: make(map[Position]int)}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v, err := strconv.Atoi(body[y*cols+x])
			if err != nil {
				return nil, fmt.Errorf("%w: cell (%d,%d): %v", ErrMalformedMap, y, x, err)
			}
			switch {
			case v == PGMWall:
				m.cells[y][x] = CellWall
			case v == PGMEmpty:
				m.cells[y][x] = CellEmpty
			case v == PGMBase:
				if m.hasBase {
					return nil, fmt.Errorf("%w: second base at (%d,%d)", ErrMalformedMap, y, x)
				}
				m.cells[y][x] = CellBase
				m.base = Position{X: x, Y: y}
				m.hasBase = true
			case v >= 1 && v <= MaxDirt:
				m.setCell(y, x, DirtCell(v))
			default:
				return nil, fmt.Errorf("%w: value %d at (%d,%d)", ErrMalformedMap, v, y, x)
			}
		}
	}
	return m, nil
}

func pgmTokens(r io.Reader) ([]string, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line, _, _ := strings.Cut(scanner.Text(), "#")
		tokens = append(tokens, strings.Fields(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	return tokens, nil
}

// Save writes the map as a plain-text PGM stream
func (m *Map) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n#roomba map\n%d %d\n%d\n", pgmMagic, m.cols, m.rows, PGMMax)
	for y := 0; y < m.rows; y++ {
		for x := 0; x < m.cols; x++ {
			if x > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.Itoa(pgmValue(m.cells[y][x])))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func pgmValue(c Cell) int {
	switch c {
	case CellWall:
		return PGMWall
	case CellBase:
		return PGMBase
	case CellEmpty:
		return PGMEmpty
	}
	return c.Dirt()
}

// LoadMapFile reads a PGM map from disk. The file path becomes the map name.
func LoadMapFile(filename string) (*Map, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := LoadMap(f, filename)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	return m, nil
}

// SaveFile writes the map to disk in PGM format
func (m *Map) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", filename, err)
	}
	return f.Close()
}
