package engine

import (
	"fmt"
	"math/rand/v2"
)

// NewRand creates a deterministic random source for map generation
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// Generate builds a random arena of nrow x ncol cells.
//
// density >= 1 places int(density) straight wall segments, each vertical or
// horizontal with equal probability. 0 < density < 1 turns every interior
// cell at distance >= 2 from the border into a wall with that probability.
// numDirty dirt cells of depth 1..MaxDirt are then placed on empty cells.
func Generate(rng *rand.Rand, nrow, ncol, numDirty int, density float64) (*Map, error) {
	m, err := NewMap(nrow, ncol)
	if err != nil {
		return nil, err
	}

	switch {
	case density >= 1:
		for i := 0; i < int(density); i++ {
			if rng.IntN(2) == 1 {
				m.verticalWall(rng)
			} else {
				m.horizontalWall(rng)
			}
		}
	case density > 0:
		for y := 2; y < nrow-2; y++ {
			for x := 2; x < ncol-2; x++ {
				if rng.Float64() < density {
					m.cells[y][x] = CellWall
				}
			}
		}
	}

	if err := m.placeDirt(rng, numDirty); err != nil {
		return nil, err
	}
	return m, nil
}

// verticalWall draws a wall segment in a random interior column. Segments
// are clipped so the border corridor stays open.
func (m *Map) verticalWall(rng *rand.Rand) {
	if m.rows < 5 || m.cols < 5 {
		return
	}
	length := rng.IntN(m.rows)/2 + m.rows/4
	start := rng.IntN(m.rows)/2 + 2
	col := rng.IntN(m.cols-4) + 2
	for y := start; y < start+length && y < m.rows-2; y++ {
		m.cells[y][col] = CellWall
	}
}

func (m *Map) horizontalWall(rng *rand.Rand) {
	if m.rows < 5 || m.cols < 5 {
		return
	}
	length := rng.IntN(m.cols)/2 + m.cols/4
	start := rng.IntN(m.cols)/2 + 2
	row := rng.IntN(m.rows-4) + 2
	for x := start; x < start+length && x < m.cols-2; x++ {
		m.cells[row][x] = CellWall
	}
}

// placeDirt rejection-samples empty interior cells. The origin (1,1) is
// skipped since a robot woken without a base is parked there.
func (m *Map) placeDirt(rng *rand.Rand, numDirty int) error {
	if numDirty <= 0 {
		return nil
	}
	free := 0
	for y := 1; y < m.rows-1; y++ {
		for x := 1; x < m.cols-1; x++ {
			if m.cells[y][x] == CellEmpty && !(x == 1 && y == 1) {
				free++
			}
		}
	}
	if numDirty > free {
		return fmt.Errorf("%w: want %d, have %d", ErrTooMuchDirt, numDirty, free)
	}

	for i := 0; i < numDirty; i++ {
		var y, x int
		for {
			y = rng.IntN(m.rows-2) + 1
			x = rng.IntN(m.cols-2) + 1
			if m.cells[y][x] == CellEmpty && !(x == 1 && y == 1) {
				break
			}
		}
		m.setCell(y, x, DirtCell(rng.IntN(MaxDirt)+1))
	}
	return nil
}
