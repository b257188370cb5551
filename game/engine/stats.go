package engine

// Stats accumulates the counters of a run along with the set of visited cells
type Stats struct {
	counters Statistics
	visited  [MaxWorldSize][MaxWorldSize]bool
}

// Reset zeroes every counter and clears the visited set
func (s *Stats) Reset() {
	*s = Stats{}
}

// RebuildFromMap recomputes the cell and dirt totals from the map
func (s *Stats) RebuildFromMap(m *Map) {
	s.counters.CellTotal, s.counters.DirtTotal = m.CountCells()
}

// Visit marks a cell as visited, counting it the first time only
func (s *Stats) Visit(x, y int) {
	if x < 0 || y < 0 || x >= MaxWorldSize || y >= MaxWorldSize {
		return
	}
	if !s.visited[y][x] {
		s.visited[y][x] = true
		s.counters.CellVisited++
	}
}

// Visited reports whether the cell has been visited
func (s *Stats) Visited(x, y int) bool {
	if x < 0 || y < 0 || x >= MaxWorldSize || y >= MaxWorldSize {
		return false
	}
	return s.visited[y][x]
}

// Record increments the counter of an action
func (s *Stats) Record(a Action) {
	switch a {
	case ActionForward:
		s.counters.Forward++
	case ActionTurn:
		s.counters.Turn++
	case ActionBump:
		s.counters.Bumps++
	case ActionClean:
		s.counters.Clean++
	case ActionLoad:
		s.counters.Load++
	}
}

// CleanAction counts a clean on a dirty cell. A cell only counts as cleaned
// once its remaining depth reaches zero.
func (s *Stats) CleanAction(remaining int) {
	s.counters.Clean++
	if remaining == 0 {
		s.counters.DirtCleaned++
	}
}

// Consume adds battery drawn by an action
func (s *Stats) Consume(amount float64) {
	s.counters.BatteryTotal += amount
}

// SetBatteryMean stores the mean battery level over the recorded history
func (s *Stats) SetBatteryMean(mean float64) {
	s.counters.BatteryMean = mean
}

// Snapshot returns a copy of the counters
func (s *Stats) Snapshot() Statistics {
	return s.counters
}

// VisitedCells lists the visited cells in row-major order
func (s *Stats) VisitedCells() []Position {
	var out []Position
	for y := 0; y < MaxWorldSize; y++ {
		for x := 0; x < MaxWorldSize; x++ {
			if s.visited[y][x] {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}
