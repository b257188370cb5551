package engine

import "math"

// Round5 rounds to five decimal places. Step vectors are rounded so that
// axis-aligned headings move exactly one cell.
func Round5(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// NormalizeHeading maps any angle into [0, 2*pi)
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	if h >= 2*math.Pi {
		h = 0
	}
	return h
}

// StepVector returns the per-move displacement for a heading
func StepVector(heading float64) (dx, dy float64) {
	return Round5(math.Cos(heading)), Round5(math.Sin(heading))
}

// IsDiagonal reports whether a step moves along both axes
func IsDiagonal(dx, dy float64) bool {
	return dx != 0 && dy != 0
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	return abs(from.X-to.X) + abs(from.Y-to.Y)
}

// HeadingTo returns the heading pointing from one cell towards another
func HeadingTo(from, to Position) float64 {
	return NormalizeHeading(math.Atan2(float64(to.Y-from.Y), float64(to.X-from.X)))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
