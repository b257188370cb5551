package engine

import "math"

// Robot holds the robot's physical state. The position is kept only in
// continuous coordinates; the occupied cell is derived from it.
type Robot struct {
	fx, fy   float64
	heading  float64
	battery  float64
	bumper   bool
	infrared int
}

// Cell returns the discrete cell the robot occupies
func (r *Robot) Cell() (x, y int) {
	return int(math.Floor(r.fx)), int(math.Floor(r.fy))
}

// Place puts the robot on cell (x, y) facing heading
func (r *Robot) Place(x, y int, heading float64) {
	r.fx, r.fy = float64(x), float64(y)
	r.heading = NormalizeHeading(heading)
}

// Sensor returns a snapshot of the observable state
func (r *Robot) Sensor() Sensor {
	x, y := r.Cell()
	return Sensor{
		X:        x,
		Y:        y,
		Heading:  r.heading,
		Bumper:   r.bumper,
		Infrared: r.infrared,
		Battery:  r.battery,
	}
}

// consume deducts a battery cost and returns the amount actually drawn
func (r *Robot) consume(cost float64) float64 {
	if cost > r.battery {
		cost = r.battery
	}
	r.battery -= cost
	return cost
}

func (r *Robot) charge(amount float64) {
	r.battery = math.Min(r.battery+amount, MaxBattery)
}
