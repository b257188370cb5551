package programs

import (
	"math"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

const (
	// LowBattery is the level at which the cleaner heads home
	LowBattery = 200.0
	squareSide = 10
	wallSteps  = 5
)

func wake(robot engine.Actuator) func() {
	return func() { robot.Wake() }
}

// Idle wakes up and cleans the cell it stands on
func Idle(robot engine.Actuator) engine.Callbacks {
	return engine.Callbacks{
		OnStart:  wake(robot),
		Behavior: func() { robot.Clean() },
	}
}

// Forward drives straight until it runs out of battery. Bumps are free
// ticks, so a robot stuck against a wall only drains its battery.
func Forward(robot engine.Actuator) engine.Callbacks {
	return engine.Callbacks{
		OnStart:  wake(robot),
		Behavior: func() { robot.Forward() },
	}
}

// Square drives squareSide steps then turns a quarter to the right
func Square(robot engine.Actuator) engine.Callbacks {
	steps := 0
	return engine.Callbacks{
		OnStart: wake(robot),
		Behavior: func() {
			if steps < squareSide {
				robot.Forward()
				steps++
				return
			}
			robot.Turn(math.Pi / 2)
			steps = 0
		},
	}
}

// WallFollow turns away from walls and, after a few free steps, veers back
// towards them so it keeps hugging the border.
func WallFollow(robot engine.Actuator) engine.Callbacks {
	const (
		advancing = iota
		turned
		adjusting
	)
	state := advancing
	sinceBump := 0

	return engine.Callbacks{
		OnStart: wake(robot),
		Behavior: func() {
			switch state {
			case advancing:
				if robot.Bumper() {
					robot.Turn(math.Pi / 2)
					state = turned
					sinceBump = 0
					return
				}
				robot.Forward()
				sinceBump++
				if sinceBump > wallSteps {
					state = adjusting
				}
			case turned:
				robot.Forward()
				state = advancing
			case adjusting:
				robot.Turn(-math.Pi / 4)
				sinceBump = 0
				state = advancing
			}
		},
	}
}

// Cleaner bounces off walls alternating left and right turns, cleans every
// dirty cell it finds and drives home to recharge when the battery is low.
// It performs exactly one action per call.
func Cleaner(robot engine.Actuator) engine.Callbacks {
	turnLeft := true
	charging := false

	bounce := func() {
		if turnLeft {
			robot.Turn(math.Pi / 2)
		} else {
			robot.Turn(-math.Pi / 2)
		}
		turnLeft = !turnLeft
	}

	return engine.Callbacks{
		OnStart: wake(robot),
		Behavior: func() {
			state := robot.State()

			if charging || (state.Battery < LowBattery && robot.AtBase()) {
				if robot.AtBase() && state.Battery < engine.MaxBattery {
					charging = true
					robot.Load()
					return
				}
				charging = false
			}

			if state.Infrared > 0 && state.Battery >= LowBattery {
				robot.Clean()
				return
			}

			if state.Bumper {
				bounce()
				return
			}

			if state.Battery < LowBattery {
				base, ok := robot.BasePosition()
				if ok {
					want := engine.HeadingTo(engine.Position{X: state.X, Y: state.Y}, base)
					if diff := angleDiff(want, state.Heading); math.Abs(diff) > 1e-3 {
						robot.Turn(diff)
						return
					}
				}
			}
			robot.Forward()
		},
	}
}

// angleDiff returns the signed rotation in (-pi, pi] taking from to to
func angleDiff(to, from float64) float64 {
	d := math.Mod(to-from, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
