package engine

import (
	"log"
	"math"
)

// accept reports whether an action may run. Actions are refused before
// Configure, after the run stopped and once the tick budget is spent, so
// the history buffer is never written out of range. An action on a sleeping
// robot during a run raises the stop flag: nothing would ever advance the
// counter otherwise.
func (s *Simulator) accept(action string, wake bool) bool {
	switch {
	case !s.configured || s.history == nil:
		s.logger.Printf("%s ignored: simulator not configured", action)
		return false
	case s.state == StateStopped:
		s.logger.Printf("%s ignored: robot stopped", action)
		return false
	case s.state == StateAsleep && !wake:
		s.logger.Printf("%s ignored: robot asleep", action)
		if s.running && !s.stop.Load() {
			s.reason = StopContract
			s.stop.Store(true)
		}
		return false
	case s.counter >= s.execTime:
		s.logger.Printf("%s ignored: tick budget spent", action)
		return false
	}
	return true
}

// tick records the current state at the execution counter. Non-advancing
// ticks are overwritten by the next one.
func (s *Simulator) tick(advance bool) {
	sample := s.robot.Sensor()
	s.history.Write(s.counter, sample)
	if advance {
		s.counter++
	}
	if s.observer != nil {
		s.observer(sample)
	}
}

// drain applies a battery cost and raises the stop flag once the battery
// falls below StopThreshold.
func (s *Simulator) drain(cost float64) {
	s.stats.Consume(s.robot.consume(cost))
	if s.robot.battery < StopThreshold {
		if !s.stop.Load() {
			s.reason = StopBattery
		}
		s.stop.Store(true)
	}
}

func (s *Simulator) refreshInfrared() {
	x, y := s.robot.Cell()
	s.robot.infrared = s.world.CellDirt(y, x)
}

// Wake places the robot on the base with a full battery. Without a recorded
// base the robot starts at (1,1) facing east and that cell becomes the base;
// a generated map is then persisted so the run can be reproduced.
func (s *Simulator) Wake() (x, y int) {
	if !s.accept("wake", true) {
		return s.robot.Cell()
	}
	s.logger.Printf("Awaking robot")

	if base, ok := s.world.Base(); ok {
		heading := s.world.PutBase(base.X, base.Y)
		s.robot.Place(base.X, base.Y, heading)
	} else {
		s.world.PutBase(1, 1)
		s.robot.Place(1, 1, 0)
		if s.world.Name == "" && s.sink != nil {
			if err := s.sink.SaveMap(s.world); err != nil {
				log.Printf("Warning: failed to save generated map: %v", err)
			}
		}
	}

	s.robot.battery = MaxBattery
	s.robot.bumper = false
	s.refreshInfrared()
	s.state = StateActive
	s.tick(true)
	return s.robot.Cell()
}

// Turn rotates the robot by alpha radians
func (s *Simulator) Turn(alpha float64) {
	if !s.accept("turn", false) {
		return
	}
	s.robot.heading = NormalizeHeading(s.robot.heading + alpha)
	s.robot.bumper = false
	s.stats.Record(ActionTurn)
	s.drain(CostTurn)
	s.tick(true)
}

// Forward advances one step along the heading. It returns false on a bump,
// which leaves the robot in place and does not advance the tick counter.
func (s *Simulator) Forward() bool {
	if !s.accept("forward", false) {
		return false
	}
	dx, dy := StepVector(s.robot.heading)
	nfx, nfy := s.robot.fx+dx, s.robot.fy+dy
	nx, ny := int(math.Floor(nfx)), int(math.Floor(nfy))

	if s.world.IsWall(ny, nx) {
		s.robot.bumper = true
		s.stats.Record(ActionBump)
		s.drain(CostBump)
		s.tick(false)
		return false
	}

	s.robot.fx, s.robot.fy = nfx, nfy
	s.robot.bumper = false
	s.refreshInfrared()
	s.stats.Visit(nx, ny)
	s.stats.Record(ActionForward)
	if IsDiagonal(dx, dy) {
		s.drain(CostMoveDiag)
	} else {
		s.drain(CostMove)
	}
	s.tick(true)
	return true
}

// Clean removes one unit of dirt from the current cell and returns the
// remaining depth. Cleaning a clean cell costs nothing.
func (s *Simulator) Clean() int {
	if !s.accept("clean", false) {
		return s.robot.infrared
	}
	x, y := s.robot.Cell()
	if s.world.CellDirt(y, x) > 0 {
		remaining := s.world.CleanCell(y, x)
		s.robot.infrared = remaining
		s.stats.CleanAction(remaining)
		s.drain(CostClean)
	}
	s.tick(true)
	return s.robot.infrared
}

// Load charges the battery by ChargeStep while on the base. Anywhere else
// it counts a failed load and records nothing.
func (s *Simulator) Load() bool {
	if !s.accept("load", false) {
		return false
	}
	if !s.AtBase() {
		s.stats.Record(ActionLoad)
		return false
	}
	s.robot.charge(ChargeStep)
	s.tick(true)
	return true
}

// State returns the robot sensors
func (s *Simulator) State() Sensor { return s.robot.Sensor() }

// Bumper reports whether the last forward hit a wall
func (s *Simulator) Bumper() bool { return s.robot.bumper }

// Infrared returns the dirt depth under the robot
func (s *Simulator) Infrared() int { return s.robot.infrared }

// Battery returns the battery level
func (s *Simulator) Battery() float64 { return s.robot.battery }

// AtBase reports whether the robot stands on the base
func (s *Simulator) AtBase() bool {
	if s.world == nil {
		return false
	}
	x, y := s.robot.Cell()
	return s.world.IsBase(y, x)
}

// BasePosition returns the base coordinates once one is known
func (s *Simulator) BasePosition() (Position, bool) {
	if s.world == nil {
		return Position{}, false
	}
	return s.world.Base()
}
