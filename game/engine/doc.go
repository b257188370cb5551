// Package engine provides the simulation kernel of the robot vacuum simulator.
//
// The engine package implements:
//   - The arena model: a walled grid with dirt, a charging base and PGM I/O
//   - Random arena generation from a seeded source
//   - The robot actions (wake, turn, forward, clean, load) and their battery costs
//   - Run statistics and the per-tick history
//   - The execution loop with its ordered teardown
//
// Core Types:
//
// Simulator is the simulation context and implements Actuator, the API a
// control program talks to. Map is the arena, Sensor the observable robot
// state recorded on every tick, and Statistics the counters of a run.
//
// Usage:
//
//	m, err := engine.LoadMapFile("maps/random3.pgm")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sim := engine.NewSimulator()
//	sim.SetMap(m)
//	sim.SetSink(engine.NewFileSink("out"))
//
//	err = sim.Configure(engine.Callbacks{
//		OnStart:  func() { sim.Wake() },
//		Behavior: func() {
//			if !sim.Forward() {
//				sim.Turn(math.Pi / 2)
//			}
//		},
//	}, 1000)
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := sim.Run(context.Background())
//
// Rules:
//
// Every action records one tick in the history, except a bump which is
// recorded without advancing the tick counter and a failed load which is
// not recorded at all. The run ends when the battery falls below 0.1, the
// tick budget is spent or a stop is requested.
package engine
