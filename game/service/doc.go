// Package service provides the business logic layer of the simulator server.
//
// SimService is the single entry point for the HTTP, WebSocket and MCP
// transports. It combines:
//   - sessions, each owning one simulator (SessionManager)
//   - the map catalogue (MapManager)
//   - the built-in control programs
//   - the results store recording finished runs (ResultStore)
//
// Driving a robot:
//
// A new session holds a robot asleep on a fresh copy of its map. Act sends
// single commands (wake, turn, forward, clean, load, stop); the first one
// begins the run. RunProgram instead hands the robot to a built-in program
// that runs in the background until the battery dies, the tick budget is
// spent or StopSession is called. Finished runs are recorded in the results
// store and ResetSession starts over on a clean map.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	mapMgr, _ := config.NewManager("maps")
//	simService := service.NewSimService(sessionMgr, mapMgr, service.Options{Results: store})
//
//	info, err := simService.CreateSession(ctx, "noobs", 1000, "team01")
//	if err != nil {
//		log.Fatal(err)
//	}
//	simService.Act(ctx, info.ID, service.ActionRequest{Action: "wake"})
//	simService.Act(ctx, info.ID, service.ActionRequest{Action: "forward"})
package service
