// Package api provides the HTTP REST API of the simulator server.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session {map, exec_time, team}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Robot control:
//   - POST /api/sessions/{id}/act - One command {action, angle}
//   - POST /api/sessions/{id}/run - Start a built-in program {program, wait}
//   - POST /api/sessions/{id}/stop - Stop the run
//   - POST /api/sessions/{id}/reset - Fresh map, robot asleep
//
// Observation:
//   - GET /api/sessions/{id}/state - Map, robot, visited cells and statistics
//   - GET /api/sessions/{id}/history - Tick samples (?page=&limit=&order=)
//   - GET /api/sessions/{id}/stats - Statistics (?format=csv for the stats.csv layout)
//
// Maps, programs and results:
//   - GET /api/maps - Map catalogue
//   - GET /api/maps/{name} - One map with its layout
//   - POST /api/maps/generate - Generate and store a map {name, preset, rows, cols, dirt, density, seed}
//   - GET /api/programs - Built-in programs
//   - GET /api/results - Recorded runs (?team=&map=&limit=&format=csv)
//
// Live updates are served on /ws?session=<id>, see the websocket package.
//
// Actions are sent as POST with JSON body:
//
//	{"action": "turn", "angle": 1.5708}
//
// Usage:
//
//	server := api.NewServer(simService, hub)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON. Unknown sessions, maps and programs answer
// 404, invalid input 400, commands that do not fit the run state 409 and a
// missing results store 503.
//
//	{
//	  "error": "robot is asleep, wake it first",
//	  "code": 409
//	}
package api
