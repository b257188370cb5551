// Package mcp exposes the simulator to AI agents as Model Context Protocol tools.
//
// The Client proxies every tool call to the REST API, so the MCP server can run
// inside the HTTP server (POST /mcp) or as a stdio process talking to a running
// or internal API.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - act: wake, turn (degrees), forward, clean, load or stop
//   - run_program, stop_run, reset_session
//   - robot_state, run_history, run_stats, describe_cell
//   - list_maps, show_map, generate_map
//   - list_programs, list_results
//   - simulator_instructions
//
// Every session tool takes a session_id. Tool output is plain text meant to be
// read by a model: states are rendered as a grid with the robot drawn as R.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
