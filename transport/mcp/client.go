package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/programs"
	"github.com/wricardo/mcp-training/roombasim/game/results"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Blocking program runs may take a while
			Timeout: 60 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Roomba Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Roomba Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Drive a cleaning robot around a grid arena. Visit as many cells as possible and
clean the dirt before the battery or the tick budget runs out.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage sessions
- act: one robot command (wake, turn, forward, clean, load, stop)
- run_program: hand the robot to a built-in program
- stop_run / reset_session: end a run, start over on a clean map
- robot_state: map, robot and statistics
- run_history / run_stats: tick samples and counters
- list_maps / show_map / generate_map: the map catalogue
- list_programs / list_results: programs and the scoreboard
- simulator_instructions: rules, costs and coordinates
- describe_cell: what is at one grid cell`),
	)

	c.registerTools()
}

func sessionParam() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new simulator session. The robot starts asleep on its base.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map": map[string]interface{}{
					"type":        "string",
					"description": "Map name from list_maps (optional, default map otherwise)",
				},
				"exec_time": map[string]interface{}{
					"type":        "integer",
					"description": "Tick budget of a run (optional, 2500 max)",
				},
				"team": map[string]interface{}{
					"type":        "string",
					"description": "Team name recorded with the results (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionParam()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Robot control
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "act",
		Description: "Send one command to the robot. The first command of a run must be wake.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionParam(),
				"action": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"wake", "turn", "forward", "clean", "load", "stop"},
					"description": "Command to execute",
				},
				"degrees": map[string]interface{}{
					"type":        "number",
					"description": "Rotation for turn, in degrees. Positive turns clockwise on the map (east towards south).",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this command (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "action"},
		},
	}, c.handleAct)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_program",
		Description: "Run a built-in control program on a fresh copy of the map",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionParam(),
				"program": map[string]interface{}{
					"type":        "string",
					"enum":        programs.Names(),
					"description": "Program name",
				},
				"wait": map[string]interface{}{
					"type":        "boolean",
					"description": "Wait for the run to finish (default true)",
				},
			},
			Required: []string{"session_id", "program"},
		},
	}, c.handleRunProgram)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_run",
		Description: "Stop the current run and record its results",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionParam()},
			Required:   []string{"session_id"},
		},
	}, c.handleStop)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_session",
		Description: "Put a clean copy of the map in place with the robot asleep",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionParam()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	// Observation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "robot_state",
		Description: "Get the map with the robot, its sensors and the run statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionParam()},
			Required:   []string{"session_id"},
		},
	}, c.handleRobotState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_history",
		Description: "Get the tick samples of the current or last run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionParam(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Samples per page (max 100)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest first (asc) or newest first (desc, default)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_stats",
		Description: "Get the statistics of the current or last run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionParam()},
			Required:   []string{"session_id"},
		},
	}, c.handleRunStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get detailed information about a specific cell of the session map",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionParam(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell (0-based)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	// Maps, programs and results
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List the maps of the catalogue",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMaps)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "show_map",
		Description: "Show one map of the catalogue",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Map name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleShowMap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "generate_map",
		Description: "Generate a random map and add it to the catalogue",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the new map (optional)",
				},
				"preset": map[string]interface{}{
					"type":        "string",
					"description": "Preset such as noobs, random3 or walls2 (optional)",
				},
				"rows":    map[string]interface{}{"type": "integer", "description": "Rows (default 50)"},
				"cols":    map[string]interface{}{"type": "integer", "description": "Columns (default 50)"},
				"dirt":    map[string]interface{}{"type": "integer", "description": "Number of dirty cells"},
				"density": map[string]interface{}{"type": "number", "description": "Wall density"},
				"seed":    map[string]interface{}{"type": "integer", "description": "Random seed (optional)"},
			},
		},
	}, c.handleGenerateMap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_programs",
		Description: "List the built-in control programs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPrograms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_results",
		Description: "Show the scoreboard of finished runs, best coverage first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"team":  map[string]interface{}{"type": "string", "description": "Only this team"},
				"map":   map[string]interface{}{"type": "string", "description": "Only this map"},
				"limit": map[string]interface{}{"type": "integer", "description": "Maximum rows"},
			},
		},
	}, c.handleListResults)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "simulator_instructions",
		Description: "Get the simulator rules, costs and coordinate conventions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) string {
	sessionID, _ := args["session_id"].(string)
	return fmt.Sprintf("/api/sessions/%s%s", url.PathEscape(sessionID), suffix)
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	if mapName, _ := args["map"].(string); mapName != "" {
		body["map"] = mapName
	}
	if execTime, ok := args["exec_time"].(float64); ok {
		body["exec_time"] = int(execTime)
	}
	if team, _ := args["team"].(string); team != "" {
		body["team"] = team
	}

	var session service.SessionInfo
	if err := c.apiCall("POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nMap: %s\nTick budget: %d\nThe robot is asleep, send act with action=wake to begin.\n",
		session.ID, session.MapName, session.ExecTime)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall("GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Map: %s, State: %s, Tick: %d/%d, Created: %s)\n",
			s.ID, s.MapName, s.State, s.Counter, s.ExecTime, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var session service.SessionInfo
	if err := c.apiCall("GET", sessionPath(args, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleAct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	action, _ := args["action"].(string)
	degrees, _ := args["degrees"].(float64)

	body := service.ActionRequest{
		Action: action,
		Angle:  degrees * math.Pi / 180,
	}

	var result service.ActionResult
	if err := c.apiCall("POST", sessionPath(args, "/act"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleRunProgram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	program, _ := args["program"].(string)
	wait := true
	if w, ok := args["wait"].(bool); ok {
		wait = w
	}

	var session service.SessionInfo
	body := service.RunRequest{Program: program, Wait: wait}
	if err := c.apiCall("POST", sessionPath(args, "/run"), body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !wait {
		return mcp.NewToolResultText(fmt.Sprintf("Program %s started on session %s. Use robot_state or run_stats to follow it.",
			program, session.ID)), nil
	}
	result := fmt.Sprintf("Program %s finished after %d ticks (%s)\n\n%s",
		program, session.Counter, session.Reason, formatStats(session.Stats))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var session service.SessionInfo
	if err := c.apiCall("POST", sessionPath(args, "/stop"), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Stop requested\n\n" + formatSessionInfo(&session)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var response struct {
		Message string               `json:"message"`
		Session *service.SessionInfo `json:"session"`
	}
	if err := c.apiCall("POST", sessionPath(args, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSessionInfo(response.Session))), nil
}

func (c *Client) handleRobotState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var state service.StateView
	if err := c.apiCall("GET", sessionPath(args, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStateView(&state)), nil
}

func (c *Client) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprint(int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprint(int(limit)))
	}
	if order, _ := args["order"].(string); order != "" {
		params.Set("order", order)
	}

	var history service.HistoryResponse
	if err := c.apiCall("GET", sessionPath(args, "/history?"+params.Encode()), nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleRunStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var stats service.StatsResponse
	if err := c.apiCall("GET", sessionPath(args, "/stats"), nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := "in progress"
	if stats.Finished {
		status = fmt.Sprintf("finished (%s)", stats.Reason)
	}
	result := fmt.Sprintf("Run %s after %d ticks\n\n%s", status, stats.Ticks, formatStats(stats.Stats))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	xf, okX := args["x"].(float64)
	yf, okY := args["y"].(float64)
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}
	x, y := int(xf), int(yf)

	var state service.StateView
	if err := c.apiCall("GET", sessionPath(args, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if y < 0 || y >= len(state.Layout) || x < 0 || x >= len(state.Layout[y]) {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Map is %d rows x %d columns",
			x, y, state.Rows, state.Cols)), nil
	}

	return mcp.NewToolResultText(describeCell(&state, x, y)), nil
}

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var maps []service.MapInfo
	if err := c.apiCall("GET", "/api/maps", nil, &maps); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Maps:\n\n"
	for _, m := range maps {
		result += fmt.Sprintf("• %s\n  Grid: %dx%d, Cells: %d, Dirty cells: %d (total dirt %d)\n\n",
			m.MapID, m.Rows, m.Cols, m.CellTotal, m.DirtCells, m.DirtTotal)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleShowMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["name"].(string)

	var detail service.MapDetail
	if err := c.apiCall("GET", "/api/maps/"+url.PathEscape(name), nil, &detail); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMapDetail(&detail)), nil
}

func (c *Client) handleGenerateMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	for _, key := range []string{"name", "preset"} {
		if v, _ := args[key].(string); v != "" {
			body[key] = v
		}
	}
	for _, key := range []string{"rows", "cols", "dirt", "seed"} {
		if v, ok := args[key].(float64); ok {
			body[key] = int64(v)
		}
	}
	if v, ok := args["density"].(float64); ok {
		body["density"] = v
	}

	var detail service.MapDetail
	if err := c.apiCall("POST", "/api/maps/generate", body, &detail); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Map generated\n\n" + formatMapDetail(&detail)), nil
}

func (c *Client) handleListPrograms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var progs []programs.Program
	if err := c.apiCall("GET", "/api/programs", nil, &progs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Built-in Programs:\n\n"
	for _, p := range progs {
		result += fmt.Sprintf("• %s: %s\n", p.Name, p.Description)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	params := url.Values{}
	if team, _ := args["team"].(string); team != "" {
		params.Set("team", team)
	}
	if mapName, _ := args["map"].(string); mapName != "" {
		params.Set("map", mapName)
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprint(int(limit)))
	}

	var response struct {
		Count int           `json:"count"`
		Runs  []results.Run `json:"runs"`
	}
	if err := c.apiCall("GET", "/api/results?"+params.Encode(), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatResults(response.Runs)), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := fmt.Sprintf(`Roomba Simulator - Instructions

OBJECTIVE:
Drive the robot over as many free cells as possible and clean the dirt.
Runs are ranked by coverage (visited cells / free cells), then by dirt cleaned.

MAP:
  #   wall
  .   free cell
  B   charging base
  1-5 dirt depth
The map is at most %[1]dx%[1]d and is always enclosed by walls.

COORDINATES:
x is the column, y is the row, (0,0) is the top left corner.
Heading 0 faces east (x+). Headings grow clockwise on the map: 90 degrees
faces south (y+), 180 west, 270 north.

RUN LIFECYCLE:
1. A session starts with the robot asleep.
2. wake puts it on the base with a full battery (%[2]g) and begins the run.
3. The run ends when the battery drops below %[3]g, the tick budget is spent
   or you send stop. The results are then recorded.
4. reset_session starts over on a clean copy of the map.

COMMANDS AND COSTS:
  turn      %[4]g battery, one tick
  forward   %[5]g battery (%[6]g diagonally), one tick
  bump      %[7]g battery, no tick (forward into a wall)
  clean     %[8]g battery when there is dirt, one tick
  load      +%[9]g battery on the base, one tick

SENSORS:
bumper tells whether the last forward hit a wall, infrared gives the dirt
depth under the robot.

PROGRAMS:
run_program hands the robot to a built-in program (see list_programs) on a
fresh copy of the map.`,
		engine.MaxWorldSize, engine.MaxBattery, engine.StopThreshold,
		engine.CostTurn, engine.CostMove, engine.CostMoveDiag, engine.CostBump,
		engine.CostClean, engine.ChargeStep)

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	if session == nil {
		return "No session information available"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nMap: %s\n", session.ID, session.MapName)
	if session.Team != "" {
		fmt.Fprintf(&b, "Team: %s\n", session.Team)
	}
	if session.Program != "" {
		fmt.Fprintf(&b, "Program: %s\n", session.Program)
	}
	fmt.Fprintf(&b, "Created: %s\nState: %s\nTick: %d/%d\n",
		session.CreatedAt.Format("2006-01-02 15:04:05"), session.State, session.Counter, session.ExecTime)
	if session.Reason != "" {
		fmt.Fprintf(&b, "Stopped: %s\n", session.Reason)
	}
	b.WriteString("\n")
	b.WriteString(formatRobot(session.Robot))
	b.WriteString("\n")
	b.WriteString(formatStats(session.Stats))
	return b.String()
}

func formatRobot(s engine.Sensor) string {
	return fmt.Sprintf("Robot: (%d,%d) heading %.1f° battery %.1f bumper %v infrared %d\n",
		s.X, s.Y, s.HeadingDegrees(), s.Battery, s.Bumper, s.Infrared)
}

func formatStats(st engine.Statistics) string {
	return fmt.Sprintf("Coverage: %d/%d cells (%.1f%%)\nDirt cleaned: %d/%d\nBattery used: %.1f (mean level %.1f)\nActions: forward %d, turn %d, bumps %d, clean %d, failed loads %d\n",
		st.CellVisited, st.CellTotal, st.Coverage()*100,
		st.DirtCleaned, st.DirtTotal,
		st.BatteryTotal, st.BatteryMean,
		st.Forward, st.Turn, st.Bumps, st.Clean, st.Load)
}

// headingArrow returns the arrow closest to a heading on the map
func headingArrow(heading float64) string {
	arrows := []string{"→", "↘", "↓", "↙", "←", "↖", "↑", "↗"}
	idx := int(math.Round(engine.NormalizeHeading(heading)/(math.Pi/4))) % len(arrows)
	return arrows[idx]
}

// renderLayout draws the layout with the robot as R
func renderLayout(layout []string, robot engine.Sensor, showRobot bool) string {
	var b strings.Builder
	b.WriteString("   ")
	for x := 0; len(layout) > 0 && x < len(layout[0]); x++ {
		b.WriteByte(byte('0' + x%10))
	}
	b.WriteString("\n")
	for y, row := range layout {
		line := []byte(row)
		if showRobot && y == robot.Y && robot.X >= 0 && robot.X < len(line) {
			line[robot.X] = 'R'
		}
		fmt.Fprintf(&b, "%2d %s\n", y, line)
	}
	return b.String()
}

func formatStateView(state *service.StateView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s on %s (%dx%d)\n", state.SessionID, state.MapName, state.Rows, state.Cols)
	fmt.Fprintf(&b, "State: %s, tick %d/%d", state.State, state.Counter, state.ExecTime)
	if state.Program != "" {
		fmt.Fprintf(&b, ", program %s", state.Program)
	}
	if state.Reason != "" {
		fmt.Fprintf(&b, ", stopped: %s", state.Reason)
	}
	b.WriteString("\n\n")

	showRobot := state.State != engine.StateAsleep.String()
	b.WriteString(renderLayout(state.Layout, state.Robot, showRobot))
	b.WriteString("\n")
	if showRobot {
		fmt.Fprintf(&b, "Facing %s  ", headingArrow(state.Robot.Heading))
		b.WriteString(formatRobot(state.Robot))
		if state.AtBase {
			b.WriteString("The robot is on its base\n")
		}
	}
	if state.Base != nil {
		fmt.Fprintf(&b, "Base: (%d,%d)\n", state.Base.X, state.Base.Y)
	}
	b.WriteString("\n")
	b.WriteString(formatStats(state.Stats))
	return b.String()
}

func formatActionResult(result *service.ActionResult) string {
	status := "✓"
	if !result.Success {
		status = "✗"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s\n", status, result.Action, result.Message)
	fmt.Fprintf(&b, "Tick %d/%d\n", result.Counter, result.ExecTime)
	b.WriteString(formatRobot(result.Robot))
	if result.Done {
		fmt.Fprintf(&b, "\nRUN FINISHED (%s)\n\n", result.Reason)
		b.WriteString(formatStats(result.Stats))
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run History (Page %d/%d), %d samples\n\n", history.Page, history.TotalPages, history.TotalSamples)
	for _, s := range history.Samples {
		bump := ""
		if s.Bumper {
			bump = " BUMP"
		}
		fmt.Fprintf(&b, "(%d,%d) %.1f° battery %.1f infrared %d%s\n",
			s.X, s.Y, s.HeadingDegrees(), s.Battery, s.Infrared, bump)
	}
	return b.String()
}

func formatMapDetail(detail *service.MapDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Map %s (%dx%d), %d free cells, %d dirty cells, total dirt %d\n",
		detail.MapID, detail.Rows, detail.Cols, detail.CellTotal, detail.DirtCells, detail.DirtTotal)
	if detail.Base != nil {
		fmt.Fprintf(&b, "Base: (%d,%d)\n", detail.Base.X, detail.Base.Y)
	}
	b.WriteString("\n")
	b.WriteString(renderLayout(detail.Layout, engine.Sensor{}, false))
	return b.String()
}

func formatResults(runs []results.Run) string {
	if len(runs) == 0 {
		return "No recorded runs"
	}
	var b strings.Builder
	b.WriteString("Scoreboard:\n\n")
	for i, r := range runs {
		fmt.Fprintf(&b, "%d. %s on %s: coverage %.1f%%, dirt %d/%d, battery used %.1f (%s)\n",
			i+1, r.Team, r.MapName, r.Stats.Coverage()*100, r.Stats.DirtCleaned, r.Stats.DirtTotal,
			r.Stats.BatteryTotal, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func describeCell(state *service.StateView, x, y int) string {
	glyph := state.Layout[y][x]
	var cellType, description string
	passable := true

	switch {
	case glyph == '#':
		cellType = "Wall"
		passable = false
		description = "Wall - forward into it bumps and costs battery without moving"
	case glyph == 'B':
		cellType = "Base"
		description = "Charging base - load recharges the battery here"
	case glyph >= '1' && glyph <= '9':
		cellType = "Dirt"
		description = fmt.Sprintf("Dirty cell of depth %c - each clean removes one unit", glyph)
	default:
		cellType = "Free"
		description = "Clean free cell"
	}

	visited := false
	for _, p := range state.Visited {
		if p.X == x && p.Y == y {
			visited = true
			break
		}
	}

	robotHere := state.State != engine.StateAsleep.String() && state.Robot.X == x && state.Robot.Y == y
	result := fmt.Sprintf(`Cell at position (%d, %d):
━━━━━━━━━━━━━━━━━━━━━━━━
Character: %c
Type: %s
Passable: %v
Visited: %v
Description: %s
`, x, y, glyph, cellType, passable, visited, description)
	if robotHere {
		result += "The robot is here.\n"
	}
	if state.Base != nil {
		result += fmt.Sprintf("Distance to base: %d cells\n", engine.ManhattanDistance(engine.Position{X: x, Y: y}, *state.Base))
	}
	return result
}
