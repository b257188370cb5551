package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

// Client talks to the simulator REST API on behalf of one session
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// CreateSession opens a session and makes it the client's session
func (c *Client) CreateSession(mapName string, execTime int, team string) (*service.SessionInfo, error) {
	req := map[string]interface{}{"map": mapName, "exec_time": execTime, "team": team}
	var info service.SessionInfo
	if err := c.do(http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	return &info, nil
}

// Reset restores the session map and puts the robot back to sleep
func (c *Client) Reset() (*service.SessionInfo, error) {
	var resp struct {
		Session *service.SessionInfo `json:"session"`
	}
	if err := c.do(http.MethodPost, c.path("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.Session, nil
}

// State returns the full session view
func (c *Client) State() (*service.StateView, error) {
	var view service.StateView
	if err := c.do(http.MethodGet, c.path("/state"), nil, &view); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &view, nil
}

// Act sends one robot command
func (c *Client) Act(req service.ActionRequest) (*service.ActionResult, error) {
	var result service.ActionResult
	if err := c.do(http.MethodPost, c.path("/act"), req, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Action, err)
	}
	return &result, nil
}

func (c *Client) path(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

// remoteRobot is an Actuator whose every action is a request to the server.
// After the first failed request it stops sending and keeps the last result.
type remoteRobot struct {
	client  *Client
	last    service.ActionResult
	base    engine.Position
	hasBase bool
	actions int
	err     error
	delay   time.Duration
}

func (r *remoteRobot) act(action string, angle float64) *service.ActionResult {
	if r.err != nil || r.last.Done {
		return &service.ActionResult{Action: action, Robot: r.last.Robot}
	}
	if r.delay > 0 && r.actions > 0 {
		time.Sleep(r.delay)
	}
	res, err := r.client.Act(service.ActionRequest{Action: action, Angle: angle})
	if err != nil {
		r.err = err
		return &service.ActionResult{Action: action, Robot: r.last.Robot}
	}
	r.last = *res
	r.actions++
	return res
}

// finished reports whether the run is over or the connection failed
func (r *remoteRobot) finished() bool {
	return r.err != nil || r.last.Done
}

func (r *remoteRobot) Wake() (int, int) {
	res := r.act("wake", 0)
	if res.Success {
		if view, err := r.client.State(); err == nil && view.Base != nil {
			r.base, r.hasBase = *view.Base, true
		}
	}
	return res.Robot.X, res.Robot.Y
}

func (r *remoteRobot) Turn(alpha float64) { r.act("turn", alpha) }

func (r *remoteRobot) Forward() bool { return r.act("forward", 0).Success }

func (r *remoteRobot) Clean() int {
	res := r.act("clean", 0)
	if res.Remaining != nil {
		return *res.Remaining
	}
	return res.Robot.Infrared
}

func (r *remoteRobot) Load() bool { return r.act("load", 0).Success }

func (r *remoteRobot) State() engine.Sensor { return r.last.Robot }
func (r *remoteRobot) Bumper() bool         { return r.last.Robot.Bumper }
func (r *remoteRobot) Infrared() int        { return r.last.Robot.Infrared }
func (r *remoteRobot) Battery() float64     { return r.last.Robot.Battery }

func (r *remoteRobot) AtBase() bool {
	return r.hasBase && r.last.Robot.X == r.base.X && r.last.Robot.Y == r.base.Y
}

func (r *remoteRobot) BasePosition() (engine.Position, bool) {
	return r.base, r.hasBase
}
