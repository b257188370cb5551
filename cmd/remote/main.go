// Command remote drives a server session with one of the built-in control
// programs. Every robot action is a separate REST request, the way a
// student's program talks to a shared simulator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/programs"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

// drive runs program against the session until the server ends the run,
// a request fails or maxActions requests have been sent. A run cut short by
// maxActions is stopped on the server.
func drive(client *Client, program programs.Program, maxActions int, delay time.Duration, verbose bool) (*service.ActionResult, error) {
	robot := &remoteRobot{client: client, delay: delay}
	cb := program.New(robot)

	if cb.OnStart != nil {
		cb.OnStart()
	}
	for !robot.finished() && robot.actions < maxActions {
		before := robot.actions
		cb.Behavior()
		if robot.actions == before && !robot.finished() {
			return &robot.last, fmt.Errorf("program %s sent no action", program.Name)
		}
		if verbose && robot.actions%50 == 0 {
			s := robot.last.Robot
			log.Printf("Position: (%d,%d), Battery: %.1f, Tick: %d/%d",
				s.X, s.Y, s.Battery, robot.last.Counter, robot.last.ExecTime)
		}
	}
	if robot.err != nil {
		return &robot.last, robot.err
	}

	if !robot.last.Done {
		res, err := client.Act(service.ActionRequest{Action: "stop"})
		if err != nil {
			return &robot.last, err
		}
		robot.last = *res
	}
	if cb.OnStop != nil {
		cb.OnStop()
	}
	return &robot.last, nil
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Simulator server URL")
	mapName := flag.String("map", "", "Map name (server default when empty)")
	programName := flag.String("program", "cleaner", "Control program to run")
	execTime := flag.Int("time", 0, "Tick budget (0 for the maximum)")
	team := flag.String("team", "", "Team name recorded with the run")
	continueSession := flag.String("continue", "", "Reset and reuse an existing session by ID")
	maxActions := flag.Int("max-actions", 5000, "Maximum requests before stopping the run")
	delayMs := flag.Int("delay", 0, "Delay between actions in milliseconds (0 = no delay)")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	program, err := programs.Get(*programName)
	if err != nil {
		log.Fatalf("%v. Available programs: %v", err, programs.Names())
	}

	log.Printf("Connecting to simulator at %s", *serverURL)
	client := NewClient(*serverURL)

	if *continueSession != "" {
		client.sessionID = *continueSession
		info, err := client.Reset()
		if err != nil {
			log.Fatalf("Failed to resume session %s: %v", *continueSession, err)
		}
		log.Printf("🔄 Session %s reset on map %s", info.ID, info.MapName)
	} else {
		info, err := client.CreateSession(*mapName, *execTime, *team)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		log.Printf("✨ Session created: %s (map %s, budget %d)", info.ID, info.MapName, info.ExecTime)
	}

	start := time.Now()
	result, err := drive(client, program, *maxActions, time.Duration(*delayMs)*time.Millisecond, *verbose)
	if err != nil {
		log.Printf("❌ Run failed: %v", err)
		log.Printf("Session: %s", client.sessionID)
		os.Exit(1)
	}

	st := result.Stats
	log.Printf("Run finished in %s: %d ticks, stopped by %s", time.Since(start).Round(time.Millisecond), result.Counter, result.Reason)
	log.Printf("Coverage %.1f%% (%d/%d cells), dirt %d/%d, battery used %.1f",
		100*st.Coverage(), st.CellVisited, st.CellTotal, st.DirtCleaned, st.DirtTotal, st.BatteryTotal)
	log.Printf("Session: %s", client.sessionID)
}
