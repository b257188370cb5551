// Command simula runs control programs on maps from the command line and
// manages the map catalogue.
//
//	simula run --map random3 --program cleaner --time 1000 --out out/
//	simula generate --preset random5 arena
//	simula show maps/arena.pgm
//	simula results --team red
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/roombasim/game/config"
	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/programs"
	"github.com/wricardo/mcp-training/roombasim/game/results"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		log.Fatalf("simula: %v", err)
	}
}

func mapsDir() string {
	if dir := os.Getenv("MAPS_DIR"); dir != "" {
		return dir
	}
	return "maps"
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "simula",
		Usage:  "vacuum robot simulator",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a control program on a map",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "map", Aliases: []string{"m"}, Usage: "map name in the maps directory or path to a .pgm file (random arena when empty)"},
					&cli.StringFlag{Name: "program", Aliases: []string{"p"}, Value: "cleaner", Usage: "control program: " + strings.Join(programs.Names(), ", ")},
					&cli.IntFlag{Name: "time", Aliases: []string{"t"}, Value: engine.MaxArea, Usage: "tick budget"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "directory for log.csv, stats.csv and generated maps"},
					&cli.IntFlag{Name: "seed", Usage: "seed for the random arena (0 uses the clock)"},
					&cli.StringFlag{Name: "results-db", Usage: "SQLite results database to record the run in", Sources: cli.EnvVars("RESULTS_DB")},
					&cli.StringFlag{Name: "team", Value: "anonymous", Usage: "team name recorded with the run"},
					&cli.BoolFlag{Name: "debug", Usage: "trace every action on stderr"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCommand(ctx, cmd.Root().Writer, runOptions{
						Map:       cmd.String("map"),
						Program:   cmd.String("program"),
						ExecTime:  int(cmd.Int("time")),
						OutDir:    cmd.String("out"),
						Seed:      int64(cmd.Int("seed")),
						ResultsDB: cmd.String("results-db"),
						Team:      cmd.String("team"),
						Debug:     cmd.Bool("debug"),
					})
				},
			},
			{
				Name:      "generate",
				Usage:     "generate a random map into the maps directory",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: mapsDir(), Usage: "maps directory"},
					&cli.StringFlag{Name: "preset", Usage: "preset: " + strings.Join(config.PresetNames(), ", ")},
					&cli.IntFlag{Name: "rows", Usage: "number of rows (default 50)"},
					&cli.IntFlag{Name: "cols", Usage: "number of columns (default 50)"},
					&cli.IntFlag{Name: "dirt", Value: engine.DefaultDirtCells, Usage: "number of dirty cells"},
					&cli.FloatFlag{Name: "density", Usage: "obstacles: below 1 a per-cell probability, otherwise a number of wall segments"},
					&cli.IntFlag{Name: "seed", Usage: "random seed (0 uses the clock)"},
					&cli.BoolFlag{Name: "random-base", Usage: "place the base on a random border cell"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						name = cmd.String("preset")
					}
					if name == "" {
						return fmt.Errorf("a map name or a preset is required")
					}
					return generateCommand(cmd.Root().Writer, cmd.String("dir"), name, service.GenerateOptions{
						Preset:     cmd.String("preset"),
						Rows:       int(cmd.Int("rows")),
						Cols:       int(cmd.Int("cols")),
						Dirt:       int(cmd.Int("dirt")),
						Density:    cmd.Float("density"),
						Seed:       int64(cmd.Int("seed")),
						RandomBase: cmd.Bool("random-base"),
					})
				},
			},
			{
				Name:      "show",
				Usage:     "print a map",
				ArgsUsage: "<map>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return fmt.Errorf("a map name or file is required")
					}
					m, err := resolveMap(cmd.Args().First())
					if err != nil {
						return err
					}
					showMap(cmd.Root().Writer, m)
					return nil
				},
			},
			{
				Name:  "results",
				Usage: "export recorded runs as CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "results-db", Value: "results.db", Usage: "SQLite results database", Sources: cli.EnvVars("RESULTS_DB")},
					&cli.StringFlag{Name: "team", Usage: "only runs of this team"},
					&cli.StringFlag{Name: "map", Usage: "only runs on this map"},
					&cli.IntFlag{Name: "limit", Usage: "maximum number of runs (0 for all)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return resultsCommand(cmd.Root().Writer, cmd.String("results-db"), results.Filter{
						Team:    cmd.String("team"),
						MapName: cmd.String("map"),
						Limit:   int(cmd.Int("limit")),
					})
				},
			},
			{
				Name:  "programs",
				Usage: "list the built-in control programs",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					for _, p := range programs.List() {
						fmt.Fprintf(cmd.Root().Writer, "%-12s %s\n", p.Name, p.Description)
					}
					return nil
				},
			},
		},
	}
}

type runOptions struct {
	Map       string
	Program   string
	ExecTime  int
	OutDir    string
	Seed      int64
	ResultsDB string
	Team      string
	Debug     bool
}

// resolveMap loads a .pgm path when it exists, otherwise a map by name from
// the maps directory
func resolveMap(name string) (*engine.Map, error) {
	if strings.HasSuffix(name, ".pgm") {
		if _, err := os.Stat(name); err == nil {
			return engine.LoadMapFile(name)
		}
	}
	return engine.LoadMapByName(name)
}

func runCommand(ctx context.Context, w io.Writer, opts runOptions) error {
	program, err := programs.Get(opts.Program)
	if err != nil {
		return fmt.Errorf("%w. Available programs: %v", err, programs.Names())
	}

	sim := engine.NewSimulator()
	if opts.Debug {
		sim.SetLogger(log.New(os.Stderr, "[sim] ", log.Ltime|log.Lmicroseconds))
	}
	if opts.Seed != 0 {
		sim.SetRand(engine.NewRand(opts.Seed))
	}

	mapName := "random"
	if opts.Map != "" {
		m, err := resolveMap(opts.Map)
		if err != nil {
			return err
		}
		if err := sim.SetMap(m); err != nil {
			return err
		}
		mapName = strings.TrimSuffix(filepath.Base(m.Name), ".pgm")
	}

	sinks := engine.MultiSink{engine.NewFileSink(opts.OutDir)}
	var recorder *results.Sink
	if opts.ResultsDB != "" {
		store, err := results.Open(opts.ResultsDB)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = results.NewSink(store, opts.Team, mapName)
		sinks = append(sinks, recorder)
	}
	sim.SetSink(sinks)

	if err := sim.Configure(program.New(sim), opts.ExecTime); err != nil {
		return err
	}
	result, err := sim.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Program %s on %s: %d ticks, stopped by %s\n", program.Name, mapName, result.Ticks, result.Reason)
	fmt.Fprintf(w, "Coverage %.1f%%, dirt %d/%d\n", 100*result.Stats.Coverage(), result.Stats.DirtCleaned, result.Stats.DirtTotal)
	if err := engine.WriteStats(w, result.Stats); err != nil {
		return err
	}
	if recorder != nil && recorder.Last.ID != "" {
		fmt.Fprintf(w, "Recorded run %s for team %s\n", recorder.Last.ID, recorder.Last.Team)
	}
	return nil
}

func generateCommand(w io.Writer, dir, name string, opts service.GenerateOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create maps directory: %w", err)
	}
	maps, err := config.NewManager(dir)
	if err != nil {
		return err
	}
	m, err := maps.GenerateMap(name, opts)
	if err != nil {
		return err
	}
	cells, dirt := m.CountCells()
	fmt.Fprintf(w, "Generated %s (%dx%d, %d free cells, %d dirt) in %s\n", m.Name, m.Rows(), m.Cols(), cells, dirt, dir)
	return nil
}

func showMap(w io.Writer, m *engine.Map) {
	name := m.Name
	if name == "" {
		name = "(generated)"
	}
	cells, dirt := m.CountCells()
	fmt.Fprintf(w, "%s: %dx%d, %d free cells, %d dirty cells, total depth %d\n", name, m.Rows(), m.Cols(), cells, len(m.DirtRecords()), dirt)
	if base, ok := m.Base(); ok {
		fmt.Fprintf(w, "Base at (%d,%d)\n", base.X, base.Y)
	}
	for _, row := range m.Layout() {
		fmt.Fprintln(w, row)
	}
}

func resultsCommand(w io.Writer, dbPath string, f results.Filter) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("results database %s: %w", dbPath, err)
	}
	store, err := results.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.ExportCSV(w, f)
}
