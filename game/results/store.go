// Package results keeps a scoreboard of finished runs in SQLite. Each row
// holds one run's statistics tagged with the team that ran it and the map
// it ran on.
package results

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	team          TEXT NOT NULL,
	map_name      TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	cell_total    INTEGER NOT NULL,
	cell_visited  INTEGER NOT NULL,
	dirt_total    INTEGER NOT NULL,
	dirt_cleaned  INTEGER NOT NULL,
	bat_total     REAL NOT NULL,
	bat_mean      REAL NOT NULL,
	forward       INTEGER NOT NULL,
	turn          INTEGER NOT NULL,
	bumps         INTEGER NOT NULL,
	clean         INTEGER NOT NULL,
	load          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_map ON runs(map_name);
`

// Run is one stored result
type Run struct {
	ID        string            `json:"id"`
	Team      string            `json:"team"`
	MapName   string            `json:"map_name"`
	CreatedAt time.Time         `json:"created_at"`
	Stats     engine.Statistics `json:"stats"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Team    string
	MapName string
	Limit   int
}

// Store manages run results in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the statistics of a finished run and returns its id.
func (s *Store) Record(team, mapName string, st engine.Statistics) (Run, error) {
	run := Run{
		ID:        uuid.New().String(),
		Team:      team,
		MapName:   mapName,
		CreatedAt: time.Now().UTC(),
		Stats:     st,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Run{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, team, map_name, created_at,
			cell_total, cell_visited, dirt_total, dirt_cleaned, bat_total, bat_mean,
			forward, turn, bumps, clean, load)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, team, mapName, run.CreatedAt.Format(time.RFC3339Nano),
		st.CellTotal, st.CellVisited, st.DirtTotal, st.DirtCleaned, st.BatteryTotal, st.BatteryMean,
		st.Forward, st.Turn, st.Bumps, st.Clean, st.Load,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit: %w", err)
	}
	return run, nil
}

// Get returns the run stored under id.
func (s *Store) Get(id string) (Run, error) {
	row := s.db.QueryRow(selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run '%s' not found", id)
	}
	return run, err
}

// List returns stored runs, best coverage first.
func (s *Store) List(f Filter) ([]Run, error) {
	query := selectRuns + ` WHERE (? = '' OR team = ?) AND (? = '' OR map_name = ?)
		ORDER BY CAST(cell_visited AS REAL) / MAX(cell_total, 1) DESC, dirt_cleaned DESC, created_at ASC`
	args := []interface{}{f.Team, f.Team, f.MapName, f.MapName}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ExportCSV writes the runs matching f in the stats.csv layout
func (s *Store) ExportCSV(w io.Writer, f Filter) error {
	runs, err := s.List(f)
	if err != nil {
		return err
	}
	return WriteCSV(w, runs)
}

// WriteCSV writes runs in the stats.csv layout, prefixed with the team and
// the map name.
func WriteCSV(w io.Writer, runs []Run) error {
	if _, err := fmt.Fprintf(w, "team, map, %s\n", engine.StatsHeader); err != nil {
		return err
	}
	for _, r := range runs {
		if _, err := fmt.Fprintf(w, "%s, %s, %s\n", r.Team, r.MapName, engine.StatsRow(r.Stats)); err != nil {
			return err
		}
	}
	return nil
}

const selectRuns = `SELECT id, team, map_name, created_at,
	cell_total, cell_visited, dirt_total, dirt_cleaned, bat_total, bat_mean,
	forward, turn, bumps, clean, load FROM runs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		created string
	)
	st := &r.Stats
	err := sc.Scan(&r.ID, &r.Team, &r.MapName, &created,
		&st.CellTotal, &st.CellVisited, &st.DirtTotal, &st.DirtCleaned, &st.BatteryTotal, &st.BatteryMean,
		&st.Forward, &st.Turn, &st.Bumps, &st.Clean, &st.Load)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	return r, nil
}
