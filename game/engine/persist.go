package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink receives what a run leaves behind
type Sink interface {
	SaveLog(samples []Sensor) error
	SaveStats(stats Statistics) error
	SaveMap(m *Map) error
}

const (
	LogHeader   = "y, x, head, bump, ifr, batt"
	StatsHeader = "cell_total, cell_visited, dirt_total, dirt_cleaned, bat_total, bat_mean, forward, turn, bumps, clean, load"
)

// WriteLog writes the tick history as CSV with the heading in degrees
func WriteLog(w io.Writer, samples []Sensor) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, LogHeader)
	for _, s := range samples {
		bump := 0
		if s.Bumper {
			bump = 1
		}
		fmt.Fprintf(bw, "%d, %d, %.1f, %d, %d, %.1f\n", s.Y, s.X, s.HeadingDegrees(), bump, s.Infrared, s.Battery)
	}
	return bw.Flush()
}

// WriteStats writes the header and a single statistics row
func WriteStats(w io.Writer, st Statistics) error {
	if _, err := fmt.Fprintln(w, StatsHeader); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, StatsRow(st))
	return err
}

// StatsRow formats the statistics as one CSV row without header
func StatsRow(st Statistics) string {
	return fmt.Sprintf("%d, %d, %d, %d, %.1f, %.1f, %d, %d, %d, %d, %d",
		st.CellTotal, st.CellVisited, st.DirtTotal, st.DirtCleaned,
		st.BatteryTotal, st.BatteryMean,
		st.Forward, st.Turn, st.Bumps, st.Clean, st.Load)
}

// FileSink persists runs as files inside Dir
type FileSink struct {
	Dir       string
	LogFile   string
	StatsFile string
	MapFile   string
}

// NewFileSink returns a sink writing log.csv, stats.csv and map.pgm into dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{
		Dir:       dir,
		LogFile:   "log.csv",
		StatsFile: "stats.csv",
		MapFile:   "map.pgm",
	}
}

func (f *FileSink) create(name string) (*os.File, error) {
	if f.Dir != "" {
		if err := os.MkdirAll(f.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.Create(filepath.Join(f.Dir, name))
}

func (f *FileSink) write(name string, fn func(io.Writer) error) error {
	file, err := f.create(name)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return file.Close()
}

// SaveLog writes the history CSV
func (f *FileSink) SaveLog(samples []Sensor) error {
	return f.write(f.LogFile, func(w io.Writer) error { return WriteLog(w, samples) })
}

// SaveStats writes the statistics CSV
func (f *FileSink) SaveStats(st Statistics) error {
	return f.write(f.StatsFile, func(w io.Writer) error { return WriteStats(w, st) })
}

// SaveMap writes the map in PGM format
func (f *FileSink) SaveMap(m *Map) error {
	return f.write(f.MapFile, m.Save)
}

// MultiSink fans out to several sinks, collecting every error
type MultiSink []Sink

func (ms MultiSink) SaveLog(samples []Sensor) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.SaveLog(samples))
	}
	return errors.Join(errs...)
}

func (ms MultiSink) SaveStats(st Statistics) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.SaveStats(st))
	}
	return errors.Join(errs...)
}

func (ms MultiSink) SaveMap(m *Map) error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.SaveMap(m))
	}
	return errors.Join(errs...)
}
