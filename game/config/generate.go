package config

import (
	"math/rand/v2"
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

// Preset is a named set of generator parameters
type Preset struct {
	Name        string
	Description string
	Dirt        int
	Density     float64
}

// Presets mirrors the classic map set handed out with the simulator
var Presets = []Preset{
	{Name: "noobs", Description: "No obstacles, dirt only", Dirt: 50, Density: 0},
	{Name: "random1", Description: "Scattered obstacles, low density", Dirt: 50, Density: 0.01},
	{Name: "random3", Description: "Scattered obstacles, medium density", Dirt: 50, Density: 0.03},
	{Name: "random5", Description: "Scattered obstacles, high density", Dirt: 50, Density: 0.05},
	{Name: "walls1", Description: "One wall segment", Dirt: 50, Density: 1},
	{Name: "walls2", Description: "Two wall segments", Dirt: 50, Density: 2},
	{Name: "walls3", Description: "Three wall segments", Dirt: 50, Density: 3},
	{Name: "walls4", Description: "Four wall segments", Dirt: 50, Density: 4},
}

// FindPreset looks a preset up by name
func FindPreset(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// PresetNames lists the preset names in catalogue order
func PresetNames() []string {
	names := make([]string, len(Presets))
	for i, p := range Presets {
		names[i] = p.Name
	}
	return names
}

// Apply fills the generator options with the preset's parameters. Sizes,
// seed and base placement given by the caller are kept.
func (p Preset) Apply(opts service.GenerateOptions) service.GenerateOptions {
	opts.Dirt = p.Dirt
	opts.Density = p.Density
	opts.RandomBase = true
	return opts
}

// Generate builds a map from options. Zero sizes mean the full 50x50 arena
// and a zero seed uses the clock.
func Generate(opts service.GenerateOptions) (*engine.Map, error) {
	if opts.Rows == 0 {
		opts.Rows = engine.MaxWorldSize
	}
	if opts.Cols == 0 {
		opts.Cols = engine.MaxWorldSize
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := engine.NewRand(seed)

	mp, err := engine.Generate(rng, opts.Rows, opts.Cols, opts.Dirt, opts.Density)
	if err != nil {
		return nil, err
	}
	if opts.RandomBase {
		PlaceRandomBase(rng, mp)
	}
	return mp, nil
}

// PlaceRandomBase puts the base on a random free cell along the inner edge
// of the border. Maps without a free edge cell are left without a base.
func PlaceRandomBase(rng *rand.Rand, mp *engine.Map) bool {
	var free []engine.Position
	rows, cols := mp.Rows(), mp.Cols()
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			if x != 1 && x != cols-2 && y != 1 && y != rows-2 {
				continue
			}
			if mp.Cell(y, x) == engine.CellEmpty {
				free = append(free, engine.Position{X: x, Y: y})
			}
		}
	}
	if len(free) == 0 {
		return false
	}
	p := free[rng.IntN(len(free))]
	mp.PutBase(p.X, p.Y)
	return true
}
