package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
	"github.com/wricardo/mcp-training/roombasim/game/service"
)

var (
	ErrMapNotFound = errors.New("map not found")
	ErrInvalidMap  = errors.New("invalid map")
)

// DefaultMap is the map used when a session does not name one
const DefaultMap = "noobs"

// Manager handles map loading and caching. Maps handed out are clones, so a
// simulator can clean them without touching the cache.
type Manager struct {
	mapDir     string
	defaultMap string
	maps       map[string]*engine.Map
	mu         sync.RWMutex
}

// NewManager creates a new map catalogue over mapDir
func NewManager(mapDir string) (*Manager, error) {
	if _, err := os.Stat(mapDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("map directory does not exist: %s", mapDir)
	}

	m := &Manager{
		mapDir: mapDir,
		maps:   make(map[string]*engine.Map),
	}
	m.pickDefault()
	return m, nil
}

// Dir returns the catalogue directory
func (m *Manager) Dir() string {
	return m.mapDir
}

// LoadMap loads a map by name
func (m *Manager) LoadMap(name string) (*engine.Map, error) {
	name = strings.TrimSuffix(name, ".pgm")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: bad map name '%s'", ErrInvalidMap, name)
	}

	m.mu.RLock()
	if cached, exists := m.maps[name]; exists {
		m.mu.RUnlock()
		return cached.Clone(), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cached, exists := m.maps[name]; exists {
		return cached.Clone(), nil
	}

	path := filepath.Join(m.mapDir, name+".pgm")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrMapNotFound
	}

	loaded, err := engine.LoadMapFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	if err := engine.ValidateMap(loaded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	loaded.Name = name

	m.maps[name] = loaded
	return loaded.Clone(), nil
}

// ListMaps returns information about every loadable map in the directory
func (m *Manager) ListMaps() ([]*service.MapInfo, error) {
	entries, err := os.ReadDir(m.mapDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read map directory: %w", err)
	}

	var infos []*service.MapInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pgm") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".pgm")

		loaded, err := m.LoadMap(name)
		if err != nil {
			// Skip invalid maps
			continue
		}
		info := service.NewMapInfo(loaded)
		info.Filename = entry.Name()
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].MapID < infos[j].MapID })
	return infos, nil
}

// GetDefault returns a fresh copy of the default map, nil when the catalogue
// is empty and the simulator should generate its own arena.
func (m *Manager) GetDefault() *engine.Map {
	m.mu.RLock()
	name := m.defaultMap
	m.mu.RUnlock()

	if name == "" {
		return nil
	}
	mp, err := m.LoadMap(name)
	if err != nil {
		return nil
	}
	return mp
}

// SetDefault sets the default map by name
func (m *Manager) SetDefault(name string) error {
	if _, err := m.LoadMap(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMap = strings.TrimSuffix(name, ".pgm")
	return nil
}

// RefreshCache drops every cached map so the next load rereads the disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.maps = make(map[string]*engine.Map)
	m.mu.Unlock()

	m.pickDefault()
}

// pickDefault prefers DefaultMap, then the first map in the directory
func (m *Manager) pickDefault() {
	name := ""
	if _, err := m.LoadMap(DefaultMap); err == nil {
		name = DefaultMap
	} else if infos, err := m.ListMaps(); err == nil && len(infos) > 0 {
		name = infos[0].MapID
	}

	m.mu.Lock()
	m.defaultMap = name
	m.mu.Unlock()
}

// SaveMap validates a map and writes it to the directory as PGM
func (m *Manager) SaveMap(name string, mp *engine.Map) error {
	name = strings.TrimSuffix(name, ".pgm")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad map name '%s'", ErrInvalidMap, name)
	}
	if err := engine.ValidateMap(mp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}

	path := filepath.Join(m.mapDir, name+".pgm")
	if err := mp.SaveFile(path); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	stored := mp.Clone()
	stored.Name = name

	m.mu.Lock()
	m.maps[name] = stored
	if m.defaultMap == "" {
		m.defaultMap = name
	}
	m.mu.Unlock()

	return nil
}

// GenerateMap builds a random map and saves it under name
func (m *Manager) GenerateMap(name string, opts service.GenerateOptions) (*engine.Map, error) {
	if opts.Preset != "" {
		preset, ok := FindPreset(opts.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset '%s'. Available presets: %v", opts.Preset, PresetNames())
		}
		opts = preset.Apply(opts)
	}
	if name == "" {
		name = opts.Preset
	}
	if name == "" {
		name = fmt.Sprintf("generated-%d", time.Now().Unix())
	}

	mp, err := Generate(opts)
	if err != nil {
		return nil, err
	}
	if err := m.SaveMap(name, mp); err != nil {
		return nil, err
	}
	mp.Name = strings.TrimSuffix(name, ".pgm")
	return mp, nil
}
