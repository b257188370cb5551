// Package programs holds the built-in control programs. Each program builds
// a fresh set of callbacks bound to an Actuator, so its state lives in the
// closure and two runs never share it.
package programs

import (
	"fmt"
	"sort"

	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

// Factory binds a program to a robot
type Factory func(robot engine.Actuator) engine.Callbacks

// Program describes a registered control program
type Program struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	New         Factory `json:"-"`
}

var registry = map[string]Program{}

// Register adds a program under its name. Empty names and nil factories are ignored.
func Register(p Program) {
	if p.Name == "" || p.New == nil {
		return
	}
	registry[p.Name] = p
}

// Get returns the program registered under name
func Get(name string) (Program, error) {
	p, ok := registry[name]
	if !ok {
		return Program{}, fmt.Errorf("unknown program '%s'", name)
	}
	return p, nil
}

// List returns the registered programs sorted by name
func List() []Program {
	out := make([]Program, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered program names sorted
func Names() []string {
	var names []string
	for _, p := range List() {
		names = append(names, p.Name)
	}
	return names
}

func init() {
	Register(Program{Name: "idle", Description: "Wakes up and vacuums in place", New: Idle})
	Register(Program{Name: "forward", Description: "Drives straight ahead until the battery runs out", New: Forward})
	Register(Program{Name: "square", Description: "Drives in squares of ten steps per side", New: Square})
	Register(Program{Name: "wallfollow", Description: "Turns on bumps and veers back towards walls", New: WallFollow})
	Register(Program{Name: "cleaner", Description: "Bounces off walls, cleans dirt and recharges when low", New: Cleaner})
}
