// Package config provides the map catalogue for the simulator.
//
// Maps are stored as PGM (P2) files in a maps directory, one file per map,
// and are addressed by their file name without the ".pgm" extension. The
// Manager loads and validates them on first use, caches the parsed map and
// hands out clones so every session can clean its own copy.
//
// Generated maps:
//
// The generator presets reproduce the classic map set: "noobs" (no
// obstacles), "random1", "random3" and "random5" (scattered obstacles at 1%,
// 3% and 5% density) and "walls1".."walls4" (straight wall segments). All
// presets carry 50 dirty cells and a base at a random spot along the border.
//
// Usage:
//
//	manager, err := config.NewManager("maps")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load a specific map
//	m, err := manager.LoadMap("random3")
//
//	// Generate and store a new one
//	m, err = manager.GenerateMap("practice", service.GenerateOptions{Preset: "walls2"})
//
//	// List available maps
//	maps, err := manager.ListMaps()
package config
