package engine

import "errors"

var (
	// ErrWorldTooLarge is returned when requested or loaded dimensions exceed MaxWorldSize
	ErrWorldTooLarge = errors.New("world exceeds maximum size")
	// ErrWorldTooSmall is returned when a map has no interior
	ErrWorldTooSmall = errors.New("world too small")
	// ErrMalformedMap is returned when a PGM stream cannot be parsed
	ErrMalformedMap = errors.New("malformed map")
	// ErrTooMuchDirt is returned when a generator cannot place all requested dirt
	ErrTooMuchDirt = errors.New("not enough free cells for dirt")
	// ErrNoBehavior is returned by Configure when no behavior callback is given
	ErrNoBehavior = errors.New("behavior callback is required")
	// ErrNotConfigured is returned when running a simulator before Configure
	ErrNotConfigured = errors.New("simulator not configured")
	// ErrRunInProgress is returned when a second run is started concurrently
	ErrRunInProgress = errors.New("run already in progress")
)
