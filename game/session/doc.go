// Package session provides session management for the simulator server.
//
// Each session owns one engine.Simulator configured with a copy of a map
// and a tick budget, plus a pristine copy of that map used to reset it.
// Sessions are addressed by short 4-character hex IDs generated from
// crypto/rand and looked up case-insensitively.
//
// Concurrency:
//
// The manager is safe for concurrent use. A session's simulator is not:
// callers take the session lock (Session.Lock) around every use, which also
// lets a background program step the simulator while other requests read it.
//
// Persistence:
//
// With a SessionPersistence attached, sessions are saved as JSON after
// creation and access and reloaded on startup. A session saved in the middle
// of a run comes back paused with a manual control program, so it can be
// continued action by action or stopped.
//
// Usage:
//
//	persistence, _ := session.NewFilePersistence("sessions")
//	manager := session.NewManagerWithPersistence(persistence)
//	manager.LoadPersistedSessions()
//
//	sess, err := manager.Create("", "noobs", arena, 1000)
//	if err != nil {
//		log.Fatal(err)
//	}
package session
