// Package websocket pushes live simulation events to browser clients.
//
// A central Hub owns every connection. Clients attach to one session through
// the /ws?session=<id> endpoint and receive a JSON Message for each event the
// simulator service publishes for that session:
//
//	{"session_id": "a1b2", "event": "tick", "data": {"tick": 12, "sample": {...}}}
//
// Events are "tick" (one robot sample), "state_update" (a full state view
// after a command or a program run) and "finished" (the final statistics).
//
// Hub implements service.Publisher. Publish never blocks the simulation: the
// event queue is bounded and events are dropped when it is full. Clients
// that fall behind are disconnected.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	svc := service.NewSimService(sessions, maps, service.Options{Publisher: hub})
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
