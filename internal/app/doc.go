// Package app is the composition root of the tabtime popup.
//
// # Overview
//
// Run wires configuration, the request channel, the push sources and the
// popup model into one Bubble Tea program, then blocks until the popup
// closes. Everything created here lives exactly as long as one mount.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()            Read ~/.config/tabtime/config.toml
//	       ├─────> prefs.Load()             Theme and last view
//	       ├─────> tracker.NewHTTPTransport Loopback API to the background
//	       ├─────> backup.New()             bbolt user info backup
//	       ├─────> popup.New()              Session + model
//	       ├─────> events.StartPump()       SSE pushes  -> Program.Send
//	       ├─────> events.NewBusWatcher()   Bus pushes  -> Program.Send
//	       └─────> Program.Run()            Event loop (blocks)
//
// # Error Handling
//
// A malformed config file or an unusable api_bind fails Run. A missing
// background process does not: the popup mounts, renders defaults and
// marks itself offline. A bus or backup that cannot be opened only
// disables that feature.
//
// # Teardown
//
// Closing the popup tears the session down from inside the event loop. Run
// also tears it down after the program exits, which covers cancellation by
// signal. Teardown is idempotent.
package app
