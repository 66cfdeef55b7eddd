// Package config loads the tabtime configuration file shared by the popup
// and the background process.
//
// # Resolution
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/tabtime/config.toml
//  3. If the file doesn't exist, use defaults
//  4. Missing or blank keys keep their defaults
//
// # Keys
//
//	api_bind = "127.0.0.1:7490"          # background process HTTP API
//	state_dir = "~/.local/share/tabtime" # logs, backup.db
//	bus_dir = "<state_dir>/bus"          # cross-surface event spool
//	critical_timeout = "1.5s"            # core state, single attempt
//	background_timeout = "5s"            # everything else, per attempt
//	background_attempts = 3
//	critical_fallback_every = "60s"
//	statistics_every = "30s"
//	icon_timeout = "2s"
//	icon_lookup = "https://www.google.com/s2/favicons?domain=%s&sz=64"
//	log_level = "info"
//
// Durations use Go syntax. An empty icon_lookup disables remote icons.
//
// # Errors
//
// Load returns errors for path expansion failures, read errors other than a
// missing file, TOML syntax errors and values that do not parse. A missing
// file is not an error.
package config
