// Package config loads hangar's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/hangar/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or blank, use defaults
//
// # Example
//
//	api_url = "https://cp.example.com"
//	state_dir = "~/.local/state/hangar"
//	request_timeout_seconds = 15
//	log_level = "info"     # debug, info, warn, error
//	log_format = "auto"    # auto, console, json
//
//	[poll]
//	transitional_ms = 1000
//	active_ms = 3000
//	idle_ms = 10000
//	cap_ms = 60000
//	jitter_ms = 500
//	cold_start_ms = 1000
//	max_error_streak = 5
//
//	[[poll.scale]]
//	min_entities = 20
//	factor = 1.5
//
// Listing any [[poll.scale]] entry replaces the default steps entirely.
//
// # Validation
//
// Load rejects an unknown log level or format, a non-positive timeout, and
// poll tuning that poll.Policy.Validate refuses (for example a cap below a
// base interval).
package config
