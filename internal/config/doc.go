// Package config loads runtime settings for mvpkit applications.
//
// Settings come from three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. MVPKIT_* environment variables
//
// Example file:
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[dispatcher]
//	guard_window = 128
//	metrics = true
//
//	[events]
//	sweep_interval = "30s"
//
//	[manifest]
//	path = "bindings.toml"
//	watch = true
//
// The matching environment variables are MVPKIT_LOG_LEVEL,
// MVPKIT_DISPATCHER_GUARD_WINDOW, MVPKIT_EVENTS_SWEEP_INTERVAL,
// MVPKIT_MANIFEST_PATH and so on. MVPKIT_SCRIPTS is a comma separated list.
package config
