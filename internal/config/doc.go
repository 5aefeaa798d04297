// Package config loads, validates, and normalizes the TOML configuration
// shared by the daemon and CLI.
//
// Configuration lives at ~/.config/loom/config.toml by default, with a
// project-local loom.toml fallback. All path fields are expanded to absolute
// paths at load time; Validate enforces the invariants the rest of the system
// assumes (positive intervals, sane quality bounds, segment ordering).
package config
