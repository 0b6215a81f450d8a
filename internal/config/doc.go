// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/asmconflicts/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/asmconflicts/config.cue on macOS, %APPDATA%\asmconflicts\config.cue
// on Windows), falling back to ./config.cue. Every key can be overridden through an
// ASMCONFLICTS_ environment variable (e.g. ASMCONFLICTS_RESOLUTION_POLICY=redirect).
//
// Files are validated against the embedded CUE schema (config_schema.cue) before they
// are merged over the defaults.
package config
