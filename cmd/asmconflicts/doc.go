// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for asmconflicts.
//
// The root command analyzes one assembly and prints its version conflicts;
// the config subcommands inspect and initialize the configuration file.
// Execution goes through fang, which supplies styled help, --version and
// interrupt handling.
package cmd
