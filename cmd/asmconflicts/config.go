// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/invowk/asmconflicts/internal/config"
	"github.com/invowk/asmconflicts/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `asmconflicts config` command tree.
// Subcommands see the configuration loaded by the root command.
func newConfigCommand(opts *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage asmconflicts configuration",
		Long: `Manage asmconflicts configuration.

Configuration is stored in:
  - Linux: ~/.config/asmconflicts/config.cue
  - macOS: ~/Library/Application Support/asmconflicts/config.cue
  - Windows: %APPDATA%\asmconflicts\config.cue

A config.cue in the current directory is used when none exists there.
Every key can be overridden with an ASMCONFLICTS_<SECTION>_<KEY> environment
variable, e.g. ASMCONFLICTS_RESOLUTION_POLICY=redirect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source := opts.cfgPath
			if source == "" {
				source = "defaults"
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "// source: %s\n", source)
			fmt.Fprint(w, config.GenerateCUE(opts.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.cfgPath != "" {
				fmt.Fprintln(cmd.OutOrStdout(), opts.cfgPath)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path, SubtitleStyle.Render("(not created)"))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
	})

	return cfgCmd
}

func initConfig(cmd *cobra.Command) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
	if _, err := os.Stat(path); err == nil {
		return issue.NewErrorContext().
			WithOperation("create configuration").
			WithResource(path).
			WithSuggestion("Edit the existing file, or remove it to start over").
			Wrap(fs.ErrExist).
			BuildError()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("check %s: %w", path, err)
	}

	written, err := config.Save(config.DefaultConfig(), dir)
	if err != nil {
		return issue.WrapWithContext(err, "create configuration", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", CmdStyle.Render(written))
	return nil
}
