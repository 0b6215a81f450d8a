// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/invowk/asmconflicts/internal/analysis"
	"github.com/invowk/asmconflicts/internal/config"
	"github.com/invowk/asmconflicts/internal/report"
	"github.com/invowk/asmconflicts/internal/resolve"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// runAnalyze analyzes opts.assembly and writes the report to stdout.
// Flags take precedence over the configuration; --search-dir appends to the
// configured directories.
func runAnalyze(cmd *cobra.Command, opts *rootOptions) error {
	cfg := opts.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	format := cfg.Output.Format
	if cmd.Flags().Changed("output") {
		format = report.Format(opts.output)
	}
	policy := cfg.Resolution.Policy
	if cmd.Flags().Changed("policy") {
		policy = resolve.MatchPolicy(opts.policy)
	}
	if err := validateFlags(format, policy); err != nil {
		return &UsageError{Err: err, Usage: cmd.UsageString()}
	}

	filter := cfg.System.Filter()
	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)

	rep, err := analysis.Run(cmd.Context(), analysis.Options{
		AssemblyPath:  opts.assembly,
		IncludeSystem: opts.includeSystem,
		SearchDirs:    append(append([]string(nil), cfg.Resolution.SearchDirs...), opts.searchDirs...),
		Extensions:    cfg.Resolution.Extensions,
		Policy:        policy,
		Filter:        &filter,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	if err := report.Write(cmd.OutOrStdout(), rep, format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if opts.verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), VerboseStyle.Render(fmt.Sprintf(
			"%d assemblies, %d conflicts, %d unresolved references",
			rep.Summary.Nodes, rep.Summary.Conflicts, rep.Summary.Unresolved)))
	}
	return nil
}

func validateFlags(format report.Format, policy resolve.MatchPolicy) error {
	var errs []error
	if valid, fieldErrs := format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := policy.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	return errors.Join(errs...)
}

// newLogger returns the run logger: debug level when verbose, warnings otherwise.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}
