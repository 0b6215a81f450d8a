// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invowk/asmconflicts/internal/config"
	"github.com/invowk/asmconflicts/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootOptions holds the flag values of one invocation and the configuration
// loaded for it.
type rootOptions struct {
	assembly      string
	includeSystem bool
	searchDirs    []string
	policy        string
	output        string
	verbose       bool
	configFile    string

	cfg     *config.Config
	cfgPath string
}

// newRootCommand builds the command tree around opts.
func newRootCommand(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "asmconflicts -a <assembly> [flags]",
		Short: "Detect diamond version conflicts between referenced .NET assemblies",
		Long: TitleStyle.Render("asmconflicts") + SubtitleStyle.Render(" - detect diamond version conflicts in .NET applications") + `

asmconflicts reads the assembly references of a compiled application, follows
them through every assembly it can locate, and reports each simple name that is
referenced with more than one identity, together with every reference path
that leads to it.

Referenced assemblies are looked up next to the analyzed assembly, then in
each --search-dir, as <name>.exe and <name>.dll.

` + SubtitleStyle.Render("Examples:") + `
  asmconflicts -a bin/App.exe                 Report conflicts of App.exe
  asmconflicts -a bin/App.exe -s              Include System.* and mscorlib
  asmconflicts -a bin/App.exe -d lib -o json  Probe lib/ too, print JSON
  asmconflicts config show                    Show the effective configuration`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &UsageError{Err: fmt.Errorf("unexpected argument %q", args[0]), Usage: cmd.UsageString()}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.loadConfig(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.assembly == "" {
				if cmd.Flags().NFlag() == 0 {
					_ = cmd.Help()
					return &ExitError{Code: 1}
				}
				return &UsageError{Err: errors.New(`required flag "assembly" not set`), Usage: cmd.UsageString()}
			}
			return runAnalyze(cmd, opts)
		},
	}

	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &UsageError{Err: err, Usage: c.UsageString()}
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.assembly, "assembly", "a", "", "path of the assembly to analyze")
	flags.BoolVarP(&opts.includeSystem, "include-system", "s", false, "include conflicts on system assemblies (mscorlib, System, System.*)")
	flags.StringArrayVarP(&opts.searchDirs, "search-dir", "d", nil, "additional directory to probe for referenced assemblies (repeatable)")
	flags.StringVar(&opts.policy, "policy", "", "identity match policy: exact or redirect (default from config, exact)")
	flags.StringVarP(&opts.output, "output", "o", "", "report format: text, json, yaml or toml (default from config, text)")

	persistent := rootCmd.PersistentFlags()
	persistent.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	persistent.StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/asmconflicts/config.cue)")
	persistent.BoolP("help", "?", false, "show help")

	rootCmd.AddCommand(newConfigCommand(opts))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with its status.
// This is called by main.main().
func Execute() {
	opts := &rootOptions{}
	rootCmd := newRootCommand(opts)
	// Without an *os.File fang passes every error to the handler below,
	// even when stderr is not a terminal.
	rootCmd.SetErr(stderrWriter{os.Stderr})

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			printError(w, err, opts.verbose, opts.colorScheme())
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// stderrWriter hides the *os.File behind stderr.
type stderrWriter struct{ io.Writer }

// loadConfig loads the configuration and folds its UI settings into opts.
func (o *rootOptions) loadConfig(ctx context.Context) error {
	cfg, path, err := config.NewProvider().Load(ctx, config.LoadOptions{ConfigFilePath: o.configFile})
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.cfgPath = path
	if !o.verbose {
		o.verbose = cfg.UI.Verbose
	}
	return nil
}

// colorScheme returns the glamour style used to render issue guidance.
func (o *rootOptions) colorScheme() string {
	if o.cfg == nil {
		return string(config.ColorSchemeAuto)
	}
	return o.cfg.UI.ColorScheme.String()
}

// printError writes err for the user. Usage errors are followed by the usage
// text; in verbose mode known issues are followed by their rendered guidance.
func printError(w io.Writer, err error, verbose bool, style string) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, verbose))

	var usageErr *UsageError
	if errors.As(err, &usageErr) && usageErr.Usage != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, usageErr.Usage)
		return
	}

	var ae *issue.ActionableError
	if !verbose || !errors.As(err, &ae) || ae.Issue() == nil {
		return
	}
	rendered, renderErr := ae.Issue().Render(style)
	if renderErr != nil {
		fmt.Fprintln(w, WarningStyle.Render("Warning:")+" cannot render guidance: "+renderErr.Error())
		return
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
