// SPDX-License-Identifier: MPL-2.0

package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/invowk/asmconflicts/internal/conflict"
	"github.com/invowk/asmconflicts/internal/issue"
	"github.com/invowk/asmconflicts/internal/refgraph"
	"github.com/invowk/asmconflicts/internal/refpath"
	"github.com/invowk/asmconflicts/internal/report"
	"github.com/invowk/asmconflicts/internal/resolve"
	"github.com/invowk/asmconflicts/pkg/clrmeta"

	"github.com/charmbracelet/log"
)

// Options configures one analysis run.
type Options struct {
	// AssemblyPath is the root assembly. Relative paths are resolved against
	// the working directory.
	AssemblyPath string
	// IncludeSystem keeps conflicts on names matched by Filter.
	IncludeSystem bool
	// SearchDirs are probed after the root assembly's directory, in order.
	SearchDirs []string
	// Extensions are the candidate file extensions. Empty means
	// resolve.DefaultExtensions.
	Extensions []string
	// Policy is the resolver match policy. Empty means resolve.PolicyExact.
	Policy resolve.MatchPolicy
	// Filter names the platform assemblies. Nil means conflict.DefaultSystemFilter().
	Filter *conflict.SystemFilter
	// Reader reads assembly files. Nil means clrmeta.Reader.
	Reader resolve.Reader
	// Logger receives debug diagnostics. Nil discards them.
	Logger *log.Logger
}

// Run analyzes the assembly at opts.AssemblyPath and returns its conflict report.
// Failures to read the root assembly are fatal; failures to resolve references
// below it are recorded in the report.
func Run(ctx context.Context, opts Options) (*report.Report, error) {
	opts = withDefaults(opts)
	logger := opts.Logger

	if valid, errs := opts.Policy.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("analyze assembly").
			WithSuggestion("Use --policy exact or --policy redirect").
			WithIssue(issue.InvalidArgumentsId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	if err := checkCanceled(ctx, "read"); err != nil {
		return nil, err
	}

	path, err := filepath.Abs(opts.AssemblyPath)
	if err != nil {
		return nil, fmt.Errorf("resolve assembly path %q: %w", opts.AssemblyPath, err)
	}

	root, err := opts.Reader.ReadDefinition(path)
	if err != nil {
		return nil, readError(opts.AssemblyPath, err)
	}
	logger.Debug("read root assembly", "identity", root.Identity, "references", len(root.References))

	dirs, err := searchDirectories(filepath.Dir(path), opts.SearchDirs)
	if err != nil {
		return nil, err
	}

	resolver := resolve.New(opts.Reader,
		resolve.WithPolicy(opts.Policy),
		resolve.WithExtensions(opts.Extensions...),
		resolve.WithSearchDirectories(dirs...),
		resolve.WithLogger(logger),
	)
	resolver.Register(root)

	if err := checkCanceled(ctx, "build"); err != nil {
		return nil, err
	}

	g := refgraph.Build(root, resolver, refgraph.WithLogger(logger))
	logger.Debug("built reference graph", "nodes", g.Len(), "unresolved", len(g.Unresolved))

	if err := checkCanceled(ctx, "detect"); err != nil {
		return nil, err
	}

	groups := conflict.Detect(g.Identities, opts.IncludeSystem, *opts.Filter)
	paths := make(map[string][]refpath.Path, len(groups))
	for _, grp := range groups {
		if err := checkCanceled(ctx, "enumerate"); err != nil {
			return nil, err
		}
		paths[grp.Name] = refpath.Find(grp.Name, g.Root)
	}

	return report.New(path, g, groups, paths), nil
}

func withDefaults(opts Options) Options {
	if opts.Reader == nil {
		opts.Reader = clrmeta.Reader{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Policy == "" {
		opts.Policy = resolve.PolicyExact
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = resolve.DefaultExtensions
	}
	if opts.Filter == nil {
		f := conflict.DefaultSystemFilter()
		opts.Filter = &f
	}
	return opts
}

// searchDirectories returns rootDir followed by the absolute form of extra,
// without duplicates.
func searchDirectories(rootDir string, extra []string) ([]string, error) {
	dirs := []string{rootDir}
	for _, dir := range extra {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve search directory %q: %w", dir, err)
		}
		if !slices.Contains(dirs, abs) {
			dirs = append(dirs, abs)
		}
	}
	return dirs, nil
}

func checkCanceled(ctx context.Context, phase string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analysis canceled before %s: %w", phase, err)
	}
	return nil
}

// readError turns a root read failure into an actionable error.
func readError(path string, err error) error {
	ec := issue.NewErrorContext().
		WithOperation("read assembly").
		WithResource(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		ec.WithIssue(issue.AssemblyNotFoundId).
			WithSuggestion("Check the path passed to --assembly").
			WithSuggestion("Relative paths are resolved against the current directory")
	case errors.Is(err, fs.ErrPermission):
		ec.WithIssue(issue.PermissionDeniedId).
			WithSuggestion("Check that the file is readable by the current user")
	case errors.Is(err, clrmeta.ErrNotAssembly):
		ec.WithIssue(issue.NotAnAssemblyId).
			WithSuggestion("Pass a managed .exe or .dll, not a native binary").
			WithSuggestion("Reference assemblies of the application usually sit next to it")
	case errors.Is(err, clrmeta.ErrMalformed):
		ec.WithIssue(issue.MalformedMetadataId).
			WithSuggestion("Rebuild the assembly or restore it from a known good copy")
	}

	return ec.Wrap(err).BuildError()
}
