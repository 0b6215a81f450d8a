// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/invowk/asmconflicts/pkg/assembly"

	"github.com/charmbracelet/log"
)

const (
	// ReasonNotFound means no search location held a readable candidate.
	ReasonNotFound Reason = "not found"
	// ReasonMismatch means a candidate was found but its identity differs from
	// the requested one under PolicyExact.
	ReasonMismatch Reason = "identity mismatch"
)

// ErrUnresolved is the sentinel error wrapped by ResolutionError.
var ErrUnresolved = errors.New("unresolved reference")

// DefaultExtensions are the candidate file extensions probed in each search
// directory, in order.
var DefaultExtensions = []string{".exe", ".dll"}

type (
	// Reader reads the definition declared by the assembly file at path.
	// *clrmeta.Reader satisfies it.
	Reader interface {
		ReadDefinition(path string) (*assembly.Definition, error)
	}

	// Reason classifies a ResolutionError.
	Reason string

	// ResolutionError reports that a reference could not be located or did not
	// match. It wraps ErrUnresolved and, when present, the last read failure.
	ResolutionError struct {
		// Reference is the identity that was requested.
		Reference assembly.Identity
		// Reason classifies the failure.
		Reason Reason
		// Found is the identity of the rejected candidate for ReasonMismatch.
		Found assembly.Identity
		// Path is the candidate file for ReasonMismatch.
		Path string
		// Err is the last candidate read error, if any.
		Err error
	}

	// Resolver resolves reference identities to definitions for one analysis run.
	// It is not safe for concurrent use; build one per run.
	Resolver struct {
		reader     Reader
		policy     MatchPolicy
		extensions []string
		dirs       []string
		registered map[string]*assembly.Definition
		// read caches successfully read candidates by path.
		read   map[string]*assembly.Definition
		logger *log.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// Error implements the error interface for ResolutionError.
func (e *ResolutionError) Error() string {
	switch {
	case e.Reason == ReasonMismatch:
		return fmt.Sprintf("resolve %s: %s: %s declares %s", e.Reference, e.Reason, e.Path, e.Found)
	case e.Err != nil:
		return fmt.Sprintf("resolve %s: %s: %v", e.Reference, e.Reason, e.Err)
	default:
		return fmt.Sprintf("resolve %s: %s", e.Reference, e.Reason)
	}
}

// Unwrap returns ErrUnresolved and the underlying read error, if any.
func (e *ResolutionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUnresolved, e.Err}
	}
	return []error{ErrUnresolved}
}

// WithPolicy sets the match policy. The default is PolicyExact.
func WithPolicy(p MatchPolicy) Option {
	return func(r *Resolver) {
		r.policy = p
	}
}

// WithExtensions replaces the probed file extensions.
func WithExtensions(exts ...string) Option {
	return func(r *Resolver) {
		r.extensions = append([]string(nil), exts...)
	}
}

// WithSearchDirectories appends search directories.
func WithSearchDirectories(dirs ...string) Option {
	return func(r *Resolver) {
		r.dirs = append(r.dirs, dirs...)
	}
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver reading candidates through reader.
func New(reader Reader, opts ...Option) *Resolver {
	r := &Resolver{
		reader:     reader,
		policy:     PolicyExact,
		extensions: DefaultExtensions,
		registered: make(map[string]*assembly.Definition),
		read:       make(map[string]*assembly.Definition),
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register makes def resolvable by its own identity without probing.
func (r *Resolver) Register(def *assembly.Definition) {
	r.registered[def.Identity.Key()] = def
}

// AddSearchDirectory appends dir to the probe order.
func (r *Resolver) AddSearchDirectory(dir string) {
	r.dirs = append(r.dirs, dir)
}

// SearchDirectories returns the probe order.
func (r *Resolver) SearchDirectories() []string {
	return append([]string(nil), r.dirs...)
}

// Policy returns the configured match policy.
func (r *Resolver) Policy() MatchPolicy {
	return r.policy
}

// Resolve returns the definition for ref or a *ResolutionError.
func (r *Resolver) Resolve(ref assembly.Identity) (*assembly.Definition, error) {
	if def, ok := r.registered[ref.Key()]; ok {
		return def, nil
	}

	var lastErr error
	for _, dir := range r.dirs {
		for _, ext := range r.extensions {
			path := filepath.Join(dir, ref.Name()+ext)
			def, err := r.probe(path)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					r.logger.Debug("skipping candidate", "path", path, "err", err)
					lastErr = err
				}
				continue
			}
			return r.match(ref, def)
		}
	}

	return nil, &ResolutionError{Reference: ref, Reason: ReasonNotFound, Err: lastErr}
}

func (r *Resolver) probe(path string) (*assembly.Definition, error) {
	if def, ok := r.read[path]; ok {
		return def, nil
	}
	def, err := r.reader.ReadDefinition(path)
	if err != nil {
		return nil, err
	}
	r.read[path] = def
	return def, nil
}

func (r *Resolver) match(ref assembly.Identity, def *assembly.Definition) (*assembly.Definition, error) {
	if def.Identity == ref || r.policy == PolicyRedirect {
		return def, nil
	}
	r.logger.Debug("rejecting candidate", "want", ref, "found", def.Identity, "path", def.Path)
	return nil, &ResolutionError{
		Reference: ref,
		Reason:    ReasonMismatch,
		Found:     def.Identity,
		Path:      def.Path,
	}
}
