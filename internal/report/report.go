// SPDX-License-Identifier: MPL-2.0

// Package report holds the result of a conflict analysis and renders it as
// plain text, JSON, YAML or TOML.
package report

import (
	"github.com/invowk/asmconflicts/internal/conflict"
	"github.com/invowk/asmconflicts/internal/refgraph"
	"github.com/invowk/asmconflicts/internal/refpath"
)

type (
	// Report is the outcome of one analysis run.
	Report struct {
		// Root is the canonical identity of the analyzed assembly.
		Root string `json:"root" yaml:"root" toml:"root"`
		// Path is the absolute path of the analyzed assembly.
		Path string `json:"path" yaml:"path" toml:"path"`
		// Summary counts what the run discovered.
		Summary Summary `json:"summary" yaml:"summary" toml:"summary"`
		// Conflicts lists conflicting simple names in name order.
		Conflicts []Conflict `json:"conflicts" yaml:"conflicts" toml:"conflicts"`
		// Unresolved lists references that did not resolve, in discovery order.
		Unresolved []Unresolved `json:"unresolved" yaml:"unresolved" toml:"unresolved"`
	}

	// Summary holds the run counters.
	Summary struct {
		Nodes      int `json:"nodes" yaml:"nodes" toml:"nodes"`
		Conflicts  int `json:"conflicts" yaml:"conflicts" toml:"conflicts"`
		Unresolved int `json:"unresolved" yaml:"unresolved" toml:"unresolved"`
	}

	// Conflict is one simple name referenced with several identities.
	Conflict struct {
		Name       string      `json:"name" yaml:"name" toml:"name"`
		Identities []string    `json:"identities" yaml:"identities" toml:"identities"`
		References []Reference `json:"references" yaml:"references" toml:"references"`
	}

	// Reference is one path from the root to a conflicting identity.
	Reference struct {
		Path           string `json:"path" yaml:"path" toml:"path"`
		Version        string `json:"version" yaml:"version" toml:"version"`
		PublicKeyToken string `json:"public_key_token" yaml:"public_key_token" toml:"public_key_token"`
	}

	// Unresolved is a reference the resolver could not satisfy.
	Unresolved struct {
		Reference string `json:"reference" yaml:"reference" toml:"reference"`
		Reason    string `json:"reason" yaml:"reason" toml:"reason"`
	}
)

// New assembles a report from a built graph, its conflict groups, and the paths
// found for each group (keyed by group name).
func New(path string, g *refgraph.Graph, groups []conflict.Group, paths map[string][]refpath.Path) *Report {
	r := &Report{
		Root:       g.Root.Identity.Key(),
		Path:       path,
		Conflicts:  make([]Conflict, 0, len(groups)),
		Unresolved: make([]Unresolved, 0, len(g.Unresolved)),
		Summary: Summary{
			Nodes:      g.Len(),
			Conflicts:  len(groups),
			Unresolved: len(g.Unresolved),
		},
	}

	for _, grp := range groups {
		c := Conflict{Name: grp.Name}
		for _, id := range grp.Identities {
			c.Identities = append(c.Identities, id.Key())
		}
		for _, p := range paths[grp.Name] {
			c.References = append(c.References, Reference{
				Path:           p.Route,
				Version:        p.Version.String(),
				PublicKeyToken: p.PublicKeyToken,
			})
		}
		r.Conflicts = append(r.Conflicts, c)
	}

	for _, u := range g.Unresolved {
		r.Unresolved = append(r.Unresolved, Unresolved{
			Reference: u.Reference.Key(),
			Reason:    u.Err.Error(),
		})
	}

	return r
}
