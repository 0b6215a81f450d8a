// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"github.com/invowk/asmconflicts/internal/resolve"
	"github.com/invowk/asmconflicts/pkg/assembly"
)

// Catalog is an in-memory resolver that matches references by canonical key.
// Lookups of identities that were never added fail with a
// *resolve.ResolutionError, like a probe that finds nothing on disk.
type Catalog struct {
	defs  map[string]*assembly.Definition
	calls map[string]int
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		defs:  make(map[string]*assembly.Definition),
		calls: make(map[string]int),
	}
}

// Add registers a definition parsed from display names and returns it.
// It panics on malformed names.
func (c *Catalog) Add(identity string, refs ...string) *assembly.Definition {
	def := Definition(identity, refs...)
	c.defs[def.Identity.Key()] = def
	return def
}

// Resolve implements the graph builder's resolver contract.
func (c *Catalog) Resolve(ref assembly.Identity) (*assembly.Definition, error) {
	c.calls[ref.Key()]++
	if def, ok := c.defs[ref.Key()]; ok {
		return def, nil
	}
	return nil, &resolve.ResolutionError{Reference: ref, Reason: resolve.ReasonNotFound}
}

// Calls returns how many times ref was resolved.
func (c *Catalog) Calls(ref assembly.Identity) int {
	return c.calls[ref.Key()]
}

// Definition builds a definition from display names. It panics on malformed names.
func Definition(identity string, refs ...string) *assembly.Definition {
	def := &assembly.Definition{Identity: assembly.MustParseIdentity(identity)}
	for _, r := range refs {
		def.References = append(def.References, assembly.MustParseIdentity(r))
	}
	return def
}
