// SPDX-License-Identifier: MPL-2.0

// Package conflict groups discovered identities by simple name and reports the
// names that occur with more than one distinct identity.
package conflict

import (
	"cmp"
	"slices"
	"strings"

	"github.com/invowk/asmconflicts/pkg/assembly"
)

type (
	// SystemFilter names the platform assemblies whose conflicts are hidden
	// unless explicitly requested. A name is filtered when it equals one of
	// Names or starts with one of Prefixes.
	SystemFilter struct {
		Names    []string `json:"names" mapstructure:"names"`
		Prefixes []string `json:"prefixes" mapstructure:"prefixes"`
	}

	// Group is one conflicting simple name and its distinct identities,
	// ordered by assembly.Identity.Compare.
	Group struct {
		Name       string
		Identities []assembly.Identity
	}
)

// DefaultSystemFilter returns the filter for the .NET base class library:
// mscorlib, System and System.*.
func DefaultSystemFilter() SystemFilter {
	return SystemFilter{
		Names:    []string{"mscorlib", "System"},
		Prefixes: []string{"System."},
	}
}

// Matches reports whether name is a system name.
func (f SystemFilter) Matches(name string) bool {
	if slices.Contains(f.Names, name) {
		return true
	}
	for _, p := range f.Prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Detect returns the conflicting groups in ids, sorted by name. Names matched
// by filter are dropped unless includeFiltered is set. Duplicate identities in
// ids count once.
func Detect(ids []assembly.Identity, includeFiltered bool, filter SystemFilter) []Group {
	byName := make(map[string][]assembly.Identity)
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id.Key()] {
			continue
		}
		seen[id.Key()] = true
		byName[id.Name()] = append(byName[id.Name()], id)
	}

	var groups []Group
	for name, members := range byName {
		if len(members) < 2 {
			continue
		}
		if !includeFiltered && filter.Matches(name) {
			continue
		}
		slices.SortFunc(members, assembly.Identity.Compare)
		groups = append(groups, Group{Name: name, Identities: members})
	}

	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Name, b.Name) })
	return groups
}
