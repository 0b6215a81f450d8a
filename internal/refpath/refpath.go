// SPDX-License-Identifier: MPL-2.0

// Package refpath reconstructs the reference paths that lead from the root of a
// reference graph to every node with a given simple name.
package refpath

import (
	"cmp"
	"slices"

	"github.com/invowk/asmconflicts/internal/refgraph"
	"github.com/invowk/asmconflicts/pkg/assembly"
)

// Separator joins the simple names along a route.
const Separator = " => "

type (
	// Path is one route from the root to a node named like the target.
	Path struct {
		// Route is the chain of simple names, e.g. "App => B => A".
		Route string
		// Version is the version of the reached node.
		Version assembly.Version
		// PublicKeyToken is the lowercase hex token of the reached node, or "".
		PublicKeyToken string
	}

	frame struct {
		node  *refgraph.Node
		route string
		next  int
	}
)

// Find returns every path from root to a child named target, sorted by version
// then token.
//
// A matching child ends its branch. Other children are expanded only the first
// time this call reaches them, so past a shared node only the first-discovered
// branch is followed.
func Find(target string, root *refgraph.Node) []Path {
	var result []Path
	visited := make(map[*refgraph.Node]bool)

	stack := []*frame{{node: root, route: root.Identity.Name()}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.node.Children) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := top.node.Children[top.next]
		top.next++

		route := top.route + Separator + child.Identity.Name()
		if child.Identity.Name() == target {
			result = append(result, Path{
				Route:          route,
				Version:        child.Identity.Version(),
				PublicKeyToken: child.Identity.TokenHex(),
			})
			continue
		}
		if visited[child] {
			continue
		}
		visited[child] = true
		stack = append(stack, &frame{node: child, route: route})
	}

	slices.SortStableFunc(result, func(a, b Path) int {
		if c := a.Version.Compare(b.Version); c != 0 {
			return c
		}
		return cmp.Compare(a.PublicKeyToken, b.PublicKeyToken)
	})
	return result
}
