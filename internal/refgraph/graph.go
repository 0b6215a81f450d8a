// SPDX-License-Identifier: MPL-2.0

package refgraph

import (
	"io"

	"github.com/invowk/asmconflicts/pkg/assembly"

	"github.com/charmbracelet/log"
)

type (
	// Resolver resolves a reference to the definition it denotes.
	// *resolve.Resolver satisfies it.
	Resolver interface {
		Resolve(ref assembly.Identity) (*assembly.Definition, error)
	}

	// Node is one distinct identity in the graph. Children follow the
	// declaration order of the definition the node was expanded from.
	Node struct {
		Identity assembly.Identity
		Children []*Node
		// Unresolved marks a placeholder for a reference that failed to resolve.
		// Placeholders have no children.
		Unresolved bool
	}

	// Unresolved records a reference that failed to resolve and why.
	Unresolved struct {
		Reference assembly.Identity
		Err       error
	}

	// Graph is the result of one Build.
	Graph struct {
		// Root is the node of the root definition.
		Root *Node
		// Identities lists every distinct node identity in creation order.
		Identities []assembly.Identity
		// Unresolved lists the failed resolutions in the order they occurred.
		Unresolved []Unresolved

		nodes map[string]*Node
	}

	// Option configures Build.
	Option func(*builder)

	builder struct {
		resolver Resolver
		logger   *log.Logger
	}

	// frame is one definition being expanded: the node, its declared
	// references, and the index of the next reference to visit.
	frame struct {
		node *Node
		refs []assembly.Identity
		next int
	}
)

// WithLogger sets the logger used to report unresolved references.
func WithLogger(l *log.Logger) Option {
	return func(b *builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Build walks the references reachable from root and returns the graph.
// Resolution failures never abort the walk; they become placeholder nodes.
func Build(root *assembly.Definition, r Resolver, opts ...Option) *Graph {
	b := &builder{resolver: r, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(b)
	}

	g := &Graph{nodes: make(map[string]*Node)}
	g.Root = g.add(root.Identity, false)

	stack := []*frame{{node: g.Root, refs: root.References}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.refs) {
			stack = stack[:len(stack)-1]
			continue
		}
		ref := top.refs[top.next]
		top.next++

		if n, ok := g.nodes[ref.Key()]; ok {
			top.node.Children = append(top.node.Children, n)
			continue
		}

		def, err := b.resolver.Resolve(ref)
		if err != nil {
			b.logger.Debug("unresolved reference", "from", top.node.Identity.Name(), "ref", ref, "err", err)
			n := g.add(ref, true)
			top.node.Children = append(top.node.Children, n)
			g.Unresolved = append(g.Unresolved, Unresolved{Reference: ref, Err: err})
			continue
		}

		if n, ok := g.nodes[def.Identity.Key()]; ok {
			top.node.Children = append(top.node.Children, n)
			continue
		}

		n := g.add(def.Identity, false)
		top.node.Children = append(top.node.Children, n)
		stack = append(stack, &frame{node: n, refs: def.References})
	}

	return g
}

// add creates, memoizes and lists a node for id.
func (g *Graph) add(id assembly.Identity, unresolved bool) *Node {
	n := &Node{Identity: id, Unresolved: unresolved}
	g.nodes[id.Key()] = n
	g.Identities = append(g.Identities, id)
	return n
}

// Node returns the node memoized for id.
func (g *Graph) Node(id assembly.Identity) (*Node, bool) {
	n, ok := g.nodes[id.Key()]
	return n, ok
}

// Len returns the number of distinct nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}
