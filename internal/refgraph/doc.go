// SPDX-License-Identifier: MPL-2.0

// Package refgraph builds the reference graph of an assembly.
//
// Build walks declared references depth-first from the root, resolving each one
// at most once per canonical identity. Nodes are shared between parents, so the
// result is a graph with convergence and possibly cycles, not a tree. References
// that fail to resolve become placeholder nodes at their nominal identity and are
// never expanded.
//
// The walk uses an explicit frame stack instead of recursion; the memo lookup
// that precedes every expansion is what guarantees termination on cyclic
// references.
package refgraph
