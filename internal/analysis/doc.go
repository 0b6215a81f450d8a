// SPDX-License-Identifier: MPL-2.0

// Package analysis runs one end-to-end conflict analysis: it reads the root
// assembly, builds a per-run resolver probing the root's directory and any
// extra search directories, walks the reference graph, and collects the
// conflicting names with every path that reaches them.
package analysis
