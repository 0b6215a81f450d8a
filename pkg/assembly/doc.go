// SPDX-License-Identifier: MPL-2.0

// Package assembly defines the identity model shared by every stage of the
// conflict analysis: Version, Identity and Definition.
//
// Identity.Key is the single canonical encoding of an identity. Memoization in
// the graph builder, deduplication and conflict grouping all compare identities
// through it (or through ==, which is equivalent), so formatting differences
// can never split one assembly into two nodes.
package assembly
