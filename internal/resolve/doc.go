// SPDX-License-Identifier: MPL-2.0

// Package resolve locates assembly definitions for reference identities.
//
// A Resolver is built per analysis run. It first consults definitions that were
// registered explicitly (the root assembly at minimum), then probes each search
// directory for "<name>.exe" and "<name>.dll" in registration order. The first
// candidate that reads as an assembly wins; whether it satisfies the request is
// decided by the configured MatchPolicy.
package resolve
