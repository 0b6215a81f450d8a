// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions and fakes shared by tests.
//
// The Must* helpers fail the test on error and register their own cleanup.
// Catalog is an in-memory resolver for graph-level tests that do not need
// assembly files on disk; see the clrmetatest subpackage for those.
package testutil
