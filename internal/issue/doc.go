// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors for the CLI.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for the user. Known failure modes (missing or non-.NET input,
// bad configuration) also have Markdown guidance that is rendered with glamour
// when the CLI runs in verbose mode.
package issue
