// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
)

const (
	// PolicyExact accepts a probed definition only when its identity equals the
	// requested one. Anything else is reported as unresolved.
	PolicyExact MatchPolicy = "exact"
	// PolicyRedirect accepts whatever definition the probe found, so a request
	// for A 1.0 may be satisfied by A 2.0 on disk.
	PolicyRedirect MatchPolicy = "redirect"
)

// ErrInvalidMatchPolicy is the sentinel error wrapped by InvalidMatchPolicyError.
var ErrInvalidMatchPolicy = errors.New("invalid match policy")

type (
	// MatchPolicy decides what happens when resolution finds a definition whose
	// identity differs from the requested reference.
	MatchPolicy string

	// InvalidMatchPolicyError is returned when a MatchPolicy value is not recognized.
	// It wraps ErrInvalidMatchPolicy for errors.Is() compatibility.
	InvalidMatchPolicyError struct {
		Value MatchPolicy
	}
)

// Error implements the error interface for InvalidMatchPolicyError.
func (e *InvalidMatchPolicyError) Error() string {
	return fmt.Sprintf("invalid match policy %q (valid: exact, redirect)", e.Value)
}

// Unwrap returns ErrInvalidMatchPolicy for errors.Is() compatibility.
func (e *InvalidMatchPolicyError) Unwrap() error { return ErrInvalidMatchPolicy }

// String returns the string representation of the MatchPolicy.
func (p MatchPolicy) String() string { return string(p) }

// IsValid returns whether the MatchPolicy is one of the defined policies,
// and a list of validation errors if it is not.
func (p MatchPolicy) IsValid() (bool, []error) {
	switch p {
	case PolicyExact, PolicyRedirect:
		return true, nil
	default:
		return false, []error{&InvalidMatchPolicyError{Value: p}}
	}
}
