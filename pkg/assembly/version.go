// SPDX-License-Identifier: MPL-2.0

package assembly

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid assembly version")

type (
	// Version is a four-part assembly version (major.minor.build.revision).
	// It is compared component by component; no compatibility semantics apply.
	Version struct {
		Major    uint16
		Minor    uint16
		Build    uint16
		Revision uint16
	}

	// InvalidVersionError is returned when a version string cannot be parsed.
	InvalidVersionError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid assembly version %q (expected 2 to 4 dot-separated numbers in 0-65535)", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for programmatic detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// NewVersion creates a Version from its four parts.
func NewVersion(major, minor, build, revision uint16) Version {
	return Version{Major: major, Minor: minor, Build: build, Revision: revision}
}

// ParseVersion parses "major.minor[.build[.revision]]". Missing parts are zero.
func ParseVersion(s string) (Version, error) {
	fields := strings.Split(s, ".")
	if len(fields) < 2 || len(fields) > 4 {
		return Version{}, &InvalidVersionError{Value: s}
	}

	var parts [4]uint16
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return Version{}, &InvalidVersionError{Value: s}
		}
		parts[i] = uint16(n)
	}
	return NewVersion(parts[0], parts[1], parts[2], parts[3]), nil
}

// String renders all four parts, e.g. "4.0.0.0".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// Compare returns -1, 0 or +1 comparing v with other part by part.
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Build, other.Build); c != 0 {
		return c
	}
	return cmp.Compare(v.Revision, other.Revision)
}

// MarshalText renders the version for structured report formats.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a version from its text form.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
