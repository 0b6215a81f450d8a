// SPDX-License-Identifier: MPL-2.0

package assembly

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// neutralCulture is how an empty culture is rendered in a display name.
	neutralCulture = "neutral"
	// nullToken is how an absent public key token is rendered in a display name.
	nullToken = "null"
)

// ErrInvalidIdentity is the sentinel error wrapped by InvalidIdentityError.
var ErrInvalidIdentity = errors.New("invalid assembly identity")

type (
	// Identity is the immutable, comparable identity of an assembly or an
	// assembly reference: simple name, version, culture and public key token.
	//
	// Two identities are equal iff their canonical keys are equal, which is
	// also exactly when the Go values compare equal with ==.
	Identity struct {
		name    string
		version Version
		// culture is "" for the neutral culture.
		culture string
		// token holds the raw public key token bytes; "" when absent.
		token string
	}

	// InvalidIdentityError is returned when a display name cannot be parsed.
	InvalidIdentityError struct {
		Value  string
		Reason string
	}

	// Definition is a loaded assembly: its own identity and the identities it
	// references, in declaration order.
	Definition struct {
		Identity   Identity
		References []Identity
		// Path is the file the definition was read from, if any.
		Path string
	}
)

// Error implements the error interface.
func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("invalid assembly identity %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidIdentity so callers can use errors.Is for programmatic detection.
func (e *InvalidIdentityError) Unwrap() error { return ErrInvalidIdentity }

// NewIdentity creates an Identity. The token slice is copied; a culture of
// "neutral" (any case) is normalized to the empty culture.
func NewIdentity(name string, version Version, culture string, token []byte) Identity {
	if strings.EqualFold(culture, neutralCulture) {
		culture = ""
	}
	return Identity{
		name:    name,
		version: version,
		culture: culture,
		token:   string(token),
	}
}

// Name returns the simple name.
func (id Identity) Name() string { return id.name }

// Version returns the four-part version.
func (id Identity) Version() Version { return id.version }

// Culture returns the culture, or "" for the neutral culture.
func (id Identity) Culture() string { return id.culture }

// HasToken reports whether the identity carries a public key token.
func (id Identity) HasToken() bool { return id.token != "" }

// PublicKeyToken returns a copy of the public key token bytes, or nil.
func (id Identity) PublicKeyToken() []byte {
	if id.token == "" {
		return nil
	}
	return []byte(id.token)
}

// TokenHex renders the public key token as lowercase hex, two digits per byte.
// An absent token renders as "".
func (id Identity) TokenHex() string {
	return hex.EncodeToString([]byte(id.token))
}

// IsZero reports whether the identity is the zero value.
func (id Identity) IsZero() bool { return id == Identity{} }

// Key returns the canonical key of the identity. It is the only normalization
// used for memoization, deduplication and grouping:
//
//	Name, Version=1.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089
func (id Identity) Key() string {
	var sb strings.Builder
	sb.Grow(len(id.name) + 64)
	sb.WriteString(id.name)
	sb.WriteString(", Version=")
	sb.WriteString(id.version.String())
	sb.WriteString(", Culture=")
	if id.culture == "" {
		sb.WriteString(neutralCulture)
	} else {
		sb.WriteString(id.culture)
	}
	sb.WriteString(", PublicKeyToken=")
	if id.token == "" {
		sb.WriteString(nullToken)
	} else {
		sb.WriteString(id.TokenHex())
	}
	return sb.String()
}

// String returns the display name, which is the canonical key.
func (id Identity) String() string { return id.Key() }

// Compare orders identities by version, then token hex, then name, then
// culture. It returns -1, 0 or +1.
func (id Identity) Compare(other Identity) int {
	if c := id.version.Compare(other.version); c != 0 {
		return c
	}
	if c := strings.Compare(id.TokenHex(), other.TokenHex()); c != 0 {
		return c
	}
	if c := strings.Compare(id.name, other.name); c != 0 {
		return c
	}
	return strings.Compare(id.culture, other.culture)
}

// ParseIdentity parses a display name such as
// "Newtonsoft.Json, Version=13.0.0.0, Culture=neutral, PublicKeyToken=30ad4fe6b2a6aeed".
// Omitted attributes default to version 0.0.0.0, neutral culture and no token.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(s, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Identity{}, &InvalidIdentityError{Value: s, Reason: "empty simple name"}
	}

	var (
		version Version
		culture string
		token   []byte
	)
	for _, part := range parts[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return Identity{}, &InvalidIdentityError{Value: s, Reason: fmt.Sprintf("attribute %q has no value", part)}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "version":
			v, err := ParseVersion(value)
			if err != nil {
				return Identity{}, &InvalidIdentityError{Value: s, Reason: err.Error()}
			}
			version = v
		case "culture":
			culture = value
		case "publickeytoken":
			if strings.EqualFold(value, nullToken) || value == "" {
				token = nil
				continue
			}
			b, err := hex.DecodeString(value)
			if err != nil {
				return Identity{}, &InvalidIdentityError{Value: s, Reason: "public key token is not hex"}
			}
			token = b
		default:
			// Attributes such as ProcessorArchitecture or Retargetable do not
			// participate in the identity.
		}
	}

	return NewIdentity(name, version, culture, token), nil
}

// MustParseIdentity is like ParseIdentity but panics on error.
// It is intended for tests and static tables.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}
