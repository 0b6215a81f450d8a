// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// FormatText is the human-readable listing of conflicts and their paths.
	FormatText Format = "text"
	// FormatJSON renders the full report as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders the full report as YAML.
	FormatYAML Format = "yaml"
	// FormatTOML renders the full report as TOML.
	FormatTOML Format = "toml"
)

// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid output format")

type (
	// Format selects how a Report is rendered.
	Format string

	// InvalidFormatError is returned when a Format value is not recognized.
	// It wraps ErrInvalidFormat for errors.Is() compatibility.
	InvalidFormatError struct {
		Value Format
	}
)

// Error implements the error interface for InvalidFormatError.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid output format %q (valid: text, json, yaml, toml)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// IsValid returns whether the Format is one of the defined formats,
// and a list of validation errors if it is not.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatText, FormatJSON, FormatYAML, FormatTOML:
		return true, nil
	default:
		return false, []error{&InvalidFormatError{Value: f}}
	}
}

// Write renders r to w in format f.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatText, "":
		return writeText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(r); err != nil {
			return fmt.Errorf("encode toml report: %w", err)
		}
		return nil
	default:
		return &InvalidFormatError{Value: f}
	}
}

// writeText prints each conflicting name followed by its reference paths and
// a blank line:
//
//	A has conflicts. Reference paths
//	  (1.0.0.0, aa) App => A
//	  (2.0.0.0, bb) App => B => A
func writeText(w io.Writer, r *Report) error {
	for _, c := range r.Conflicts {
		if _, err := fmt.Fprintf(w, "%s has conflicts. Reference paths\n", c.Name); err != nil {
			return err
		}
		for _, ref := range c.References {
			if _, err := fmt.Fprintf(w, "  (%s, %s) %s\n", ref.Version, ref.PublicKeyToken, ref.Path); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
