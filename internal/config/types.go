// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/asmconflicts/internal/conflict"
	"github.com/invowk/asmconflicts/internal/report"
	"github.com/invowk/asmconflicts/internal/resolve"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidExtension is the sentinel error wrapped by InvalidExtensionError.
	ErrInvalidExtension = errors.New("invalid probe extension")
	// ErrInvalidSearchDir is the sentinel error wrapped by InvalidSearchDirError.
	ErrInvalidSearchDir = errors.New("invalid search directory")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme used to render guidance.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidExtensionError is returned when a probe extension does not start
	// with a dot or contains a path separator.
	InvalidExtensionError struct {
		Value string
	}

	// InvalidSearchDirError is returned when a search directory is whitespace-only.
	InvalidSearchDirError struct {
		Value string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// System configures which names count as platform assemblies.
		System SystemConfig `json:"system" mapstructure:"system"`
		// Resolution configures how references are located on disk.
		Resolution ResolutionConfig `json:"resolution" mapstructure:"resolution"`
		// Output configures report rendering.
		Output OutputConfig `json:"output" mapstructure:"output"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// SystemConfig lists the platform assembly names and prefixes.
	SystemConfig struct {
		Names    []string `json:"names" mapstructure:"names"`
		Prefixes []string `json:"prefixes" mapstructure:"prefixes"`
	}

	// ResolutionConfig configures the resolver.
	ResolutionConfig struct {
		// SearchDirs are probed after the root assembly's directory.
		SearchDirs []string `json:"search_dirs" mapstructure:"search_dirs"`
		// Extensions are the candidate file extensions, in probe order.
		Extensions []string `json:"extensions" mapstructure:"extensions"`
		// Policy decides whether a differing identity on disk still resolves.
		Policy resolve.MatchPolicy `json:"policy" mapstructure:"policy"`
	}

	// OutputConfig configures report rendering.
	OutputConfig struct {
		Format report.Format `json:"format" mapstructure:"format"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging and rendered issue guidance.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme selects the style of rendered issue guidance.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	filter := conflict.DefaultSystemFilter()
	return &Config{
		System: SystemConfig{
			Names:    filter.Names,
			Prefixes: filter.Prefixes,
		},
		Resolution: ResolutionConfig{
			SearchDirs: []string{},
			Extensions: append([]string(nil), resolve.DefaultExtensions...),
			Policy:     resolve.PolicyExact,
		},
		Output: OutputConfig{
			Format: report.FormatText,
		},
		UI: UIConfig{
			Verbose:     false,
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Filter returns the conflict filter described by the configuration.
func (c SystemConfig) Filter() conflict.SystemFilter {
	return conflict.SystemFilter{Names: c.Names, Prefixes: c.Prefixes}
}

// IsValid returns whether the ResolutionConfig has valid fields.
func (c ResolutionConfig) IsValid() (bool, []error) {
	var errs []error
	for _, dir := range c.SearchDirs {
		if strings.TrimSpace(dir) == "" {
			errs = append(errs, &InvalidSearchDirError{Value: dir})
		}
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
			errs = append(errs, &InvalidExtensionError{Value: ext})
		}
	}
	if valid, fieldErrs := c.Policy.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the Config has valid fields.
// It delegates to Resolution.IsValid(), Output.Format.IsValid() and
// UI.ColorScheme.IsValid().
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Resolution.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Output.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is()
// matches both the config sentinel and the field-level sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface for InvalidExtensionError.
func (e *InvalidExtensionError) Error() string {
	return fmt.Sprintf("invalid probe extension %q: must start with '.' and name no directory", e.Value)
}

// Unwrap returns ErrInvalidExtension for errors.Is() compatibility.
func (e *InvalidExtensionError) Unwrap() error { return ErrInvalidExtension }

// Error implements the error interface for InvalidSearchDirError.
func (e *InvalidSearchDirError) Error() string {
	return fmt.Sprintf("invalid search directory %q: must not be empty", e.Value)
}

// Unwrap returns ErrInvalidSearchDir for errors.Is() compatibility.
func (e *InvalidSearchDirError) Unwrap() error { return ErrInvalidSearchDir }

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}
