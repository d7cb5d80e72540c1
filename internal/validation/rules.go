package validation

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// ErrInvalidRules indicates a ruleset file that exists but cannot be used.
var ErrInvalidRules = errors.New("invalid validation rules")

// Rules parameterizes the configurable checks. Zero-value fields fall back
// to the compiled-in defaults.
type Rules struct {
	RequiredSections   []string `toml:"required_sections"`
	RequiredImports    []string `toml:"required_imports"`
	PlaceholderMarkers []string `toml:"placeholder_markers"`
}

// DefaultRules returns the compiled-in ruleset.
func DefaultRules() Rules {
	return Rules{
		RequiredSections: []string{
			generation.SectionSetup,
			generation.SectionConfig,
			generation.SectionGraph,
			generation.SectionExecution,
		},
		RequiredImports: []string{"langgraph", "StateGraph", "END"},
		PlaceholderMarkers: []string{
			"TODO",
			"FIXME",
			"PLACEHOLDER",
			"# Your code here",
			"pass  # implement",
		},
	}
}

// LoadRules reads a TOML ruleset file over the defaults. A missing file is
// not an error; keys absent from the file keep their default values.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return Rules{}, fmt.Errorf("%w: %s: %v", ErrInvalidRules, path, err)
	}

	var file struct {
		Rules Rules `toml:"rules"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Rules{}, fmt.Errorf("%w: %s: %v", ErrInvalidRules, path, err)
	}

	if len(file.Rules.RequiredSections) > 0 {
		rules.RequiredSections = file.Rules.RequiredSections
	}
	if len(file.Rules.RequiredImports) > 0 {
		rules.RequiredImports = file.Rules.RequiredImports
	}
	if len(file.Rules.PlaceholderMarkers) > 0 {
		rules.PlaceholderMarkers = file.Rules.PlaceholderMarkers
	}
	return rules, nil
}
