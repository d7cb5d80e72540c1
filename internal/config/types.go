package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML and env values like "30s" or
// "5m" parse directly into config structs.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Secret holds a sensitive string. It renders as a fixed placeholder
// from String and Format so API keys cannot leak through logs or
// %v-style formatting.
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Format implements fmt.Formatter for all verbs.
func (s Secret) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, s.String())
}

// Value returns the underlying secret for use at call sites that
// genuinely need it, such as request authorization headers.
func (s Secret) Value() string {
	return string(s)
}
