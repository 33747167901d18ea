package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// redactedMarker replaces secret values in every rendered form.
const redactedMarker = "[REDACTED]"

// Secret is a string that renders redacted everywhere Go can print or
// serialize it. Only Value returns the real content; call it at the point
// of use and nowhere else.
type Secret string

// Value returns the actual secret.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool {
	return s != ""
}

// masked is the rendered form. Empty stays empty so optional fields do not
// show a marker for a value that was never set.
func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redactedMarker
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return s.masked()
}

// GoString implements fmt.GoStringer, guarding %#v output.
func (s Secret) GoString() string {
	return "Secret(" + redactedMarker + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.masked()), nil
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.masked())
}

// MarshalYAML implements yaml.Marshaler.
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.masked(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; input is the raw value.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler; input is the raw value.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler; input is the raw value.
func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// Duration wraps time.Duration so timeouts read naturally in YAML and env
// values ("45s", "5m"). Negative durations are rejected at parse time.
type Duration time.Duration

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}
