package models

import "gopkg.in/yaml.v3"

// Sensitive wraps a credential-shaped value (API key, token, password) so
// that it can be carried through config structs, logs, and error messages
// without ever rendering its contents. Construction is the only way to get
// the inner value into a place that calls an external API; String and
// GoString both redact unconditionally.
type Sensitive[T any] struct {
	value T
	set   bool
}

// redactedText is what every textual rendering of a Sensitive value shows.
const redactedText = "***REDACTED***"

// NewSensitive wraps value so it can only be read back via Reveal.
func NewSensitive[T any](value T) Sensitive[T] {
	return Sensitive[T]{value: value, set: true}
}

// Reveal returns the wrapped value. Callers should use this only at the
// boundary where the raw credential must be handed to an external API
// (an HTTP client, a provider SDK) — never to log or print it.
func (s Sensitive[T]) Reveal() T {
	return s.value
}

// IsZero reports whether the Sensitive was ever constructed with a value.
func (s Sensitive[T]) IsZero() bool {
	return !s.set
}

// String implements fmt.Stringer and always redacts.
func (s Sensitive[T]) String() string {
	return redactedText
}

// GoString implements fmt.GoStringer so %#v formatting also redacts.
func (s Sensitive[T]) GoString() string {
	return redactedText
}

// MarshalJSON always redacts, so a Sensitive value accidentally embedded in
// a struct that gets marshaled for logs or RPC responses never leaks.
func (s Sensitive[T]) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedText + `"`), nil
}

// UnmarshalYAML reads the plain value out of a config file into the wrapper.
// This is the only place a Sensitive value's contents arrive from outside
// Reveal's boundary-crossing contract.
func (s *Sensitive[T]) UnmarshalYAML(value *yaml.Node) error {
	var v T
	if err := value.Decode(&v); err != nil {
		return err
	}
	s.value = v
	s.set = true
	return nil
}

// MarshalYAML always redacts, mirroring MarshalJSON, so a Sensitive value
// written back out to a config snapshot never leaks either.
func (s Sensitive[T]) MarshalYAML() (any, error) {
	return redactedText, nil
}

// RedactedText is the placeholder every Sensitive value renders as. Callers
// that accept a config document back from an operator (e.g. a config.apply
// RPC body produced by round-tripping a previous config.show) compare
// against this to detect "field left unchanged" rather than treating the
// placeholder as a literal new secret.
const RedactedText = redactedText
