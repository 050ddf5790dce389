package types

import "log/slog"

// redacted replaces secret values anywhere they might be printed.
const redacted = "***REDACTED***"

// SecretString holds a sensitive value (API keys, connection strings) and
// refuses to reveal it through fmt, JSON, or slog. Call Unmask where the raw
// value is genuinely required, such as an Authorization header or a database
// connection string.
type SecretString string

// String returns the redacted placeholder. Invoked by the fmt package via
// the Stringer interface.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string so config
// dumps and API responses never carry the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer; structured logs see only the placeholder.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Unmask returns the raw secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a value was configured at all.
func (s SecretString) IsSet() bool {
	return s != ""
}
