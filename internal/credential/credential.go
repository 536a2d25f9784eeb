// Package credential resolves the provider credential used for a request and
// owns the cache of provider handles bound to those credentials.
package credential

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
)

var (
	// ErrInvalidFormat indicates a caller-supplied credential does not have the expected shape.
	ErrInvalidFormat = errors.New("invalid credential format")

	// ErrOperatorUnavailable indicates the operator credential could not be obtained.
	ErrOperatorUnavailable = errors.New("operator credential unavailable")

	// ErrUserCredentialsDisabled indicates callers may not supply their own credential.
	ErrUserCredentialsDisabled = errors.New("user-supplied credentials are disabled")
)

var formatPattern = regexp.MustCompile(`^sk-[A-Za-z0-9_-]{20,200}$`)

// Source records where a credential came from.
type Source string

const (
	SourceUser     Source = "user"
	SourceOperator Source = "operator"
)

// Wire renders the source the way HTTP clients expect it.
func (s Source) Wire() string {
	if s == SourceOperator {
		return "system"
	}
	return string(s)
}

// Credential is a provider secret. Its String and LogValue forms are masked
// so it cannot leak through fmt or slog.
type Credential string

// Reveal returns the raw secret for use in an outbound request.
func (c Credential) Reveal() string {
	return string(c)
}

func (c Credential) String() string {
	return Mask(string(c))
}

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(Mask(string(c)))
}

// Mask keeps the first and last four characters of s. Short values are
// starred out entirely.
func Mask(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// ValidateFormat checks the shape of a caller-supplied credential.
func ValidateFormat(c Credential) error {
	if !formatPattern.MatchString(string(c)) {
		return ErrInvalidFormat
	}
	return nil
}
