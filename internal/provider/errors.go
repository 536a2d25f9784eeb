package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for classified provider failures.
var (
	// ErrInvalidCredential indicates the provider rejected the credential.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrInsufficientQuota indicates the account behind the credential is out of quota.
	ErrInsufficientQuota = errors.New("insufficient quota")

	// ErrModelNotFound indicates the requested model does not exist or is not accessible.
	ErrModelNotFound = errors.New("model not found")

	// ErrTransient indicates a failure that may succeed later (rate limits, outages, timeouts).
	ErrTransient = errors.New("transient provider error")

	// ErrUnknown indicates a provider failure that could not be classified.
	ErrUnknown = errors.New("unknown provider error")
)

// Kind classifies a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredential
	KindInsufficientQuota
	KindModelNotFound
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindInsufficientQuota:
		return "insufficient_quota"
	case KindModelNotFound:
		return "model_not_found"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidCredential:
		return ErrInvalidCredential
	case KindInsufficientQuota:
		return ErrInsufficientQuota
	case KindModelNotFound:
		return ErrModelNotFound
	case KindTransient:
		return ErrTransient
	default:
		return ErrUnknown
	}
}

// Error wraps a classified provider failure with context.
// Message never contains credential material.
type Error struct {
	Kind     Kind
	Provider string // backend name ("openai", "anthropic")
	Op       string // operation that failed ("chat", "list_models")
	Status   int    // upstream HTTP status, 0 for transport failures
	Code     string // upstream machine code when present
	Message  string
	Err      error // underlying cause, optional
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Provider, e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Provider, e.Op, e.Kind, msg)
}

// Unwrap exposes the kind sentinel and the underlying cause for errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the classification of err, KindUnknown when err is not a provider error.
func KindOf(err error) Kind {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return KindInvalidCredential
	case errors.Is(err, ErrInsufficientQuota):
		return KindInsufficientQuota
	case errors.Is(err, ErrModelNotFound):
		return KindModelNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// TransportError classifies a failure that happened before an HTTP status was received.
// Timeouts, cancellations and network errors are transient.
func TransportError(providerName, op string, err error) *Error {
	kind := KindUnknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTransient
	case errors.As(err, &netErr):
		kind = KindTransient
	}
	return &Error{
		Kind:     kind,
		Provider: providerName,
		Op:       op,
		Message:  "request failed",
		Err:      err,
	}
}

// KindForStatus maps an HTTP status with no more specific upstream code to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindInvalidCredential
	case status == 402:
		return KindInsufficientQuota
	case status == 404:
		return KindModelNotFound
	case status == 408 || status == 409 || status == 429 || status >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}
