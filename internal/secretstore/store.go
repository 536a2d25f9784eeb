// Package secretstore provides the sources of the operator-held fallback credential.
package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
)

// ErrSecretNotFound indicates the store holds no usable credential.
var ErrSecretNotFound = errors.New("operator secret not found")

// Store returns the operator credential.
type Store interface {
	OperatorCredential(ctx context.Context) (string, error)
}

// New builds the store selected by cfg. The returned close function releases
// watchers or clients and is never nil.
func New(ctx context.Context, cfg config.OperatorConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Source {
	case config.SecretSourceEnv:
		return Env{Var: cfg.EnvVar}, noop, nil
	case config.SecretSourceFile:
		f, err := NewFile(cfg.File, cfg.Field)
		if err != nil {
			return nil, noop, err
		}
		return f, f.Close, nil
	case config.SecretSourceAWS:
		a, err := NewAWS(ctx, cfg.AWS.Region, cfg.AWS.SecretID, cfg.Field, cfg.AWS.CacheTTL)
		if err != nil {
			return nil, noop, err
		}
		return a, noop, nil
	case config.SecretSourceNone:
		return None{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown operator secret source %q", cfg.Source)
	}
}

// Env reads the credential from an environment variable.
type Env struct {
	Var string
}

func (e Env) OperatorCredential(context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(e.Var))
	if v == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrSecretNotFound, e.Var)
	}
	return v, nil
}

// None disables the operator fallback.
type None struct{}

func (None) OperatorCredential(context.Context) (string, error) {
	return "", fmt.Errorf("%w: operator credential disabled", ErrSecretNotFound)
}

// parseSecret accepts either a bare key or a JSON object holding it under field.
func parseSecret(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrSecretNotFound
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decode secret document: %w", err)
	}
	v, ok := doc[field].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: field %q missing from secret document", ErrSecretNotFound, field)
	}
	return strings.TrimSpace(v), nil
}
