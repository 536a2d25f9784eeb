package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
)

const defaultCheckTimeout = 15 * time.Second

// SecretStore supplies the operator credential.
type SecretStore interface {
	OperatorCredential(ctx context.Context) (string, error)
}

// Factory builds a provider bound to a credential. It must not perform network I/O.
type Factory func(credential string) (provider.Provider, error)

// Options configures a Resolver.
type Options struct {
	AllowUserCredentials bool
	CheckTimeout         time.Duration
	// BackendTimeouts overrides CheckTimeout per backend name.
	BackendTimeouts map[string]time.Duration
}

// Resolver decides which credential serves a request and hands out the
// provider handle bound to it.
type Resolver struct {
	store        SecretStore
	factory      Factory
	cache        *HandleCache
	allowUser    bool
	checkTimeout time.Duration
	timeouts     map[string]time.Duration
}

// NewResolver wires a resolver. cache is owned by the resolver from here on.
func NewResolver(store SecretStore, factory Factory, cache *HandleCache, opts Options) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("secret store must not be nil")
	}
	if factory == nil {
		return nil, errors.New("provider factory must not be nil")
	}
	if cache == nil {
		cache = NewHandleCache(0)
	}
	timeout := opts.CheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Resolver{
		store:        store,
		factory:      factory,
		cache:        cache,
		allowUser:    opts.AllowUserCredentials,
		checkTimeout: timeout,
		timeouts:     opts.BackendTimeouts,
	}, nil
}

// UserCredentialsAllowed reports whether callers may supply a credential.
func (r *Resolver) UserCredentialsAllowed() bool {
	return r.allowUser
}

// Resolve returns the handle for supplied, or for the operator credential
// when supplied is empty.
func (r *Resolver) Resolve(ctx context.Context, supplied Credential) (*Handle, error) {
	if supplied != "" {
		return r.resolveUser(supplied)
	}
	return r.resolveOperator(ctx)
}

func (r *Resolver) resolveUser(c Credential) (*Handle, error) {
	if !r.allowUser {
		return nil, ErrUserCredentialsDisabled
	}
	if err := ValidateFormat(c); err != nil {
		return nil, err
	}

	key := c.Reveal()
	if h, ok := r.cache.Get(key); ok {
		return h, nil
	}

	p, err := r.factory(key)
	if err != nil {
		return nil, fmt.Errorf("construct provider for %s: %w", c, err)
	}
	h := &Handle{Key: key, Source: SourceUser, Credential: c, Provider: p}
	r.cache.Put(key, h)
	slog.Debug("cached provider handle", "credential", c, "backend", p.Name(), "cached_handles", r.cache.Len())
	return h, nil
}

func (r *Resolver) resolveOperator(ctx context.Context) (*Handle, error) {
	raw, err := r.store.OperatorCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOperatorUnavailable, err)
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: secret store returned an empty value", ErrOperatorUnavailable)
	}
	c := Credential(raw)

	if h, ok := r.cache.Get(operatorKey); ok && h.Credential == c {
		return h, nil
	}

	p, err := r.factory(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOperatorUnavailable, err)
	}
	h := &Handle{Key: operatorKey, Source: SourceOperator, Credential: c, Provider: p}
	r.cache.Put(operatorKey, h)
	slog.Info("operator provider handle ready", "credential", c, "backend", p.Name())
	return h, nil
}

// Check confirms c is live with a read-only listing call on a fresh,
// uncached provider. The returned error is classified by the provider.
func (r *Resolver) Check(ctx context.Context, c Credential) error {
	if err := ValidateFormat(c); err != nil {
		return err
	}
	p, err := r.factory(c.Reveal())
	if err != nil {
		return fmt.Errorf("construct provider for %s: %w", c, err)
	}

	timeout := r.checkTimeout
	if d, ok := r.timeouts[p.Name()]; ok && d > 0 {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := p.ListModels(ctx); err != nil {
		return err
	}
	return nil
}

// TestCredential reports whether c is live. It never fails; every error
// becomes false.
func (r *Resolver) TestCredential(ctx context.Context, c Credential) bool {
	err := r.Check(ctx, c)
	if err != nil {
		slog.Info("credential check failed", "credential", c, "reason", provider.KindOf(err).String())
		return false
	}
	slog.Info("credential check passed", "credential", c)
	return true
}

// OperatorAvailable reports whether the operator credential can currently be fetched.
func (r *Resolver) OperatorAvailable(ctx context.Context) bool {
	v, err := r.store.OperatorCredential(ctx)
	return err == nil && v != ""
}

// Clear drops every cached handle.
func (r *Resolver) Clear() {
	r.cache.Clear()
}

// CachedHandles reports the number of cached handles.
func (r *Resolver) CachedHandles() int {
	return r.cache.Len()
}
