package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownBackend indicates no registered backend accepts the credential or name.
var ErrUnknownBackend = errors.New("unknown provider backend")

// ErrDuplicateBackend indicates an attempt to register the same backend or prefix twice.
var ErrDuplicateBackend = errors.New("provider backend already registered")

// Constructor builds a Provider bound to a single credential.
// It must not perform network I/O.
type Constructor func(credential string) (Provider, error)

// Backend describes a provider implementation and the credential prefixes it serves.
type Backend struct {
	Name     string
	Prefixes []string
	New      Constructor
	// Fallback is the catalog assumed when listing models fails.
	Fallback []string
	// Timeout bounds a single call to the backend. Zero leaves it to the caller.
	Timeout time.Duration
}

// Registry maintains the configured backends and routes credentials to them.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Backend
	byPrefix map[string]string
}

// NewRegistry constructs an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]Backend),
		byPrefix: make(map[string]string),
	}
}

// Register adds a backend, rejecting duplicate names and prefixes.
func (r *Registry) Register(b Backend) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("backend name must not be empty")
	}
	if b.New == nil {
		return fmt.Errorf("backend %q: constructor must not be nil", b.Name)
	}
	if len(b.Prefixes) == 0 {
		return fmt.Errorf("backend %q: at least one credential prefix is required", b.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[b.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBackend, b.Name)
	}
	for _, prefix := range b.Prefixes {
		if owner, exists := r.byPrefix[prefix]; exists {
			return fmt.Errorf("%w: prefix %q already served by %s", ErrDuplicateBackend, prefix, owner)
		}
	}

	r.byName[b.Name] = b
	for _, prefix := range b.Prefixes {
		r.byPrefix[prefix] = b.Name
	}
	return nil
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byName[name]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// ForCredential returns the backend whose prefix is the longest match for credential.
func (r *Registry) ForCredential(credential string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	for prefix := range r.byPrefix {
		if strings.HasPrefix(credential, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return Backend{}, ErrUnknownBackend
	}
	return r.byName[r.byPrefix[best]], nil
}

// New constructs a provider for credential using the matching backend.
func (r *Registry) New(credential string) (Provider, error) {
	b, err := r.ForCredential(credential)
	if err != nil {
		return nil, err
	}
	p, err := b.New(credential)
	if err != nil {
		return nil, fmt.Errorf("initialise %s provider: %w", b.Name, err)
	}
	return p, nil
}

// Names returns the registered backend names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fallbacks maps each backend name to its static catalog.
func (r *Registry) Fallbacks() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.byName))
	for name, b := range r.byName {
		out[name] = append([]string(nil), b.Fallback...)
	}
	return out
}

// Timeouts returns the configured call timeout of every backend that has one.
func (r *Registry) Timeouts() map[string]time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]time.Duration, len(r.byName))
	for name, b := range r.byName {
		if b.Timeout > 0 {
			out[name] = b.Timeout
		}
	}
	return out
}
