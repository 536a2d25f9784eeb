package credential

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider/providertest"
)

const (
	userKey     = "sk-user0123456789abcdefghijklmnop"
	otherKey    = "sk-other0123456789abcdefghijklmn"
	operatorRaw = "sk-operator0123456789abcdefghijk"
)

type staticStore struct {
	mu    sync.Mutex
	value string
	err   error
}

func (s *staticStore) OperatorCredential(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.err
}

func (s *staticStore) set(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

type countingFactory struct {
	mu      sync.Mutex
	calls   map[string]int
	listErr error
}

func (f *countingFactory) build(credential string) (provider.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[credential]++
	fake := providertest.New("openai").WithModels("gpt-4o")
	if f.listErr != nil {
		fake.WithListError(f.listErr)
	}
	return fake, nil
}

func newResolver(t *testing.T, store SecretStore, factory *countingFactory, allowUser bool) *Resolver {
	t.Helper()
	r, err := NewResolver(store, factory.build, NewHandleCache(0), Options{AllowUserCredentials: allowUser})
	require.NoError(t, err)
	return r
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"legacy key", "sk-" + strings.Repeat("a", 48), true},
		{"project key", "sk-proj-" + strings.Repeat("A1_-", 25), true},
		{"too short", "sk-abc", false},
		{"too long", "sk-" + strings.Repeat("a", 201), false},
		{"wrong prefix", "pk-" + strings.Repeat("a", 30), false},
		{"illegal character", "sk-" + strings.Repeat("a", 30) + "!", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFormat(Credential(tt.value))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidFormat)
			}
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "sk-u...mnop", Mask(userKey))
	assert.Equal(t, "*****", Mask("sk-ab"))
	assert.Equal(t, strings.Repeat("*", 12), Mask("sk-123456789"))
	assert.Equal(t, "", Mask(""))
}

func TestCredentialNeverPrintsMiddle(t *testing.T) {
	c := Credential(userKey)
	middle := userKey[4 : len(userKey)-4]

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("resolving", "credential", c)

	outputs := []string{
		fmt.Sprintf("%v", c),
		fmt.Sprintf("%s", c),
		c.String(),
		buf.String(),
	}
	for _, out := range outputs {
		for i := 0; i+5 <= len(middle); i++ {
			require.NotContains(t, out, middle[i:i+5])
		}
	}
}

func TestResolveUserCachesPerCredential(t *testing.T) {
	factory := &countingFactory{}
	r := newResolver(t, &staticStore{value: operatorRaw}, factory, true)

	h1, err := r.Resolve(context.Background(), Credential(userKey))
	require.NoError(t, err)
	h2, err := r.Resolve(context.Background(), Credential(userKey))
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, SourceUser, h1.Source)

	h3, err := r.Resolve(context.Background(), Credential(otherKey))
	require.NoError(t, err)
	assert.NotSame(t, h1, h3)
	assert.NotSame(t, h1.Provider, h3.Provider)

	assert.Equal(t, 1, factory.calls[userKey])
	assert.Equal(t, 2, r.CachedHandles())

	r.Clear()
	assert.Equal(t, 0, r.CachedHandles())
}

func TestResolveRejectsMalformed(t *testing.T) {
	r := newResolver(t, &staticStore{value: operatorRaw}, &countingFactory{}, true)
	_, err := r.Resolve(context.Background(), Credential("sk-short"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.Equal(t, 0, r.CachedHandles())
}

func TestResolveUserDisabled(t *testing.T) {
	r := newResolver(t, &staticStore{value: operatorRaw}, &countingFactory{}, false)
	_, err := r.Resolve(context.Background(), Credential(userKey))
	assert.ErrorIs(t, err, ErrUserCredentialsDisabled)
}

func TestResolveOperator(t *testing.T) {
	store := &staticStore{value: operatorRaw}
	factory := &countingFactory{}
	r := newResolver(t, store, factory, true)

	h1, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, SourceOperator, h1.Source)
	assert.Equal(t, "operator", h1.Key)

	h2, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	store.set("sk-rotated0123456789abcdefghijkl")
	h3, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.NotSame(t, h1, h3)
	assert.Equal(t, 1, r.CachedHandles())
}

func TestResolveOperatorUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		store *staticStore
	}{
		{"store error", &staticStore{err: errors.New("secrets manager down")}},
		{"empty value", &staticStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, tt.store, &countingFactory{}, true)
			_, err := r.Resolve(context.Background(), "")
			assert.ErrorIs(t, err, ErrOperatorUnavailable)
			assert.False(t, r.OperatorAvailable(context.Background()))
		})
	}
}

func TestTestCredential(t *testing.T) {
	live := newResolver(t, &staticStore{}, &countingFactory{}, true)
	assert.True(t, live.TestCredential(context.Background(), Credential(userKey)))
	assert.False(t, live.TestCredential(context.Background(), Credential("not-a-key")))

	rejected := &countingFactory{listErr: &provider.Error{Kind: provider.KindInvalidCredential, Provider: "openai", Op: "list_models", Status: 401}}
	dead := newResolver(t, &staticStore{}, rejected, true)
	assert.False(t, dead.TestCredential(context.Background(), Credential(userKey)))
	assert.ErrorIs(t, dead.Check(context.Background(), Credential(userKey)), provider.ErrInvalidCredential)

	// Checks never populate the cache.
	assert.Equal(t, 0, dead.CachedHandles())
}

type deadlineProvider struct {
	*providertest.Fake
	remaining time.Duration
}

func (p *deadlineProvider) ListModels(ctx context.Context) ([]string, error) {
	if d, ok := ctx.Deadline(); ok {
		p.remaining = time.Until(d)
	}
	return p.Fake.ListModels(ctx)
}

func TestCheckUsesBackendTimeout(t *testing.T) {
	p := &deadlineProvider{Fake: providertest.New("anthropic").WithModels("claude-sonnet-4-5")}
	r, err := NewResolver(&staticStore{}, func(string) (provider.Provider, error) {
		return p, nil
	}, nil, Options{
		AllowUserCredentials: true,
		CheckTimeout:         time.Minute,
		BackendTimeouts:      map[string]time.Duration{"anthropic": 2 * time.Second},
	})
	require.NoError(t, err)

	require.NoError(t, r.Check(context.Background(), Credential(userKey)))
	assert.Greater(t, p.remaining, time.Duration(0))
	assert.LessOrEqual(t, p.remaining, 2*time.Second)
}

func TestHandleCacheEviction(t *testing.T) {
	c := NewHandleCache(2)
	c.Put("a", &Handle{Key: "a"})
	c.Put("b", &Handle{Key: "b"})
	c.Put("c", &Handle{Key: "c"})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	// b was just used, so c is the eviction candidate.
	c.Put("d", &Handle{Key: "d"})
	_, ok = c.Get("c")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestHandleCacheReplacesInPlace(t *testing.T) {
	c := NewHandleCache(2)
	c.Put(operatorKey, &Handle{Key: operatorKey, Credential: "old"})
	c.Put(operatorKey, &Handle{Key: operatorKey, Credential: "new"})

	h, ok := c.Get(operatorKey)
	require.True(t, ok)
	assert.Equal(t, Credential("new"), h.Credential)
	assert.Equal(t, 1, c.Len())
}

func TestHandleCacheUnbounded(t *testing.T) {
	c := NewHandleCache(0)
	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprintf("k%d", i), &Handle{})
	}
	assert.Equal(t, 100, c.Len())
}

func TestHandleCacheConcurrentPut(t *testing.T) {
	c := NewHandleCache(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("same", &Handle{Key: "same"})
			_, _ = c.Get("same")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestSourceWire(t *testing.T) {
	assert.Equal(t, "user", SourceUser.Wire())
	assert.Equal(t, "system", SourceOperator.Wire())
}
