package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
)

const defaultListTimeout = 20 * time.Second

// Snapshot is the catalog of one credential at a point in time.
type Snapshot struct {
	Models    []string
	Fallback  bool // listing failed and a static list was substituted
	FetchedAt time.Time
}

// Service lists and caches the catalog of each credential.
type Service struct {
	cache     *cache.Cache
	group     singleflight.Group
	fallbacks map[string][]string
	timeout   time.Duration
}

// NewService caches catalogs for ttl. fallbacks maps a backend name to the
// static catalog used when listing fails.
func NewService(ttl time.Duration, fallbacks map[string][]string) *Service {
	return &Service{
		cache:     cache.New(ttl, ttl),
		fallbacks: fallbacks,
		timeout:   defaultListTimeout,
	}
}

// Models returns the catalog visible to credential through p. A cached
// snapshot is reused unless refresh is set. Concurrent misses for the same
// credential share one listing call.
func (s *Service) Models(ctx context.Context, credential string, p provider.Provider, refresh bool) Snapshot {
	key := cacheKey(credential)
	if refresh {
		s.cache.Delete(key)
	} else if v, ok := s.cache.Get(key); ok {
		return v.(Snapshot)
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		ids, err := p.ListModels(listCtx)
		if err != nil {
			slog.Warn("model listing failed, using fallback catalog",
				"backend", p.Name(),
				"reason", provider.KindOf(err).String(),
			)
			return Snapshot{
				Models:    append([]string(nil), s.fallbacks[p.Name()]...),
				Fallback:  true,
				FetchedAt: time.Now(),
			}, nil
		}

		snap := Snapshot{Models: ids, FetchedAt: time.Now()}
		s.cache.Set(key, snap, cache.DefaultExpiration)
		return snap, nil
	})
	return v.(Snapshot)
}

// Flush drops every cached catalog.
func (s *Service) Flush() {
	s.cache.Flush()
}

// cacheKey fingerprints credential so raw secrets are never cache keys.
func cacheKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return "catalog:" + hex.EncodeToString(sum[:])
}
