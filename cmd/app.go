package cmd

import (
	"context"
	"fmt"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/classifier"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
	providerfactory "github.com/shjonescredence/master-shredder-cloudv3/internal/provider/factory"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/router"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/secretstore"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/selector"
)

// app is the composed gateway shared by the online commands.
type app struct {
	cfg      config.Config
	registry *provider.Registry
	resolver *credential.Resolver
	ranker   *catalog.Ranker
	catalogs *catalog.Service
	router   *router.Router
	close    func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	registry := provider.NewRegistry()
	if err := providerfactory.RegisterConfiguredBackends(cfg, registry); err != nil {
		return nil, err
	}

	store, closeStore, err := secretstore.New(ctx, cfg.Operator)
	if err != nil {
		return nil, fmt.Errorf("open operator secret store: %w", err)
	}

	resolver, err := credential.NewResolver(store, registry.New, credential.NewHandleCache(cfg.Credentials.MaxCachedClients), credential.Options{
		AllowUserCredentials: cfg.Operator.UserTokensAllowed(),
		BackendTimeouts:      registry.Timeouts(),
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	ranker := catalog.NewRanker()
	catalogs := catalog.NewService(cfg.Catalog.CacheTTL, registry.Fallbacks())

	rt := router.New(resolver, catalogs, classifier.New(), selector.New(ranker), router.Options{
		DefaultModel:     cfg.Chat.DefaultModel,
		DynamicSelection: cfg.Chat.DynamicSelectionEnabled(),
		SystemPrompt:     cfg.Chat.SystemPrompt,
		Temperature:      cfg.Chat.Temperature,
		MaxTokens:        cfg.Chat.MaxTokens,
		BackendTimeouts:  registry.Timeouts(),
	})

	return &app{
		cfg:      cfg,
		registry: registry,
		resolver: resolver,
		ranker:   ranker,
		catalogs: catalogs,
		router:   rt,
		close:    closeStore,
	}, nil
}
