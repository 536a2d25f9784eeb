package factory

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
	anthropicProvider "github.com/shjonescredence/master-shredder-cloudv3/internal/provider/anthropic"
	openaiProvider "github.com/shjonescredence/master-shredder-cloudv3/internal/provider/openai"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Backend names.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
)

// RegisterConfiguredBackends registers the OpenAI and Anthropic backends in
// the registry. Each backend shares one tuned http.Client across the
// per-credential providers it constructs.
func RegisterConfiguredBackends(cfg config.Config, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	openAICfg := cfg.Providers.OpenAI
	openAITimeout := timeoutOrDefault(openAICfg.Timeout)
	openAIClient := newHTTPClient(openAITimeout)
	if err := registry.Register(provider.Backend{
		Name:     OpenAI,
		Prefixes: []string{"sk-"},
		Fallback: openaiProvider.Fallback,
		Timeout:  openAITimeout,
		New: func(credential string) (provider.Provider, error) {
			return openaiProvider.New(OpenAI, openAICfg, credential, openAIClient)
		},
	}); err != nil {
		return fmt.Errorf("register openai backend: %w", err)
	}

	anthropicCfg := cfg.Providers.Anthropic
	anthropicTimeout := timeoutOrDefault(anthropicCfg.Timeout)
	anthropicClient := newHTTPClient(anthropicTimeout)
	if err := registry.Register(provider.Backend{
		Name:     Anthropic,
		Prefixes: []string{"sk-ant-"},
		Fallback: anthropicProvider.Fallback,
		Timeout:  anthropicTimeout,
		New: func(credential string) (provider.Provider, error) {
			return anthropicProvider.New(Anthropic, anthropicCfg, credential, anthropicClient)
		},
	}); err != nil {
		return fmt.Errorf("register anthropic backend: %w", err)
	}

	return nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultHTTPTimeout
	}
	return d
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
