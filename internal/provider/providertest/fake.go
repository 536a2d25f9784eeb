// Package providertest offers a scripted provider for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
)

// Fake is a provider.Provider whose responses are scripted by the test.
// It records every chat request it receives.
type Fake struct {
	name string

	mu        sync.Mutex
	models    []string
	listErr   error
	chatFn    func(models.ChatRequest) (*models.ChatResponse, error)
	requests  []models.ChatRequest
	listCalls int
}

var _ provider.Provider = (*Fake)(nil)

// New returns a fake that lists no models and echoes the last user message.
func New(name string) *Fake {
	return &Fake{name: name}
}

// WithModels sets the catalog returned by ListModels.
func (f *Fake) WithModels(ids ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append([]string(nil), ids...)
	return f
}

// WithListError makes ListModels fail with err.
func (f *Fake) WithListError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
	return f
}

// WithChat scripts the Chat response.
func (f *Fake) WithChat(fn func(models.ChatRequest) (*models.ChatResponse, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatFn = fn
	return f
}

// WithChatError makes Chat fail with err.
func (f *Fake) WithChatError(err error) *Fake {
	return f.WithChat(func(models.ChatRequest) (*models.ChatResponse, error) {
		return nil, err
	})
}

func (f *Fake) Name() string {
	return f.name
}

func (f *Fake) ListModels(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.models...), nil
}

func (f *Fake) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.chatFn
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, provider.TransportError(f.name, "chat", err)
	}
	if fn != nil {
		return fn(req)
	}

	var last string
	for _, msg := range req.Messages {
		if msg.Role == models.RoleUser {
			last = msg.Content
		}
	}
	return &models.ChatResponse{
		ID:           "fake-1",
		Model:        req.Model,
		Message:      models.Message{Role: models.RoleAssistant, Content: "echo: " + last},
		FinishReason: "stop",
		Usage:        models.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Requests returns the chat requests received so far.
func (f *Fake) Requests() []models.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChatRequest(nil), f.requests...)
}

// ListCalls reports how many times ListModels was invoked.
func (f *Fake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}
