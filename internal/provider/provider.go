package provider

import (
	"context"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
)

// Provider defines the behaviour required from an authenticated upstream LLM client.
// A Provider is bound to exactly one credential.
type Provider interface {
	Name() string
	// ListModels returns the chat-capable model ids the credential may use.
	ListModels(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}
