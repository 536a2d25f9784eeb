package anthropic

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
)

const defaultMaxTokens = 4096

// Fallback is the catalog assumed when a listing call fails.
var Fallback = []string{"claude-sonnet-4-5", "claude-haiku-4-5"}

// Provider implements provider.Provider on top of the Anthropic SDK.
type Provider struct {
	name   string
	client sdkanthropic.Client
}

// New creates an Anthropic provider bound to apiKey. The SDK's own retry
// loop is disabled; callers decide whether a failure is worth repeating.
func New(name string, cfg config.ProviderConfig, apiKey string, httpClient *http.Client) (*Provider, error) {
	if httpClient == nil {
		return nil, errors.New("http client must not be nil")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key must not be empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &Provider{
		name:   name,
		client: sdkanthropic.NewClient(opts...),
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// ListModels returns the Claude model ids visible to the credential, sorted by name.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx, sdkanthropic.ModelListParams{
		Limit: sdkanthropic.Int(1000),
	})
	if err != nil {
		return nil, p.classify("list_models", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if strings.Contains(m.ID, "claude") {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.classify("chat", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &models.ChatResponse{
		ID:    msg.ID,
		Model: string(msg.Model),
		Message: models.Message{
			Role:    models.RoleAssistant,
			Content: text.String(),
		},
		FinishReason: mapStopReason(msg.StopReason),
		Usage: models.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// buildParams hoists system messages into the system prompt blocks since the
// Messages API only accepts user and assistant turns.
func buildParams(req models.ChatRequest) (sdkanthropic.MessageNewParams, error) {
	if strings.TrimSpace(req.Model) == "" {
		return sdkanthropic.MessageNewParams{}, errors.New("model must not be empty")
	}

	var system []sdkanthropic.TextBlockParam
	messages := make([]sdkanthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case models.RoleSystem:
			system = append(system, sdkanthropic.TextBlockParam{Text: msg.Content})
		case models.RoleAssistant:
			messages = append(messages, sdkanthropic.NewAssistantMessage(sdkanthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(messages) == 0 {
		return sdkanthropic.MessageNewParams{}, errors.New("at least one user or assistant message is required")
	}

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = int64(*req.MaxTokens)
	}

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
		System:    system,
	}
	if req.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	}
	return params, nil
}

func (p *Provider) classify(op string, err error) error {
	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return provider.TransportError(p.name, op, err)
	}

	kind := provider.KindForStatus(apiErr.StatusCode)
	msg := apiErr.Error()
	switch {
	case strings.Contains(strings.ToLower(msg), "credit balance"):
		kind = provider.KindInsufficientQuota
	case apiErr.StatusCode == 529:
		kind = provider.KindTransient
	}

	return &provider.Error{
		Kind:     kind,
		Provider: p.name,
		Op:       op,
		Status:   apiErr.StatusCode,
		Message:  http.StatusText(apiErr.StatusCode),
		Err:      err,
	}
}

func mapStopReason(reason sdkanthropic.StopReason) string {
	switch reason {
	case sdkanthropic.StopReasonEndTurn, sdkanthropic.StopReasonStopSequence:
		return "stop"
	case sdkanthropic.StopReasonMaxTokens:
		return "length"
	default:
		return string(reason)
	}
}
