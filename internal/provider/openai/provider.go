package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "master-shredder/3.0"

	// DefaultBaseURL is the public OpenAI REST endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Fallback is the catalog assumed when a listing call fails.
var Fallback = []string{"gpt-4-turbo", "gpt-3.5-turbo"}

// Provider implements provider.Provider for OpenAI-compatible APIs.
type Provider struct {
	name      string
	apiKey    string
	headers   map[string]string
	client    *http.Client
	chatURL   string
	modelsURL string
}

// New creates an OpenAI provider bound to apiKey.
func New(name string, cfg config.ProviderConfig, apiKey string, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key must not be empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Provider{
		name:      name,
		apiKey:    apiKey,
		headers:   cfg.Headers,
		client:    client,
		chatURL:   baseURL + "/chat/completions",
		modelsURL: baseURL + "/models",
	}, nil
}

func (p *Provider) Name() string {
	return p.name
}

// ListModels returns the ids of chat models visible to the credential, sorted by name.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := p.newRequest(ctx, http.MethodGet, p.modelsURL, nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.TransportError(p.name, "list_models", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(p.name, "list_models", p.apiKey, httpResp)
	}

	var listing modelList
	if err := decodeJSON(httpResp.Body, &listing); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(listing.Data))
	for _, m := range listing.Data {
		if strings.Contains(m.ID, "gpt") {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *Provider) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	payload, err := buildChatPayload(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := p.newRequest(ctx, http.MethodPost, p.chatURL, payload)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.TransportError(p.name, "chat", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, parseAPIError(p.name, "chat", p.apiKey, httpResp)
	}

	var providerResp chatResponse
	if err := decodeJSON(httpResp.Body, &providerResp); err != nil {
		return nil, err
	}

	return providerResp.toUnified()
}

func (p *Provider) newRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type chatPayload struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatPayload(req models.ChatRequest) (chatPayload, error) {
	if strings.TrimSpace(req.Model) == "" {
		return chatPayload{}, errors.New("model must not be empty")
	}
	if len(req.Messages) == 0 {
		return chatPayload{}, errors.New("at least one message is required")
	}

	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return chatPayload{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, nil
}

type chatResponse struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []chatChoice    `json:"choices"`
	Usage   *usageBlock     `json:"usage,omitempty"`
	Error   *apiErrorObject `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (r chatResponse) toUnified() (*models.ChatResponse, error) {
	if len(r.Choices) == 0 {
		return nil, errors.New("openai chat response did not include choices")
	}

	choice := r.Choices[0]
	role := models.Role(choice.Message.Role)
	if !role.Valid() {
		role = models.RoleAssistant
	}

	return &models.ChatResponse{
		ID:    r.ID,
		Model: r.Model,
		Message: models.Message{
			Role:    role,
			Content: choice.Message.Content,
		},
		FinishReason: choice.FinishReason,
		Usage: models.Usage{
			PromptTokens:     valueOrZero(r.Usage, func(u *usageBlock) int { return u.PromptTokens }),
			CompletionTokens: valueOrZero(r.Usage, func(u *usageBlock) int { return u.CompletionTokens }),
			TotalTokens:      valueOrZero(r.Usage, func(u *usageBlock) int { return u.TotalTokens }),
		},
	}, nil
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// code returns the machine code, falling back to the type since some
// deployments only populate one of them.
func (o apiErrorObject) code() string {
	if s, ok := o.Code.(string); ok && s != "" {
		return s
	}
	return o.Type
}

// parseAPIError classifies an upstream error response. Any echo of secret in
// the upstream message is redacted.
func parseAPIError(name, op, secret string, resp *http.Response) error {
	provErr := &provider.Error{
		Kind:     provider.KindForStatus(resp.StatusCode),
		Provider: name,
		Op:       op,
		Status:   resp.StatusCode,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		provErr.Message = "failed to read error body"
		provErr.Err = err
		return provErr
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Error.Message != "" || apiErr.Error.code() != "") {
		provErr.Code = apiErr.Error.code()
		provErr.Message = redact(apiErr.Error.Message, secret)
		if kind, ok := kindForCode(apiErr.Error); ok {
			provErr.Kind = kind
		}
		return provErr
	}

	provErr.Message = redact(strings.TrimSpace(string(body)), secret)
	if provErr.Message == "" {
		provErr.Message = http.StatusText(resp.StatusCode)
	}
	return provErr
}

// kindForCode inspects the upstream code and type. Quota exhaustion is
// checked first because OpenAI reports it with status 429.
func kindForCode(obj apiErrorObject) (provider.Kind, bool) {
	fields := []string{obj.code(), obj.Type}
	has := func(want string) bool {
		for _, f := range fields {
			if f == want {
				return true
			}
		}
		return false
	}

	switch {
	case has("insufficient_quota"):
		return provider.KindInsufficientQuota, true
	case has("invalid_api_key"):
		return provider.KindInvalidCredential, true
	case has("model_not_found"):
		return provider.KindModelNotFound, true
	case has("rate_limit_exceeded"), has("server_error"):
		return provider.KindTransient, true
	default:
		return provider.KindUnknown, false
	}
}

func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "[redacted]")
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func valueOrZero[T any, R any](ptr *T, getter func(*T) R) R {
	var zero R
	if ptr == nil {
		return zero
	}
	return getter(ptr)
}
