// Package translator parses and renders the gateway's JSON wire format.
package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/classifier"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/router"
)

var (
	ErrMissingMessage = errors.New("no message provided")
	ErrInvalidModel   = errors.New("invalid model identifier")

	errInvalidRole        = errors.New("invalid role")
	errInvalidContent     = errors.New("invalid message content")
	errInvalidTemperature = errors.New("temperature must be between 0 and 2")
	errInvalidMaxTokens   = errors.New("maxTokens must be positive")
)

var modelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]{0,127}$`)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message      string
	Context      []ChatMessage
	Model        string
	UserAPIKey   credential.Credential
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string
}

// UnmarshalJSON decodes and validates the request.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type alias struct {
		Message      string        `json:"message"`
		Context      []ChatMessage `json:"context"`
		Model        string        `json:"model"`
		UserAPIKey   string        `json:"userApiKey"`
		Temperature  *float64      `json:"temperature"`
		MaxTokens    *int          `json:"maxTokens"`
		SystemPrompt string        `json:"systemPrompt"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}

	r.Message = raw.Message
	r.Context = raw.Context
	r.Model = strings.TrimSpace(raw.Model)
	r.UserAPIKey = credential.Credential(strings.TrimSpace(raw.UserAPIKey))
	r.Temperature = raw.Temperature
	r.MaxTokens = raw.MaxTokens
	r.SystemPrompt = raw.SystemPrompt

	return r.validate()
}

func (r *ChatRequest) validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrMissingMessage
	}
	if r.Model != "" && !modelPattern.MatchString(r.Model) {
		return fmt.Errorf("%w: %q", ErrInvalidModel, r.Model)
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return errInvalidTemperature
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return errInvalidMaxTokens
	}
	return nil
}

// ToRouter converts the request for the completion router.
func (r ChatRequest) ToRouter() router.Request {
	ctx := make([]models.Message, 0, len(r.Context))
	for _, m := range r.Context {
		ctx = append(ctx, models.Message{Role: models.Role(m.Role), Content: m.Content})
	}
	return router.Request{
		Message:      r.Message,
		Context:      ctx,
		SystemPrompt: r.SystemPrompt,
		Credential:   r.UserAPIKey,
		Model:        r.Model,
		Temperature:  r.Temperature,
		MaxTokens:    r.MaxTokens,
	}
}

// ChatMessage is one prior conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON supports string and array-of-text content formats.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	content, err := extractMessageContent(raw.Content)
	if err != nil {
		return err
	}

	m.Role = strings.TrimSpace(raw.Role)
	m.Content = content

	if !models.Role(m.Role).Valid() {
		return fmt.Errorf("%w: %s", errInvalidRole, m.Role)
	}
	return nil
}

func extractMessageContent(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("%w: missing content", errInvalidContent)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var builder strings.Builder
		for _, segment := range segments {
			if segment.Type != "text" {
				return "", fmt.Errorf("%w: segment type %q not supported", errInvalidContent, segment.Type)
			}
			builder.WriteString(segment.Text)
		}
		return builder.String(), nil
	}

	return "", fmt.Errorf("%w: unsupported content structure", errInvalidContent)
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Success     bool       `json:"success"`
	Reply       string     `json:"reply"`
	TokenSource string     `json:"tokenSource"`
	Model       string     `json:"model"`
	ModelUsed   string     `json:"modelUsed"`
	Usage       Usage      `json:"usage"`
	Selection   *Selection `json:"selection,omitempty"`
}

// Usage mirrors the provider's token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Selection explains how the model was chosen.
type Selection struct {
	Rationale  string              `json:"rationale"`
	Confidence float64             `json:"confidence"`
	Profile    *classifier.Profile `json:"profile,omitempty"`
}

// FromResult renders a router result.
func FromResult(res *router.Result) ChatResponse {
	model := res.Model
	if model == "" {
		model = res.ModelUsed
	}

	return ChatResponse{
		Success:     true,
		Reply:       res.Reply,
		TokenSource: res.Source.Wire(),
		Model:       model,
		ModelUsed:   res.ModelUsed,
		Usage: Usage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			TotalTokens:      res.Usage.TotalTokens,
		},
		Selection: &Selection{
			Rationale:  res.Selection.Rationale,
			Confidence: res.Selection.Confidence,
			Profile:    res.Profile,
		},
	}
}

// ErrorResponse is the failure body of every route.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}
