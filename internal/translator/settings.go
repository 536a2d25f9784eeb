package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
)

// ErrMissingAPIKey is returned when a settings request carries no apiKey.
var ErrMissingAPIKey = errors.New("API key is required")

const smartAnalysisTopRanked = 5

// TokenRequest is the body of POST /settings/validate-token.
type TokenRequest struct {
	APIKey credential.Credential
}

func (r *TokenRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode token request: %w", err)
	}
	r.APIKey = credential.Credential(strings.TrimSpace(raw.APIKey))
	if r.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// ModelsRequest is the body of POST /settings/models.
type ModelsRequest struct {
	APIKey  credential.Credential
	Refresh bool
}

func (r *ModelsRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		APIKey  string `json:"apiKey"`
		Refresh bool   `json:"refresh"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode models request: %w", err)
	}
	r.APIKey = credential.Credential(strings.TrimSpace(raw.APIKey))
	r.Refresh = raw.Refresh
	if r.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RecommendationRequest is the body of POST /settings/model-recommendation.
// UseCase defaults to chat_primary.
type RecommendationRequest struct {
	APIKey  credential.Credential
	UseCase string
}

func (r *RecommendationRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		APIKey  string `json:"apiKey"`
		UseCase string `json:"useCase"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode recommendation request: %w", err)
	}
	r.APIKey = credential.Credential(strings.TrimSpace(raw.APIKey))
	r.UseCase = strings.TrimSpace(raw.UseCase)
	if r.UseCase == "" {
		r.UseCase = catalog.UseChatPrimary
	}
	if r.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// MessageResponse is a success body carrying a human-readable message.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ModelsResponse is the body returned by POST /settings/models.
type ModelsResponse struct {
	Success       bool          `json:"success"`
	Models        []string      `json:"models"`
	SmartAnalysis SmartAnalysis `json:"smart_analysis"`
	Fallback      bool          `json:"fallback,omitempty"`
	Timestamp     string        `json:"timestamp"`
}

// SmartAnalysis summarises a ranked catalog.
type SmartAnalysis struct {
	TotalModels     int                     `json:"total_models"`
	Categories      map[string]int          `json:"categories"`
	Recommendations catalog.Recommendations `json:"recommendations"`
	TopRanked       []catalog.Ranking       `json:"top_ranked"`
	FutureReady     bool                    `json:"future_ready"`
	AutoUpdateReady bool                    `json:"auto_update_ready"`
}

// FromSnapshot renders a catalog snapshot and its report.
func FromSnapshot(snap catalog.Snapshot, report catalog.Report, now time.Time) ModelsResponse {
	top := report.TopModels
	if len(top) > smartAnalysisTopRanked {
		top = top[:smartAnalysisTopRanked]
	}
	ids := snap.Models
	if ids == nil {
		ids = []string{}
	}
	return ModelsResponse{
		Success: true,
		Models:  ids,
		SmartAnalysis: SmartAnalysis{
			TotalModels:     report.Total,
			Categories:      report.ByCategory,
			Recommendations: report.Recommendations,
			TopRanked:       top,
			FutureReady:     report.FutureReady,
			AutoUpdateReady: true,
		},
		Fallback:  snap.Fallback,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

// RecommendationResponse is the body returned by POST /settings/model-recommendation.
type RecommendationResponse struct {
	Success            bool                    `json:"success"`
	RecommendedModel   string                  `json:"recommended_model"`
	UseCase            string                  `json:"use_case"`
	AllRecommendations catalog.Recommendations `json:"all_recommendations"`
	AvailableUseCases  []string                `json:"available_use_cases"`
}

// ConfigResponse is the body returned by GET /settings/config.
type ConfigResponse struct {
	Success bool       `json:"success"`
	Config  ConfigView `json:"config"`
}

// ConfigView is the public subset of the running configuration.
type ConfigView struct {
	DefaultModel         string `json:"defaultModel"`
	AllowUserTokens      bool   `json:"allowUserTokens"`
	SystemTokenAvailable bool   `json:"systemTokenAvailable"`
	Environment          string `json:"environment"`
	Version              string `json:"version"`
}

// HealthResponse is the body returned by the health routes.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
