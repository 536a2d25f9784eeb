package catalog

import "strings"

// Use case keys.
const (
	UseChatPrimary      = "chat_primary"
	UseChatFallback     = "chat_fallback"
	UseDocumentAnalysis = "document_analysis"
	UseFastResponses    = "fast_responses"
	UseCostEffective    = "cost_effective"
	UseReasoningHeavy   = "reasoning_heavy"
	UseAudioCapable     = "audio_capable"
	UseSearchCapable    = "search_capable"
	UseImageCapable     = "image_capable"
)

// fallbackLight is the textual fallback for the lightweight use cases.
const fallbackLight = "gpt-4o-mini"

// Recommendations holds one model id per use case. The required keys are never empty.
type Recommendations struct {
	ChatPrimary      string `json:"chat_primary"`
	ChatFallback     string `json:"chat_fallback"`
	DocumentAnalysis string `json:"document_analysis"`
	FastResponses    string `json:"fast_responses"`
	CostEffective    string `json:"cost_effective"`
	ReasoningHeavy   string `json:"reasoning_heavy"`
	AudioCapable     string `json:"audio_capable,omitempty"`
	SearchCapable    string `json:"search_capable,omitempty"`
	ImageCapable     string `json:"image_capable,omitempty"`
}

// UseCases lists every use case key in presentation order.
func UseCases() []string {
	return []string{
		UseChatPrimary,
		UseChatFallback,
		UseDocumentAnalysis,
		UseFastResponses,
		UseCostEffective,
		UseReasoningHeavy,
		UseAudioCapable,
		UseSearchCapable,
		UseImageCapable,
	}
}

// Get returns the model recommended for useCase. Optional use cases with no
// capable model report false.
func (r Recommendations) Get(useCase string) (string, bool) {
	var v string
	switch useCase {
	case UseChatPrimary:
		v = r.ChatPrimary
	case UseChatFallback:
		v = r.ChatFallback
	case UseDocumentAnalysis:
		v = r.DocumentAnalysis
	case UseFastResponses:
		v = r.FastResponses
	case UseCostEffective:
		v = r.CostEffective
	case UseReasoningHeavy:
		v = r.ReasoningHeavy
	case UseAudioCapable:
		v = r.AudioCapable
	case UseSearchCapable:
		v = r.SearchCapable
	case UseImageCapable:
		v = r.ImageCapable
	}
	return v, v != ""
}

// Recommend ranks ids and picks a representative model per use case.
func (r *Ranker) Recommend(ids []string) Recommendations {
	return recommend(r.Rank(ids))
}

// ModelForUseCase returns the recommendation for useCase, or chat_primary
// when the use case is unknown or has no capable model.
func (r *Ranker) ModelForUseCase(useCase string, ids []string) string {
	recs := r.Recommend(ids)
	if v, ok := recs.Get(strings.TrimSpace(useCase)); ok {
		return v
	}
	return recs.ChatPrimary
}

func recommend(rankings []Ranking) Recommendations {
	if len(rankings) == 0 {
		return Recommendations{
			ChatPrimary:      DefaultModel,
			ChatFallback:     DefaultModel,
			DocumentAnalysis: DefaultModel,
			FastResponses:    DefaultModel,
			CostEffective:    DefaultModel,
			ReasoningHeavy:   DefaultModel,
		}
	}

	firstWhere := func(pred func(Ranking) bool) string {
		for _, m := range rankings {
			if pred(m) {
				return m.ID
			}
		}
		return ""
	}

	// bestFor falls back to fallback, then to the top-ranked model, then to DefaultModel.
	bestFor := func(pred func(Ranking) bool, fallback string) string {
		if id := firstWhere(pred); id != "" {
			return id
		}
		if fallback != "" {
			return fallback
		}
		if len(rankings) > 0 {
			return rankings[0].ID
		}
		return DefaultModel
	}

	isPremium := func(m Ranking) bool { return m.Category == Premium }
	firstPremium := firstWhere(isPremium)
	top := ""
	if len(rankings) > 0 {
		top = rankings[0].ID
	}

	return Recommendations{
		ChatPrimary: bestFor(func(m Ranking) bool {
			return m.Category == Premium && m.HasFeature(FeatureAdvancedReasoning)
		}, firstPremium),
		ChatFallback: bestFor(func(m Ranking) bool {
			return (m.Category == Balanced || m.Category == Fast) && m.Score > 80
		}, fallbackLight),
		DocumentAnalysis: bestFor(func(m Ranking) bool {
			return m.HasFeature(FeatureAdvancedReasoning) && m.Score > 90
		}, firstPremium),
		FastResponses: bestFor(func(m Ranking) bool {
			return m.HasFeature(FeatureFastResponse) || m.Category == Fast
		}, fallbackLight),
		CostEffective: bestFor(func(m Ranking) bool {
			return m.CostTier == CostLow && m.Score > 70
		}, fallbackLight),
		ReasoningHeavy: bestFor(func(m Ranking) bool {
			return m.Category == Premium && m.Score >= 100
		}, top),
		AudioCapable: firstWhere(func(m Ranking) bool {
			return m.HasFeature(FeatureAudio)
		}),
		SearchCapable: firstWhere(func(m Ranking) bool {
			return m.HasFeature(FeatureWebSearch)
		}),
		ImageCapable: firstWhere(func(m Ranking) bool {
			return m.HasFeature(FeatureImageGeneration)
		}),
	}
}
