// Package selector chooses the model that serves a chat request.
package selector

import (
	"fmt"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/classifier"
)

// Confidence levels.
const (
	ConfidenceExplicit     = 1.0
	ConfidenceBase         = 0.75
	ConfidencePerSignal    = 0.05
	ConfidenceSubstitute   = 0.7
	ConfidenceEmptyCatalog = 0.5
)

// Result is the chosen model and why it was chosen.
type Result struct {
	Model      string  `json:"model"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// Selector combines a request profile with a ranked catalog.
type Selector struct {
	ranker *catalog.Ranker
}

// New returns a selector that ranks catalogs with ranker.
func New(ranker *catalog.Ranker) *Selector {
	if ranker == nil {
		ranker = catalog.NewRanker()
	}
	return &Selector{ranker: ranker}
}

// UseCaseFor maps a profile to the use case whose recommendation serves it.
func UseCaseFor(p classifier.Profile) string {
	switch p.Type {
	case classifier.OpportunityShred, classifier.CompetitiveAnalysis:
		return catalog.UseReasoningHeavy
	case classifier.ComplianceReview, classifier.DocumentAnalysis:
		return catalog.UseDocumentAnalysis
	case classifier.ResearchTask:
		return catalog.UseChatPrimary
	default:
		if p.Complexity == classifier.Low && !p.RequiresReasoning && !p.RequiresAccuracy {
			return catalog.UseChatFallback
		}
		return catalog.UseChatPrimary
	}
}

// Select picks a model for profile from models. An explicit model is
// returned verbatim. Otherwise the result is always a member of models, or
// catalog.DefaultModel when models is empty.
func (s *Selector) Select(profile classifier.Profile, models []string, explicitModel string, userCredential bool) Result {
	source := "operator credential"
	if userCredential {
		source = "user credential"
	}

	if explicitModel != "" {
		return Result{
			Model:      explicitModel,
			Rationale:  fmt.Sprintf("explicit override requested by caller (%s)", source),
			Confidence: ConfidenceExplicit,
		}
	}

	if len(models) == 0 {
		return Result{
			Model:      catalog.DefaultModel,
			Rationale:  fmt.Sprintf("catalog empty for %s; using default model", source),
			Confidence: ConfidenceEmptyCatalog,
		}
	}

	useCase := UseCaseFor(profile)
	rankings := s.ranker.Rank(models)
	recs := s.ranker.Recommend(models)
	recommended, _ := recs.Get(useCase)

	chosen, ok := find(rankings, recommended)
	if !ok {
		top := rankings[0]
		return Result{
			Model: top.ID,
			Rationale: fmt.Sprintf("%s request (%s complexity): recommended %s model %q not in catalog, using top-ranked %s model via %s",
				profile.Type, profile.Complexity, useCase, recommended, top.Category, source),
			Confidence: ConfidenceSubstitute,
		}
	}

	return Result{
		Model: chosen.ID,
		Rationale: fmt.Sprintf("%s request (%s complexity) mapped to %s; selected %s model via %s",
			profile.Type, profile.Complexity, useCase, chosen.Category, source),
		Confidence: confidence(profile, chosen),
	}
}

// confidence grows with the number of profile requirements the chosen model satisfies.
func confidence(p classifier.Profile, m catalog.Ranking) float64 {
	satisfied := 0
	if p.Complexity == classifier.High && m.Category == catalog.Premium {
		satisfied++
	}
	if p.RequiresReasoning && (m.HasFeature(catalog.FeatureAdvancedReasoning) || m.Category == catalog.Premium) {
		satisfied++
	}
	if p.RequiresAccuracy && (m.Category == catalog.Premium || m.Category == catalog.Balanced) {
		satisfied++
	}
	return ConfidenceBase + ConfidencePerSignal*float64(satisfied)
}

func find(rankings []catalog.Ranking, id string) (catalog.Ranking, bool) {
	for _, r := range rankings {
		if r.ID == id {
			return r, true
		}
	}
	return catalog.Ranking{}, false
}
