package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider/providertest"
)

var fixedNow = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func fixedRanker() *Ranker {
	return NewRanker(WithClock(func() time.Time { return fixedNow }))
}

func byID(rankings []Ranking) map[string]Ranking {
	out := make(map[string]Ranking, len(rankings))
	for _, r := range rankings {
		out[r.ID] = r
	}
	return out
}

func TestRankScoresAndCategories(t *testing.T) {
	rankings := byID(fixedRanker().Rank([]string{
		"gpt-4o", "gpt-4o-mini", "gpt-4.1-nano", "gpt-3.5-turbo", "gpt-4o-audio-preview",
		"gpt-image-1", "claude-sonnet-4-5", "claude-haiku-4-5", "mystery-model",
	}))

	tests := []struct {
		id       string
		score    float64
		category Category
		cost     CostTier
		features []string
	}{
		{"gpt-4o", 100, Premium, CostHigh, []string{FeatureAdvancedReasoning}},
		{"gpt-4o-mini", 85, Balanced, CostLow, []string{FeatureFastResponse, FeatureAdvancedReasoning}},
		{"gpt-4.1-nano", 75, Fast, CostLow, []string{FeatureUltraFast, FeatureAdvancedReasoning}},
		{"gpt-3.5-turbo", 50, Fast, CostMedium, []string{}},
		{"gpt-4o-audio-preview", 80, Specialized, CostHigh, []string{FeatureAudio, FeatureAdvancedReasoning}},
		{"gpt-image-1", 60, Specialized, CostMedium, []string{FeatureImageGeneration}},
		{"claude-sonnet-4-5", 100, Premium, CostHigh, []string{FeatureAdvancedReasoning}},
		{"claude-haiku-4-5", 86, Balanced, CostLow, []string{FeatureAdvancedReasoning, FeatureFastResponse}},
		{"mystery-model", 30, Balanced, CostMedium, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := rankings[tt.id]
			require.True(t, ok)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.cost, got.CostTier)
			assert.Equal(t, tt.features, got.Features)
		})
	}
}

func TestRankSortedAndStable(t *testing.T) {
	rankings := fixedRanker().Rank([]string{"alpha", "gpt-4o", "beta", "gamma"})
	ids := make([]string, len(rankings))
	for i, r := range rankings {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"gpt-4o", "alpha", "beta", "gamma"}, ids)
}

func TestRecencyBonus(t *testing.T) {
	recent := "gpt-x-" + fixedNow.AddDate(0, 0, -5).Format("2006-01-02")
	stale := "gpt-x-" + fixedNow.AddDate(0, 0, -40).Format("2006-01-02")

	rankings := fixedRanker().Rank([]string{stale, recent})
	require.Len(t, rankings, 2)
	assert.Equal(t, recent, rankings[0].ID)
	assert.Greater(t, rankings[0].Score, rankings[1].Score)
	assert.InDelta(t, 12.5, rankings[0].Score-rankings[1].Score, 1e-9)
}

func TestRecencyFutureDateCountsAsToday(t *testing.T) {
	assert.InDelta(t, 15, recency("model-2026-12-01", fixedNow), 1e-9)
	assert.InDelta(t, 0, recency("model-2026-13-45", fixedNow), 1e-9)
	assert.InDelta(t, 0, recency("model", fixedNow), 1e-9)
}

func TestRecommendEmptyCatalog(t *testing.T) {
	recs := fixedRanker().Recommend(nil)
	for _, useCase := range []string{UseChatPrimary, UseChatFallback, UseDocumentAnalysis, UseFastResponses, UseCostEffective, UseReasoningHeavy} {
		v, ok := recs.Get(useCase)
		assert.True(t, ok, useCase)
		assert.Equal(t, DefaultModel, v, useCase)
	}
	_, ok := recs.Get(UseAudioCapable)
	assert.False(t, ok)
}

func TestRecommendOpenAICatalog(t *testing.T) {
	recs := fixedRanker().Recommend([]string{
		"gpt-3.5-turbo", "gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-nano",
		"gpt-4o-search-preview", "gpt-image-1",
	})

	assert.Equal(t, "gpt-4.1", recs.ChatPrimary)
	assert.Equal(t, "gpt-4o-mini", recs.ChatFallback)
	assert.Equal(t, "gpt-4.1", recs.DocumentAnalysis)
	assert.Equal(t, "gpt-4o-mini", recs.FastResponses)
	assert.Equal(t, "gpt-4o-mini", recs.CostEffective)
	assert.Equal(t, "gpt-4.1", recs.ReasoningHeavy)
	assert.Equal(t, "gpt-4o-search-preview", recs.SearchCapable)
	assert.Equal(t, "gpt-image-1", recs.ImageCapable)
	assert.Empty(t, recs.AudioCapable)
}

func TestRecommendUsesTextualFallback(t *testing.T) {
	recs := fixedRanker().Recommend([]string{"gpt-3.5-turbo"})
	assert.Equal(t, "gpt-3.5-turbo", recs.ChatPrimary)
	assert.Equal(t, "gpt-4o-mini", recs.ChatFallback)
	assert.Equal(t, "gpt-3.5-turbo", recs.FastResponses)
	assert.Equal(t, "gpt-3.5-turbo", recs.ReasoningHeavy)
}

func TestModelForUseCase(t *testing.T) {
	r := fixedRanker()
	ids := []string{"gpt-4o", "gpt-4o-mini"}
	assert.Equal(t, "gpt-4o-mini", r.ModelForUseCase(UseCostEffective, ids))
	assert.Equal(t, "gpt-4o", r.ModelForUseCase("not_a_use_case", ids))
	assert.Equal(t, "gpt-4o", r.ModelForUseCase(UseAudioCapable, ids))
}

func TestReport(t *testing.T) {
	ids := []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-3.5-turbo"}
	rep := fixedRanker().Report(ids)

	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, map[string]int{"premium": 2, "balanced": 1, "fast": 1}, rep.ByCategory)
	assert.True(t, rep.FutureReady)
	require.Len(t, rep.TopModels, 4)
	assert.Equal(t, "gpt-4.1", rep.TopModels[0].ID)

	assert.False(t, fixedRanker().Report([]string{"gpt-4o"}).FutureReady)
	assert.Equal(t, 0, fixedRanker().Report(nil).Total)
}

func TestServiceCachesPerCredential(t *testing.T) {
	svc := NewService(time.Hour, nil)
	fake := providertest.New("openai").WithModels("gpt-4o", "gpt-4o-mini")

	first := svc.Models(context.Background(), "sk-one", fake, false)
	second := svc.Models(context.Background(), "sk-one", fake, false)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, first.Models)
	assert.Equal(t, first.Models, second.Models)
	assert.Equal(t, 1, fake.ListCalls())

	svc.Models(context.Background(), "sk-two", fake, false)
	assert.Equal(t, 2, fake.ListCalls())

	fake.WithModels("gpt-4.1")
	refreshed := svc.Models(context.Background(), "sk-one", fake, true)
	assert.Equal(t, []string{"gpt-4.1"}, refreshed.Models)
	assert.Equal(t, 3, fake.ListCalls())

	svc.Flush()
	svc.Models(context.Background(), "sk-one", fake, false)
	assert.Equal(t, 4, fake.ListCalls())
}

func TestServiceFallbackIsNotCached(t *testing.T) {
	svc := NewService(time.Hour, map[string][]string{"openai": {"gpt-4-turbo", "gpt-3.5-turbo"}})
	fake := providertest.New("openai").WithListError(errors.New("connection reset"))

	snap := svc.Models(context.Background(), "sk-one", fake, false)
	assert.True(t, snap.Fallback)
	assert.Equal(t, []string{"gpt-4-turbo", "gpt-3.5-turbo"}, snap.Models)

	svc.Models(context.Background(), "sk-one", fake, false)
	assert.Equal(t, 2, fake.ListCalls())
}

func TestServiceConcurrentCallers(t *testing.T) {
	svc := NewService(time.Hour, nil)
	fake := providertest.New("openai").WithModels("gpt-4o")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := svc.Models(context.Background(), "sk-shared", fake, false)
			assert.Equal(t, []string{"gpt-4o"}, snap.Models)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, fake.ListCalls(), 20)
	assert.GreaterOrEqual(t, fake.ListCalls(), 1)
}

func TestCacheKeyHidesCredential(t *testing.T) {
	key := cacheKey("sk-secret0123456789abcdef")
	assert.NotContains(t, key, "secret")
	assert.Equal(t, key, cacheKey("sk-secret0123456789abcdef"))
}
