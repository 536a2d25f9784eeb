// Package catalog scores the models a credential can use and derives
// per-use-case recommendations from the ranking.
package catalog

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultModel is the last-resort model id when a catalog yields nothing.
const DefaultModel = "gpt-4o"

// Category buckets a ranked model.
type Category string

const (
	Premium     Category = "premium"
	Balanced    Category = "balanced"
	Fast        Category = "fast"
	Specialized Category = "specialized"
)

// CostTier approximates relative price.
type CostTier string

const (
	CostHigh   CostTier = "high"
	CostMedium CostTier = "medium"
	CostLow    CostTier = "low"
)

// Feature flags detected from model ids.
const (
	FeatureAudio             = "audio_processing"
	FeatureWebSearch         = "web_search"
	FeatureFastResponse      = "fast_response"
	FeatureUltraFast         = "ultra_fast"
	FeatureAdvancedReasoning = "advanced_reasoning"
	FeatureImageGeneration   = "image_generation"
)

const (
	baseScore    = 30
	recencyDays  = 30
	recencyBonus = 15
)

// Ranking is the derived score of one model id.
type Ranking struct {
	ID       string   `json:"model"`
	Score    float64  `json:"score"`
	Category Category `json:"category"`
	Features []string `json:"features"`
	CostTier CostTier `json:"costTier"`
	UseCases []string `json:"use_cases"`
}

// HasFeature reports whether r carries feature.
func (r Ranking) HasFeature(feature string) bool {
	for _, f := range r.Features {
		if f == feature {
			return true
		}
	}
	return false
}

type scoreRule struct {
	pattern  *regexp.Regexp
	base     float64
	category Category
}

// scoreRules is evaluated in order; the first match sets the base score and category.
var scoreRules = []scoreRule{
	// GPT-4o
	{regexp.MustCompile(`^gpt-4o$`), 100, Premium},
	{regexp.MustCompile(`^gpt-4o-2024-11-20$`), 98, Premium},
	{regexp.MustCompile(`^gpt-4o-2024-08-06$`), 95, Premium},
	{regexp.MustCompile(`^gpt-4o-mini$`), 85, Balanced},
	{regexp.MustCompile(`^gpt-4o-mini-2024-07-18$`), 83, Balanced},

	// GPT-4.1
	{regexp.MustCompile(`^gpt-4\.1$`), 105, Premium},
	{regexp.MustCompile(`^gpt-4\.1-2025-04-14$`), 103, Premium},
	{regexp.MustCompile(`^gpt-4\.1-mini$`), 88, Balanced},
	{regexp.MustCompile(`^gpt-4\.1-nano$`), 75, Fast},

	// Specialized
	{regexp.MustCompile(`audio-preview`), 80, Specialized},
	{regexp.MustCompile(`search-preview`), 82, Specialized},
	{regexp.MustCompile(`transcribe`), 70, Specialized},
	{regexp.MustCompile(`tts`), 65, Specialized},

	// GPT-3.5
	{regexp.MustCompile(`^gpt-3\.5-turbo$`), 50, Fast},
	{regexp.MustCompile(`^gpt-3\.5-turbo-0125$`), 48, Fast},
	{regexp.MustCompile(`^gpt-3\.5-turbo-16k$`), 52, Fast},

	// Image
	{regexp.MustCompile(`gpt-image`), 60, Specialized},

	// Claude
	{regexp.MustCompile(`^claude-opus-4`), 104, Premium},
	{regexp.MustCompile(`^claude-sonnet-4`), 100, Premium},
	{regexp.MustCompile(`^claude-3-7-sonnet`), 92, Premium},
	{regexp.MustCompile(`^claude-3-5-sonnet`), 90, Premium},
	{regexp.MustCompile(`^claude-haiku-4`), 86, Balanced},
	{regexp.MustCompile(`^claude-3-5-haiku`), 82, Fast},
	{regexp.MustCompile(`^claude-3-haiku`), 70, Fast},

	// Releases newer than this table
	{regexp.MustCompile(`^gpt-5`), 120, Premium},
	{regexp.MustCompile(`^gpt-4\.2`), 110, Premium},
	{regexp.MustCompile(`-2025-`), 5, Premium},
	{regexp.MustCompile(`-2026-`), 10, Premium},
}

type featureRule struct {
	token    string
	feature  string
	useCases []string
	lowCost  bool
	flagship bool
}

// featureRules are evaluated independently; every matching rule contributes.
var featureRules = []featureRule{
	{token: "audio", feature: FeatureAudio, useCases: []string{"voice_chat", "transcription"}},
	{token: "search", feature: FeatureWebSearch, useCases: []string{"research", "real_time_data"}},
	{token: "mini", feature: FeatureFastResponse, useCases: []string{"chat", "quick_tasks"}, lowCost: true},
	{token: "nano", feature: FeatureUltraFast, useCases: []string{"real_time_chat"}, lowCost: true},
	{token: "gpt-4", feature: FeatureAdvancedReasoning, useCases: []string{"document_analysis", "complex_tasks"}, flagship: true},
	{token: "image", feature: FeatureImageGeneration, useCases: []string{"visual_content"}},
	{token: "claude", feature: FeatureAdvancedReasoning, useCases: []string{"document_analysis", "complex_tasks"}, flagship: true},
	{token: "haiku", feature: FeatureFastResponse, useCases: []string{"chat", "quick_tasks"}, lowCost: true},
}

var datePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// Ranker scores model ids. It holds no per-call state.
type Ranker struct {
	now func() time.Time
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock replaces the wall clock used for the recency bonus.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) {
		r.now = now
	}
}

// NewRanker returns a ranker using the wall clock unless overridden.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores ids and returns them sorted by descending score. Ties keep
// catalog order.
func (r *Ranker) Rank(ids []string) []Ranking {
	now := r.now()
	rankings := make([]Ranking, 0, len(ids))
	for _, id := range ids {
		rankings = append(rankings, r.score(id, now))
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})
	return rankings
}

func (r *Ranker) score(id string, now time.Time) Ranking {
	ranking := Ranking{
		ID:       id,
		Score:    baseScore,
		Category: Balanced,
		Features: []string{},
		CostTier: CostMedium,
		UseCases: []string{},
	}

	for _, rule := range scoreRules {
		if rule.pattern.MatchString(id) {
			ranking.Score = math.Max(baseScore, rule.base)
			ranking.Category = rule.category
			break
		}
	}

	lowCost, flagship := false, false
	for _, rule := range featureRules {
		if !strings.Contains(id, rule.token) {
			continue
		}
		if !ranking.HasFeature(rule.feature) {
			ranking.Features = append(ranking.Features, rule.feature)
		}
		ranking.UseCases = appendMissing(ranking.UseCases, rule.useCases...)
		lowCost = lowCost || rule.lowCost
		flagship = flagship || rule.flagship
	}
	switch {
	case lowCost:
		ranking.CostTier = CostLow
	case flagship:
		ranking.CostTier = CostHigh
	}

	ranking.Score += recency(id, now)
	return ranking
}

// recency rewards ids embedding a release date within the last 30 days.
func recency(id string, now time.Time) float64 {
	match := datePattern.FindString(id)
	if match == "" {
		return 0
	}
	released, err := time.Parse("2006-01-02", match)
	if err != nil {
		return 0
	}

	days := now.Sub(released).Hours() / 24
	if days < 0 {
		days = 0
	}
	if days >= recencyDays {
		return 0
	}
	return math.Max(0, recencyBonus-days/2)
}

func appendMissing(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
