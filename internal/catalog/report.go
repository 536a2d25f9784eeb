package catalog

import "strings"

const reportTopModels = 10

// futureMarkers identify releases newer than the built-in score table.
var futureMarkers = []string{"gpt-4.1", "gpt-5", "-2025-", "-2026-"}

// Report summarises a catalog.
type Report struct {
	Total           int             `json:"total"`
	ByCategory      map[string]int  `json:"by_category"`
	Recommendations Recommendations `json:"recommendations"`
	TopModels       []Ranking       `json:"top_models"`
	FutureReady     bool            `json:"future_ready"`
}

// Report ranks ids and summarises the result.
func (r *Ranker) Report(ids []string) Report {
	rankings := r.Rank(ids)

	byCategory := make(map[string]int)
	futureReady := false
	for _, m := range rankings {
		byCategory[string(m.Category)]++
		for _, marker := range futureMarkers {
			if strings.Contains(m.ID, marker) {
				futureReady = true
			}
		}
	}

	top := rankings
	if len(top) > reportTopModels {
		top = top[:reportTopModels]
	}

	return Report{
		Total:           len(rankings),
		ByCategory:      byCategory,
		Recommendations: recommend(rankings),
		TopModels:       top,
		FutureReady:     futureReady,
	}
}
