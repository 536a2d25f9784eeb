// Package classifier derives a request profile from the text of a chat request.
package classifier

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
)

// Complexity is an ordered difficulty tier.
type Complexity int

const (
	Low Complexity = iota
	Medium
	High
)

func (c Complexity) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText renders the tier by name.
func (c Complexity) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// TaskType categorises the work a request asks for.
type TaskType string

const (
	SimpleChat          TaskType = "simple_chat"
	DocumentAnalysis    TaskType = "document_analysis"
	ResearchTask        TaskType = "research_task"
	ComplianceReview    TaskType = "compliance_review"
	CompetitiveAnalysis TaskType = "competitive_analysis"
	OpportunityShred    TaskType = "opportunity_shred"
)

// precedence orders task types; a profile only ever moves to a higher rank.
var precedence = map[TaskType]int{
	SimpleChat:          0,
	DocumentAnalysis:    1,
	ResearchTask:        2,
	ComplianceReview:    3,
	CompetitiveAnalysis: 4,
	OpportunityShred:    5,
}

// Profile describes a request's task type and difficulty.
type Profile struct {
	Complexity        Complexity `json:"complexity"`
	Type              TaskType   `json:"type"`
	EstimatedTokens   int        `json:"estimatedTokens"`
	RequiresReasoning bool       `json:"requiresReasoning"`
	RequiresAccuracy  bool       `json:"requiresAccuracy"`
}

// scope selects the text a rule inspects.
type scope int

const (
	scopeMessage scope = iota
	scopeFull
)

type rule struct {
	terms      []string
	scope      scope
	taskType   TaskType
	complexity Complexity
	reasoning  bool
	accuracy   bool
}

var rules = []rule{
	{
		terms:      []string{"analyze", "review", "examine"},
		scope:      scopeMessage,
		taskType:   DocumentAnalysis,
		complexity: Medium,
		accuracy:   true,
	},
	{
		terms:      []string{"rfp", "solicitation", "pws", "opportunity shred", "executive summary", "detailed shred", "competitive analysis"},
		scope:      scopeFull,
		taskType:   OpportunityShred,
		complexity: High,
		reasoning:  true,
		accuracy:   true,
	},
	{
		terms:      []string{"competitive", "competitor", "market analysis", "incumbent"},
		scope:      scopeMessage,
		taskType:   CompetitiveAnalysis,
		complexity: High,
		reasoning:  true,
		accuracy:   true,
	},
	{
		terms:      []string{"compliance", "requirement", "regulation", "far", "nist", "fedramp"},
		scope:      scopeMessage,
		taskType:   ComplianceReview,
		complexity: High,
		accuracy:   true,
	},
	{
		terms:      []string{"research", "find information", "gather data", "background", "history"},
		scope:      scopeMessage,
		taskType:   ResearchTask,
		complexity: Medium,
		reasoning:  true,
	},
}

// Size thresholds for complexity escalation.
const (
	highTokenThreshold   = 10000
	mediumTokenThreshold = 3000
	highContextTurns     = 5
	mediumContextTurns   = 2
)

// Classifier matches every rule term in a single pass over the text.
// The zero value is not usable; construct with New.
type Classifier struct {
	// The matcher keeps per-call state internally.
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	owners  []int // term index -> rule index
}

// New builds a classifier over the built-in rule table.
func New() *Classifier {
	var terms []string
	var owners []int
	for i, r := range rules {
		for _, term := range r.terms {
			terms = append(terms, term)
			owners = append(owners, i)
		}
	}
	return &Classifier{
		matcher: ahocorasick.NewStringMatcher(terms),
		owners:  owners,
	}
}

// Classify derives the profile of message given the prior conversation and
// any accumulated instruction text. It is deterministic and has no side effects.
func (c *Classifier) Classify(message string, context []models.Message, instruction string) Profile {
	messageText := strings.ToLower(message)
	scanText := buildScanText(message, context, instruction)

	hitMessage := c.matchRules(messageText)
	hitFull := c.matchRules(scanText)

	p := Profile{Complexity: Low, Type: SimpleChat}
	for i, r := range rules {
		hit := hitMessage[i]
		if r.scope == scopeFull {
			hit = hitFull[i]
		}
		if hit {
			p.upgrade(r)
		}
	}

	p.EstimatedTokens = EstimateTokens(scanText)

	turns := len(context)
	switch {
	case p.EstimatedTokens > highTokenThreshold || turns > highContextTurns:
		p.raise(High)
	case p.EstimatedTokens > mediumTokenThreshold || turns > mediumContextTurns:
		p.raise(Medium)
	}
	return p
}

// EstimateTokens approximates the token count of text as characters/4 with a
// 20% margin, rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	// ceil(n/4*1.2) in integer arithmetic.
	return (3*n + 9) / 10
}

func buildScanText(message string, context []models.Message, instruction string) string {
	parts := make([]string, 0, len(context))
	for _, m := range context {
		parts = append(parts, m.Content)
	}
	return strings.ToLower(instruction + " " + message + " " + strings.Join(parts, " "))
}

func (c *Classifier) matchRules(text string) []bool {
	hits := make([]bool, len(rules))
	if text == "" {
		return hits
	}

	c.mu.Lock()
	found := c.matcher.Match([]byte(text))
	c.mu.Unlock()

	for _, idx := range found {
		hits[c.owners[idx]] = true
	}
	return hits
}

func (p *Profile) upgrade(r rule) {
	if precedence[r.taskType] > precedence[p.Type] {
		p.Type = r.taskType
	}
	p.raise(r.complexity)
	p.RequiresReasoning = p.RequiresReasoning || r.reasoning
	p.RequiresAccuracy = p.RequiresAccuracy || r.accuracy
}

func (p *Profile) raise(c Complexity) {
	if c > p.Complexity {
		p.Complexity = c
	}
}
