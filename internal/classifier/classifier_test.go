package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/models"
)

func turns(n int) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out[i] = models.Message{Role: role, Content: "ok"}
	}
	return out
}

func TestClassifyRFPWinsOverCompliance(t *testing.T) {
	p := New().Classify("Please analyze this RFP and its compliance requirements under FAR", nil, "")

	assert.Equal(t, OpportunityShred, p.Type)
	assert.Equal(t, High, p.Complexity)
	assert.True(t, p.RequiresReasoning)
	assert.True(t, p.RequiresAccuracy)
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		context     []models.Message
		instruction string
		want        Profile
	}{
		{
			name:    "greeting",
			message: "Hello there",
			want:    Profile{Type: SimpleChat, Complexity: Low},
		},
		{
			name:    "analysis verb",
			message: "Can you review my draft?",
			want:    Profile{Type: DocumentAnalysis, Complexity: Medium, RequiresAccuracy: true},
		},
		{
			name:    "competitive",
			message: "Who is the incumbent on this contract?",
			want:    Profile{Type: CompetitiveAnalysis, Complexity: High, RequiresReasoning: true, RequiresAccuracy: true},
		},
		{
			name:    "compliance",
			message: "List the NIST controls",
			want:    Profile{Type: ComplianceReview, Complexity: High, RequiresAccuracy: true},
		},
		{
			name:    "research",
			message: "Gather data on agency spending",
			want:    Profile{Type: ResearchTask, Complexity: Medium, RequiresReasoning: true},
		},
		{
			name:        "solicitation phrase in instruction",
			message:     "Go ahead",
			instruction: "Write an executive summary.",
			want:        Profile{Type: OpportunityShred, Complexity: High, RequiresReasoning: true, RequiresAccuracy: true},
		},
		{
			name:    "solicitation term in context",
			message: "Thanks",
			context: []models.Message{{Role: models.RoleUser, Content: "Here is the PWS text"}},
			want:    Profile{Type: OpportunityShred, Complexity: High, RequiresReasoning: true, RequiresAccuracy: true},
		},
		{
			name:    "compliance terms only count in the message",
			message: "Thanks",
			context: []models.Message{{Role: models.RoleUser, Content: "fedramp"}},
			want:    Profile{Type: SimpleChat, Complexity: Low},
		},
		{
			name:    "context length escalates",
			message: "Hello",
			context: turns(3),
			want:    Profile{Type: SimpleChat, Complexity: Medium},
		},
		{
			name:    "long context forces high",
			message: "Hello",
			context: turns(6),
			want:    Profile{Type: SimpleChat, Complexity: High},
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.message, tt.context, tt.instruction)
			got.EstimatedTokens = 0
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyMonotonicInSize(t *testing.T) {
	c := New()
	messages := []string{
		"hello",
		"review this",
		"research the background",
		strings.Repeat("word ", 3000),
	}

	for _, msg := range messages {
		base := c.Classify(msg, nil, "")
		for n := 0; n <= 8; n++ {
			longer := c.Classify(msg+" "+strings.Repeat("more text ", 500*n), turns(n), "")
			require.GreaterOrEqual(t, longer.Complexity, base.Complexity, "message %q with %d turns", msg[:5], n)
			if base.RequiresReasoning {
				require.True(t, longer.RequiresReasoning)
			}
			if base.RequiresAccuracy {
				require.True(t, longer.RequiresAccuracy)
			}
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := New()
	ctx := []models.Message{{Role: models.RoleUser, Content: "The solicitation is attached"}}
	first := c.Classify("Summarise the competitor landscape", ctx, "You are a capture manager")
	second := c.Classify("Summarise the competitor landscape", ctx, "You are a capture manager")
	assert.Equal(t, first, second)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 3, EstimateTokens("0123456789"))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 3, EstimateTokens("ééééééééé"))
}

func TestComplexityMarshalText(t *testing.T) {
	b, err := High.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "high", string(b))
}
