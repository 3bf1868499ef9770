package synthesis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/math-rag-agent/internal/routing"
)

var thresholds = routing.Thresholds{High: 0.8, Medium: 0.6}

func kbCandidate(problem, solution string, score float64) routing.Candidate {
	return routing.Candidate{
		Source:     routing.SourceKB,
		Answer:     solution,
		Confidence: score,
		Metadata:   map[string]interface{}{"problem": problem},
	}
}

func TestSynthesize_KB(t *testing.T) {
	q := routing.Query{ID: "resp-1", Raw: "x^2+5x+6=0", Sanitized: "x^2+5x+6=0"}
	kb := []routing.Candidate{
		kbCandidate("x^2+5x+6=0", "x = -2 or x = -3", 0.91),
		kbCandidate("x^2+4x+4=0", "x = -2", 0.7),
		kbCandidate("x^2-1=0", "x = ±1", 0.5),
		kbCandidate("x^2=0", "x = 0", 0.4),
	}
	d := &routing.Decision{
		Chosen:       kb[0],
		Strategy:     routing.StrategyKBOnly,
		Attempted:    []routing.StageAttempt{{Source: routing.SourceKB, Outcome: routing.OutcomeAccepted, Confidence: 0.91}},
		Thresholds:   thresholds,
		HighCrossed:  true,
		KBCandidates: kb,
		KBAttempted:  true,
	}

	resp := Synthesize(q, d, 125*time.Millisecond, Options{})

	assert.Equal(t, "resp-1", resp.ResponseID)
	assert.Equal(t, "x = -2 or x = -3", resp.FinalAnswer)
	assert.Equal(t, routing.SourceKB, resp.Source)
	assert.Equal(t, 125.0, resp.ResponseTimeMs)
	assert.Equal(t, 0.91, resp.Metadata.ConfidenceScore)
	assert.Equal(t, 4, resp.Metadata.KBResultsCount)
	assert.Equal(t, routing.StrategyKBOnly, resp.Metadata.SearchStrategy)
	assert.Equal(t, []routing.Source{routing.SourceKB}, resp.Metadata.StagesAttempted)
	assert.Equal(t, thresholds, resp.Metadata.ThresholdsUsed)
	assert.Nil(t, resp.Metadata.QualityScore)
	assert.Equal(t, "Found similar problem with confidence score: 0.910", resp.Explanation)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "x^2+4x+4=0", resp.Results[1].Problem)
}

func TestSynthesize_MCP(t *testing.T) {
	q := routing.Query{ID: "resp-2", Raw: " hypotenuse? ", Sanitized: "hypotenuse?"}
	web := routing.Candidate{Source: routing.SourceMCP, Answer: "Based on web search:\n1. 5", Confidence: 0.65}
	d := &routing.Decision{
		Chosen:   web,
		Strategy: routing.StrategyKBToMCP,
		Attempted: []routing.StageAttempt{
			{Source: routing.SourceKB, Outcome: routing.OutcomeEscalated, Confidence: 0.5},
			{Source: routing.SourceMCP, Outcome: routing.OutcomeAccepted, Confidence: 0.65},
		},
		Thresholds:   thresholds,
		KBCandidates: []routing.Candidate{kbCandidate("p", "s", 0.5), kbCandidate("q", "t", 0.4)},
		KBAttempted:  true,
	}
	quality := 0.9

	resp := Synthesize(q, d, time.Second, Options{GuardrailsApplied: true, QualityScore: &quality})

	assert.Equal(t, web.Answer, resp.FinalAnswer)
	assert.Equal(t, 0, resp.Metadata.KBResultsCount)
	assert.True(t, resp.Metadata.GuardrailsApplied)
	require.NotNil(t, resp.Metadata.QualityScore)
	assert.Equal(t, 0.9, *resp.Metadata.QualityScore)
	assert.Equal(t, "Knowledge base confidence too low (0.500), used web search", resp.Explanation)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "hypotenuse?", resp.Results[0].Problem)
	assert.Equal(t, []routing.Source{routing.SourceKB, routing.SourceMCP}, resp.Metadata.StagesAttempted)
}

func TestSynthesize_LLM(t *testing.T) {
	q := routing.Query{ID: "resp-3", Raw: "q"}
	d := &routing.Decision{
		Chosen:   routing.Candidate{Source: routing.SourceLLM, Answer: "Final Answer: 4", Confidence: 1},
		Strategy: routing.StrategyKBToMCPToLLM,
		Attempted: []routing.StageAttempt{
			{Source: routing.SourceKB, Outcome: routing.OutcomeUnavailable},
			{Source: routing.SourceMCP, Outcome: routing.OutcomeUnavailable},
			{Source: routing.SourceLLM, Outcome: routing.OutcomeAccepted, Confidence: 1},
		},
		Thresholds:  thresholds,
		KBAttempted: true,
	}

	resp := Synthesize(q, d, 0, Options{})

	assert.Equal(t, routing.SourceLLM, resp.Source)
	assert.Equal(t, 0, resp.Metadata.KBResultsCount)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Contains(t, resp.Explanation, "generated")
}

func TestResponse_JSONShape(t *testing.T) {
	d := &routing.Decision{
		Chosen:      routing.Candidate{Source: routing.SourceKB, Answer: "a", Confidence: 0.8},
		Strategy:    routing.StrategyKBOnly,
		Attempted:   []routing.StageAttempt{{Source: routing.SourceKB}},
		Thresholds:  thresholds,
		KBAttempted: true,
	}
	data, err := json.Marshal(Synthesize(routing.Query{ID: "id"}, d, 1500*time.Microsecond, Options{}))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "id", got["response_id"])
	assert.Equal(t, "KB", got["source"])
	assert.Equal(t, 1.5, got["response_time_ms"])

	meta := got["metadata"].(map[string]interface{})
	assert.Equal(t, "kb_only", meta["search_strategy"])
	assert.NotContains(t, meta, "quality_score")
	assert.Equal(t, map[string]interface{}{"high": 0.8, "medium": 0.6}, meta["thresholds_used"])
}
