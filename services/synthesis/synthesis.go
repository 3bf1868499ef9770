// Package synthesis turns a routing decision into the response envelope
// returned to callers.
package synthesis

import (
	"fmt"
	"math"
	"time"

	"github.com/upb/math-rag-agent/internal/routing"
)

const maxResults = 3

// Result is one supporting match listed under the answer.
type Result struct {
	Problem  string  `json:"problem"`
	Solution string  `json:"solution"`
	Score    float64 `json:"score"`
}

// Metadata carries the routing provenance of a response.
type Metadata struct {
	ConfidenceScore   float64            `json:"confidence_score"`
	KBResultsCount    int                `json:"kb_results_count"`
	SearchStrategy    routing.Strategy   `json:"search_strategy"`
	GuardrailsApplied bool               `json:"guardrails_applied"`
	QualityScore      *float64           `json:"quality_score,omitempty"`
	StagesAttempted   []routing.Source   `json:"stages_attempted"`
	ThresholdsUsed    routing.Thresholds `json:"thresholds_used"`
}

// Response is the externally visible answer. ResponseID equals the query id.
type Response struct {
	ResponseID     string         `json:"response_id"`
	FinalAnswer    string         `json:"final_answer"`
	Source         routing.Source `json:"source"`
	Explanation    string         `json:"explanation,omitempty"`
	Results        []Result       `json:"results"`
	Metadata       Metadata       `json:"metadata"`
	ResponseTimeMs float64        `json:"response_time_ms"`
}

// Options are the request-level facts the decision does not carry.
type Options struct {
	GuardrailsApplied bool
	QualityScore      *float64
}

// Synthesize builds the response for decision. It never fails and never
// alters the chosen answer text.
func Synthesize(q routing.Query, d *routing.Decision, elapsed time.Duration, opts Options) Response {
	// Only a knowledge base answer reports its candidate count.
	kbCount := 0
	if d.Source() == routing.SourceKB {
		kbCount = len(d.KBCandidates)
	}

	return Response{
		ResponseID:  q.ID,
		FinalAnswer: d.Chosen.Answer,
		Source:      d.Source(),
		Explanation: explain(d),
		Results:     results(q, d),
		Metadata: Metadata{
			ConfidenceScore:   d.Chosen.Confidence,
			KBResultsCount:    kbCount,
			SearchStrategy:    d.Strategy,
			GuardrailsApplied: opts.GuardrailsApplied,
			QualityScore:      opts.QualityScore,
			StagesAttempted:   d.StagesAttempted(),
			ThresholdsUsed:    d.Thresholds,
		},
		ResponseTimeMs: milliseconds(elapsed),
	}
}

func explain(d *routing.Decision) string {
	kb := kbConfidence(d)
	switch d.Source() {
	case routing.SourceKB:
		return fmt.Sprintf("Found similar problem with confidence score: %.3f", d.Chosen.Confidence)
	case routing.SourceMCP:
		return fmt.Sprintf("Knowledge base confidence too low (%.3f), used web search", kb)
	case routing.SourceLLM:
		return fmt.Sprintf("Knowledge base (%.3f) and web search were not confident enough, generated a step-by-step solution", kb)
	}
	return ""
}

func results(q routing.Query, d *routing.Decision) []Result {
	out := []Result{}
	switch d.Source() {
	case routing.SourceKB:
		for i, c := range d.KBCandidates {
			if i == maxResults {
				break
			}
			problem, _ := c.Metadata["problem"].(string)
			out = append(out, Result{Problem: problem, Solution: c.Answer, Score: c.Confidence})
		}
	case routing.SourceMCP:
		out = append(out, Result{Problem: q.Text(), Solution: d.Chosen.Answer, Score: d.Chosen.Confidence})
	}
	return out
}

func kbConfidence(d *routing.Decision) float64 {
	for _, a := range d.Attempted {
		if a.Source == routing.SourceKB {
			return a.Confidence
		}
	}
	return 0
}

func milliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
