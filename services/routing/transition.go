package routing

import (
	"fmt"

	route "github.com/upb/math-rag-agent/internal/routing"
)

// stageOutcome is what one stage produced. top is nil when the stage
// failed or returned nothing.
type stageOutcome struct {
	top    *route.Candidate
	failed bool
	reason string
}

// routerState is the machine state between stages.
type routerState struct {
	stage        route.Stage
	kbConfidence float64
	// best is the highest-confidence candidate seen so far; KB wins ties.
	best *route.Candidate
}

// transition applies one stage outcome to s. When the returned state is
// StageDone, chosen holds the winner, or nil if the final stage failed.
func transition(s routerState, out stageOutcome, th route.Thresholds) (next routerState, chosen *route.Candidate, outcome route.Outcome, reason string) {
	next = s
	confidence := 0.0
	if out.top != nil {
		confidence = out.top.Confidence
	}

	switch s.stage {
	case route.StageKB:
		next.kbConfidence = confidence
		if out.top != nil && confidence >= th.High {
			next.stage = route.StageDone
			return next, out.top, route.OutcomeAccepted,
				fmt.Sprintf("kb confidence %.3f meets high threshold %.2f", confidence, th.High)
		}
		next.best = out.top
		next.stage = route.StageMCP
		if out.failed {
			return next, nil, route.OutcomeUnavailable, out.reason
		}
		if out.top == nil {
			return next, nil, route.OutcomeEscalated, "no kb matches"
		}
		return next, nil, route.OutcomeEscalated,
			fmt.Sprintf("kb confidence %.3f below high threshold %.2f", confidence, th.High)

	case route.StageMCP:
		if out.top != nil && confidence >= th.Medium && confidence >= s.kbConfidence {
			next.stage = route.StageDone
			return next, out.top, route.OutcomeAccepted,
				fmt.Sprintf("mcp confidence %.3f meets medium threshold %.2f", confidence, th.Medium)
		}
		if out.top != nil && (next.best == nil || confidence > next.best.Confidence) {
			next.best = out.top
		}
		next.stage = route.StageLLM
		switch {
		case out.failed:
			return next, nil, route.OutcomeUnavailable, out.reason
		case confidence < th.Medium:
			return next, nil, route.OutcomeEscalated,
				fmt.Sprintf("mcp confidence %.3f below medium threshold %.2f", confidence, th.Medium)
		default:
			return next, nil, route.OutcomeEscalated,
				fmt.Sprintf("mcp confidence %.3f below kb confidence %.3f", confidence, s.kbConfidence)
		}

	case route.StageLLM:
		next.stage = route.StageDone
		if out.failed || out.top == nil {
			return next, nil, route.OutcomeFailed, out.reason
		}
		return next, out.top, route.OutcomeAccepted, "generative fallback"
	}

	next.stage = route.StageDone
	return next, nil, route.OutcomeFailed, "unknown stage"
}

func strategyFor(source route.Source) route.Strategy {
	switch source {
	case route.SourceKB:
		return route.StrategyKBOnly
	case route.SourceMCP:
		return route.StrategyKBToMCP
	default:
		return route.StrategyKBToMCPToLLM
	}
}
