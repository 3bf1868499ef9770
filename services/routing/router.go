// Package routing runs the confidence router: knowledge base first, web
// search when the knowledge base is not confident enough, and the
// generative solver as the last resort.
package routing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	route "github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/services"
)

// KnowledgeRetriever returns ranked knowledge-base candidates.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, question string) ([]route.Candidate, error)
}

// WebSearcher returns a single web-search candidate.
type WebSearcher interface {
	Search(ctx context.Context, question string) (route.Candidate, error)
}

// Solver returns a generated answer.
type Solver interface {
	Solve(ctx context.Context, question string) (route.Candidate, error)
}

// StageObserver receives per-stage timings.
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration, failed bool)
}

// Router is safe for concurrent use; it keeps no per-request state.
type Router struct {
	kb       KnowledgeRetriever
	web      WebSearcher
	solver   Solver
	config   route.Config
	observer StageObserver
	logger   *zap.Logger
}

// NewRouter creates a router. A nil web searcher makes the MCP stage
// permanently unavailable; it is still recorded as attempted.
func NewRouter(kb KnowledgeRetriever, web WebSearcher, solver Solver, config route.Config, observer StageObserver, logger *zap.Logger) *Router {
	return &Router{
		kb:       kb,
		web:      web,
		solver:   solver,
		config:   config,
		observer: observer,
		logger:   logger,
	}
}

// Config returns the router's immutable configuration.
func (r *Router) Config() route.Config {
	return r.config
}

// Route runs the stages in order until one is chosen. Each stage is called
// at most once under its own timeout. If ctx ends, Route abandons the
// request and returns ctx's error with no decision. If the solver fails the
// result is an ExhaustedFatal error.
func (r *Router) Route(ctx context.Context, q route.Query) (*route.Decision, error) {
	th := r.config.Thresholds
	decision := &route.Decision{Thresholds: th}
	state := routerState{stage: route.StageKB}
	var lastErr error

	for state.stage != route.StageDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stage := state.stage
		start := time.Now()
		out, err := r.runStage(ctx, stage, q, decision)
		elapsed := time.Since(start)

		// A cancelled caller means nobody is waiting for an answer.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			lastErr = err
		}

		next, chosen, outcome, reason := transition(state, out, th)

		confidence := 0.0
		if out.top != nil {
			confidence = out.top.Confidence
		}
		decision.Attempted = append(decision.Attempted, route.StageAttempt{
			Stage:      stage,
			Source:     stage.Source(),
			Outcome:    outcome,
			Confidence: confidence,
			Reason:     reason,
			Duration:   elapsed,
		})
		switch stage {
		case route.StageKB:
			decision.HighCrossed = out.top != nil && confidence >= th.High
		case route.StageMCP:
			decision.MediumCrossed = out.top != nil && confidence >= th.Medium
		}
		if r.observer != nil {
			r.observer.ObserveStage(stage.String(), elapsed, out.failed)
		}

		r.logger.Debug("routing stage finished",
			zap.String("request_id", q.ID),
			zap.String("stage", stage.String()),
			zap.String("outcome", string(outcome)),
			zap.Float64("confidence", confidence),
			zap.String("reason", reason),
			zap.Duration("elapsed", elapsed),
		)

		if next.stage == route.StageDone {
			if chosen == nil {
				return nil, exhausted(lastErr)
			}
			decision.Chosen = *chosen
			decision.Strategy = strategyFor(chosen.Source)
		}
		state = next
	}

	decision.BestSoFar = state.best
	return decision, nil
}

// runStage invokes the collaborator for stage under the stage timeout.
// Errors are returned alongside a failed outcome; they never stop routing
// on their own.
func (r *Router) runStage(ctx context.Context, stage route.Stage, q route.Query, decision *route.Decision) (stageOutcome, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.timeoutFor(stage))
	defer cancel()

	switch stage {
	case route.StageKB:
		decision.KBAttempted = true
		if r.kb == nil {
			return stageOutcome{failed: true, reason: "knowledge base not configured"}, nil
		}
		candidates, err := r.kb.Retrieve(stageCtx, q.Text())
		if err != nil {
			return failedOutcome(stageCtx, err), err
		}
		decision.KBCandidates = candidates
		if len(candidates) == 0 {
			return stageOutcome{}, nil
		}
		top := candidates[0]
		return stageOutcome{top: &top}, nil

	case route.StageMCP:
		if r.web == nil {
			return stageOutcome{failed: true, reason: "web search not configured"}, nil
		}
		c, err := r.web.Search(stageCtx, q.Text())
		if err != nil {
			return failedOutcome(stageCtx, err), err
		}
		return stageOutcome{top: &c}, nil

	case route.StageLLM:
		if r.solver == nil {
			return stageOutcome{failed: true, reason: "solver not configured"}, nil
		}
		c, err := r.solver.Solve(stageCtx, q.Text())
		if err != nil {
			return failedOutcome(stageCtx, err), err
		}
		return stageOutcome{top: &c}, nil
	}
	return stageOutcome{failed: true, reason: "unknown stage"}, nil
}

func (r *Router) timeoutFor(stage route.Stage) time.Duration {
	var d time.Duration
	switch stage {
	case route.StageKB:
		d = r.config.KBTimeout
	case route.StageMCP:
		d = r.config.MCPTimeout
	case route.StageLLM:
		d = r.config.LLMTimeout
	}
	if d <= 0 {
		d = 30 * time.Second
	}
	return d
}

func failedOutcome(stageCtx context.Context, err error) stageOutcome {
	reason := err.Error()
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		reason = "stage timed out"
	}
	return stageOutcome{failed: true, reason: reason}
}

func exhausted(err error) error {
	if err == nil {
		return services.ErrSolverFailed
	}
	if services.IsExhaustedError(err) {
		return err
	}
	return services.WrapExhausted("all answer sources exhausted", err)
}
