// Package search runs the answer pipeline: input guard, confidence router,
// output inspection and response synthesis.
package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/models"
	"github.com/upb/math-rag-agent/services"
	"github.com/upb/math-rag-agent/services/guardrails"
	"github.com/upb/math-rag-agent/services/synthesis"
)

// Guard validates questions and inspects answers.
type Guard interface {
	Validate(ctx context.Context, raw string) (*guardrails.Result, error)
	InspectOutput(answer string) guardrails.OutputReport
}

// Router picks the answering source.
type Router interface {
	Route(ctx context.Context, q routing.Query) (*routing.Decision, error)
}

// AuditLogger queues API-call log rows without blocking.
type AuditLogger interface {
	LogAPICall(log *models.APICallLog) error
}

// Observer records pipeline outcomes.
type Observer interface {
	ObserveAnswer(source, strategy string, elapsed time.Duration)
	ObserveRejection(reason string)
}

// Service orchestrates one question end to end.
type Service struct {
	guard    Guard
	router   Router
	audit    AuditLogger
	observer Observer
	sem      *semaphore.Weighted
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the pipeline. maxConcurrent bounds the number of
// questions routed at once; audit and observer may be nil.
func NewService(guard Guard, router Router, audit AuditLogger, observer Observer, maxConcurrent int64, logger *zap.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		guard:    guard,
		router:   router,
		audit:    audit,
		observer: observer,
		sem:      semaphore.NewWeighted(maxConcurrent),
		logger:   logger,
		now:      time.Now,
	}
}

// Answer validates question, routes it and returns the synthesized response.
//
// A cancelled ctx abandons the pipeline: the context error is returned and
// nothing is logged to the API-call trail.
func (s *Service) Answer(ctx context.Context, question string) (*synthesis.Response, error) {
	start := s.now()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.NewDomainError(services.ErrorTypeOverloaded, "too many concurrent requests", err)
	}
	defer s.sem.Release(1)

	// Step 1: Input guard
	validated, err := s.guard.Validate(ctx, question)
	if err != nil {
		if reason := services.GetValidationReason(err); reason != "" {
			s.observeRejection(reason)
			s.logger.Info("question rejected", zap.String("reason", reason))
		}
		return nil, err
	}
	q := validated.Query

	s.logger.Info("starting search pipeline",
		zap.String("request_id", q.ID),
		zap.Bool("guardrails_applied", validated.GuardrailsApplied))

	// Step 2: Route
	s.logger.Debug("routing question", zap.String("request_id", q.ID))
	decision, err := s.router.Route(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("search abandoned by caller",
				zap.String("request_id", q.ID),
				zap.Error(ctx.Err()))
			return nil, ctx.Err()
		}
		s.logger.Error("all answer sources failed",
			zap.String("request_id", q.ID),
			zap.Error(err))
		s.logCall(models.NewAPICallLog(q.ID, models.EndpointSearch, "POST").
			WithQuestion(q.Text()).
			WithLatency(s.now().Sub(start)).
			WithError(services.HTTPStatus(err), err.Error()))
		return nil, err
	}

	// Step 3: Inspect the chosen answer
	report := s.guard.InspectOutput(decision.Chosen.Answer)
	if len(report.Issues) > 0 {
		s.logger.Debug("answer quality issues",
			zap.String("request_id", q.ID),
			zap.Strings("issues", report.Issues),
			zap.Float64("quality_score", report.QualityScore))
	}
	quality := report.QualityScore

	// Step 4: Synthesize
	elapsed := s.now().Sub(start)
	resp := synthesis.Synthesize(q, decision, elapsed, synthesis.Options{
		GuardrailsApplied: validated.GuardrailsApplied,
		QualityScore:      &quality,
	})

	if s.observer != nil {
		s.observer.ObserveAnswer(string(resp.Source), string(resp.Metadata.SearchStrategy), elapsed)
	}

	// Step 5: Background API-call log
	s.logCall(models.NewAPICallLog(q.ID, models.EndpointSearch, "POST").
		WithQuestion(q.Text()).
		WithRequestData(map[string]interface{}{
			"question_length":    len(question),
			"guardrails_applied": validated.GuardrailsApplied,
			"math_content":       validated.MathContent,
		}).
		WithResponseData(resp).
		WithRouting(string(resp.Source), string(resp.Metadata.SearchStrategy), resp.Metadata.ConfidenceScore).
		WithLatency(elapsed))

	s.logger.Info("search pipeline completed",
		zap.String("request_id", q.ID),
		zap.String("source", string(resp.Source)),
		zap.String("strategy", string(resp.Metadata.SearchStrategy)),
		zap.Float64("confidence", resp.Metadata.ConfidenceScore),
		zap.Duration("elapsed", elapsed))

	return &resp, nil
}

func (s *Service) observeRejection(reason string) {
	if s.observer != nil {
		s.observer.ObserveRejection(reason)
	}
}

func (s *Service) logCall(log *models.APICallLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogAPICall(log); err != nil {
		s.logger.Warn("api call log not queued",
			zap.String("request_id", log.RequestID),
			zap.Error(err))
	}
}
