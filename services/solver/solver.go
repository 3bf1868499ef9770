// Package solver is the generative fallback stage: it prompts a language
// model for a structured step-by-step solution.
package solver

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/services"
	"github.com/upb/math-rag-agent/services/providers"
)

const (
	structuredConfidence   = 1.0
	unstructuredConfidence = 0.7
)

// Config tunes the completion request.
type Config struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Solver produces LLM candidates.
type Solver struct {
	provider providers.Provider
	config   Config
	logger   *zap.Logger
}

// NewSolver creates a solver backed by provider.
func NewSolver(provider providers.Provider, config Config, logger *zap.Logger) *Solver {
	return &Solver{
		provider: provider,
		config:   config,
		logger:   logger,
	}
}

// Solve asks the model for a solution. Any provider failure, including an
// empty completion, is ExhaustedFatal: there is no stage after this one.
func (s *Solver) Solve(ctx context.Context, question string) (routing.Candidate, error) {
	req := &providers.ChatRequest{
		Model: s.config.Model,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(question)},
		},
		MaxTokens:   s.config.MaxOutputTokens,
		Temperature: s.config.Temperature,
	}

	resp, err := s.provider.ChatCompletion(ctx, req)
	if err != nil {
		s.logger.Warn("solver completion failed",
			zap.String("provider", s.provider.Name()),
			zap.Error(err),
		)
		return routing.Candidate{}, services.WrapExhausted("generative solver failed", err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return routing.Candidate{}, services.WrapExhausted("generative solver failed", errors.New("empty completion"))
	}

	answer := CleanResponse(raw)
	if strings.TrimSpace(answer) == "" {
		answer = strings.TrimSpace(raw)
	}
	confidence := unstructuredConfidence
	if HasFinalAnswer(answer) {
		confidence = structuredConfidence
	}

	s.logger.Debug("solver completion received",
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Int("answer_length", len(answer)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return routing.Candidate{
		Source:     routing.SourceLLM,
		Answer:     answer,
		Confidence: confidence,
		Metadata: map[string]interface{}{
			"provider":        resp.Provider,
			"model":           resp.Model,
			"response_length": len(answer),
			"structured":      confidence == structuredConfidence,
		},
	}, nil
}
