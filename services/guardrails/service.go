// Package guardrails validates questions before routing and scores answers
// after it.
package guardrails

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/internal/prompt"
	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/services"
)

const (
	// DefaultMaxQuestionLength is the rune limit for a question.
	DefaultMaxQuestionLength = 1000

	maxOutputLength = 10000
)

// Result is a validated question.
type Result struct {
	Query             routing.Query
	GuardrailsApplied bool
	MathContent       bool
}

// Service is the input guard.
type Service struct {
	checker   SafetyChecker
	maxLength int
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time
}

// NewService creates the input guard.
func NewService(checker SafetyChecker, maxLength int, logger *zap.Logger) *Service {
	if maxLength <= 0 {
		maxLength = DefaultMaxQuestionLength
	}
	return &Service{
		checker:   checker,
		maxLength: maxLength,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Validate trims and checks raw. Rejections are ValidationErrors carrying
// the reason (empty, too_long or unsafe_content). A checker that cannot
// produce a verdict yields an internal error: the question is neither
// accepted nor labelled unsafe.
func (s *Service) Validate(ctx context.Context, raw string) (*Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, services.NewValidationError(services.ReasonEmpty, "question cannot be empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > s.maxLength {
		return nil, services.NewValidationError(services.ReasonTooLong,
			fmt.Sprintf("question exceeds maximum length of %d characters", s.maxLength)).
			WithDetail("length", n).
			WithDetail("max_length", s.maxLength)
	}

	verdict, err := s.checker.Check(ctx, trimmed)
	if err != nil {
		return nil, services.WrapInternal("content safety check failed", err)
	}
	if !verdict.Safe {
		s.logger.Warn("unsafe content detected in question",
			zap.Strings("reasons", verdict.Reasons),
			zap.Strings("injection_types", verdict.InjectionTypes),
		)
		verr := services.NewValidationError(services.ReasonUnsafeContent, "question contains unsafe content").
			WithDetail("reasons", verdict.Reasons)
		if len(verdict.InjectionTypes) > 0 {
			verr = verr.WithDetail("injection_types", verdict.InjectionTypes)
		}
		return nil, verr
	}

	sanitized := strings.TrimSpace(verdict.Sanitized)
	if sanitized == "" {
		return nil, services.NewValidationError(services.ReasonEmpty, "question cannot be empty")
	}
	if !verdict.MathContent {
		s.logger.Debug("question has no obvious math content")
	}

	return &Result{
		Query: routing.Query{
			ID:        s.newID(),
			Raw:       raw,
			Sanitized: sanitized,
			CreatedAt: s.now(),
		},
		GuardrailsApplied: sanitized != trimmed,
		MathContent:       verdict.MathContent,
	}, nil
}

// OutputReport describes the chosen answer. It never alters the answer.
type OutputReport struct {
	QualityScore float64  `json:"quality_score"`
	Issues       []string `json:"issues,omitempty"`
	Length       int      `json:"length"`
}

var (
	stepLinePattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
	mathMarkPattern = regexp.MustCompile(`[$=]|####`)
)

// InspectOutput scores an answer in [0,1]: empty answers score 0,
// prohibited vocabulary costs 0.3 per category, oversized answers 0.2 and
// answers with no visible structure 0.1.
func (s *Service) InspectOutput(answer string) OutputReport {
	trimmed := strings.TrimSpace(answer)
	report := OutputReport{Length: utf8.RuneCountInString(trimmed)}
	if trimmed == "" {
		report.Issues = []string{"empty"}
		return report
	}

	score := 1.0
	for _, category := range prompt.ProhibitedCategories(trimmed) {
		score -= 0.3
		report.Issues = append(report.Issues, reasonProhibitedPref+string(category))
	}
	if report.Length > maxOutputLength {
		score -= 0.2
		report.Issues = append(report.Issues, "too_long")
	}
	if !hasStructure(trimmed) {
		score -= 0.1
		report.Issues = append(report.Issues, "unstructured")
	}

	report.QualityScore = math.Max(0, math.Round(score*100)/100)
	return report
}

func hasStructure(text string) bool {
	return strings.Contains(text, "Final Answer:") ||
		stepLinePattern.MatchString(text) ||
		mathMarkPattern.MatchString(text)
}
