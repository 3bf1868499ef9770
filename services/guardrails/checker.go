package guardrails

import (
	"context"
	"errors"

	"github.com/upb/math-rag-agent/internal/prompt"
)

// Unsafe-content reasons reported by PatternChecker.
const (
	ReasonPromptInjection = "prompt_injection"
	ReasonControlChars    = "control_characters"
	reasonProhibitedPref  = "prohibited_"
)

// DefaultMaxInjectionRisk is the injection risk score at which a question is
// refused.
const DefaultMaxInjectionRisk = 0.7

// Verdict is a safety checker's answer for one text.
type Verdict struct {
	Safe           bool
	Sanitized      string
	Reasons        []string
	InjectionTypes []string
	MathContent    bool
}

// SafetyChecker classifies and sanitizes a question.
type SafetyChecker interface {
	Check(ctx context.Context, text string) (*Verdict, error)
}

// PatternChecker is the built-in regex-based checker.
type PatternChecker struct {
	maxInjectionRisk float64
}

// NewPatternChecker creates a checker refusing injection risk at or above
// maxInjectionRisk. Non-positive values use DefaultMaxInjectionRisk.
func NewPatternChecker(maxInjectionRisk float64) *PatternChecker {
	if maxInjectionRisk <= 0 {
		maxInjectionRisk = DefaultMaxInjectionRisk
	}
	return &PatternChecker{maxInjectionRisk: maxInjectionRisk}
}

// Check never fails.
func (c *PatternChecker) Check(_ context.Context, text string) (*Verdict, error) {
	var reasons []string
	for _, category := range prompt.ProhibitedCategories(text) {
		reasons = append(reasons, reasonProhibitedPref+string(category))
	}
	var injectionTypes []string
	var unsafe *prompt.UnsafePromptError
	if err := prompt.ValidatePromptSafety(text, c.maxInjectionRisk); errors.As(err, &unsafe) {
		reasons = append(reasons, ReasonPromptInjection)
		for _, t := range unsafe.Types {
			injectionTypes = append(injectionTypes, string(t))
		}
	}
	if prompt.ContainsControlChars(text) {
		reasons = append(reasons, ReasonControlChars)
	}

	sanitized := prompt.StripUnsafeMarkup(text)
	return &Verdict{
		Safe:           len(reasons) == 0,
		Sanitized:      sanitized,
		Reasons:        reasons,
		InjectionTypes: injectionTypes,
		MathContent:    prompt.LooksLikeMath(sanitized),
	}, nil
}
