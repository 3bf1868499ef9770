package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// InjectionType represents different types of prompt injection attacks
type InjectionType string

const (
	InjectionTypeSystemPromptLeak    InjectionType = "system_prompt_leak"
	InjectionTypeRoleManipulation    InjectionType = "role_manipulation"
	InjectionTypeInstructionOverride InjectionType = "instruction_override"
	InjectionTypeCodeExecution       InjectionType = "code_execution"
	InjectionTypeJailbreak           InjectionType = "jailbreak"
	InjectionTypeDelimiterAttack     InjectionType = "delimiter_attack"
	InjectionTypeEncodingAttack      InjectionType = "encoding_attack"
)

// InjectionDetection represents a detected injection attempt
type InjectionDetection struct {
	Type       InjectionType
	Pattern    string
	Confidence float64
	StartPos   int
	EndPos     int
}

type injectionRule struct {
	kind       InjectionType
	confidence float64
	weight     float64
	patterns   []*regexp.Regexp
}

// Math text is full of parentheses and brackets, so the code and delimiter
// rules only match explicit call syntax and chat-template markers.
var injectionRules = []injectionRule{
	{
		kind:       InjectionTypeSystemPromptLeak,
		confidence: 0.9,
		weight:     1.5,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|commands?)`),
			regexp.MustCompile(`(?i)(show|reveal|print|repeat)\s+(me\s+)?(your|the)\s+(system|original|initial|hidden)\s+(prompt|instructions?)`),
		},
	},
	{
		kind:       InjectionTypeRoleManipulation,
		confidence: 0.85,
		weight:     1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)assume\s+(the\s+)?(role|identity)\s+of`),
			regexp.MustCompile(`(?i)pretend\s+(to\s+)?be\s+(a|an)\s`),
			regexp.MustCompile(`(?i)from\s+now\s+on[,]?\s+(you|your)\s+(are|will)`),
		},
	},
	{
		kind:       InjectionTypeInstructionOverride,
		confidence: 0.9,
		weight:     1.5,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)disregard\s+(\w+\s+){0,2}(instructions?|rules|commands?)`),
			regexp.MustCompile(`(?i)override\s+(all|previous|system)\s+(instructions?|rules|settings?)`),
			regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|what\s+you\s+learned)`),
		},
	},
	{
		kind:       InjectionTypeCodeExecution,
		confidence: 0.95,
		weight:     2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(execute|run)\s+(this|the\s+following)\s+(code|script|command)`),
			regexp.MustCompile(`(?i)\b(os\.system|subprocess\.\w+|exec|eval)\s*\(`),
			regexp.MustCompile(`(?i)import\s+(os|sys|subprocess|socket)\b`),
		},
	},
	{
		kind:       InjectionTypeJailbreak,
		confidence: 0.95,
		weight:     2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bDAN\s+mode`),
			regexp.MustCompile(`(?i)developer\s+mode`),
			regexp.MustCompile(`(?i)jailbreak`),
			regexp.MustCompile(`(?i)without\s+(any|ethical|moral)\s+(restrictions?|limitations?|guidelines?)`),
		},
	},
	{
		kind:       InjectionTypeDelimiterAttack,
		confidence: 0.8,
		weight:     1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\[/?(SYSTEM|USER|ASSISTANT)\]`),
			regexp.MustCompile(`<\|(system|user|assistant|end)\|>`),
			regexp.MustCompile(`###\s*(SYSTEM|INSTRUCTION)`),
		},
	},
	{
		kind:       InjectionTypeEncodingAttack,
		confidence: 0.7,
		weight:     1,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)base64\s*[:\s=]\s*[A-Za-z0-9+/]{20,}={0,2}`),
			regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){10,}`),
		},
	},
}

// DetectInjections detects all potential injection attempts in the text,
// ordered by position.
func DetectInjections(text string) []InjectionDetection {
	var detections []InjectionDetection
	for _, rule := range injectionRules {
		for _, pattern := range rule.patterns {
			for _, match := range pattern.FindAllStringIndex(text, -1) {
				detections = append(detections, InjectionDetection{
					Type:       rule.kind,
					Pattern:    pattern.String(),
					Confidence: rule.confidence,
					StartPos:   match[0],
					EndPos:     match[1],
				})
			}
		}
	}
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].StartPos < detections[j].StartPos
	})
	return detections
}

// GetInjectionRiskScore returns the weighted mean confidence of all
// detections, 0 when nothing matched.
func GetInjectionRiskScore(text string) float64 {
	var total, weights float64
	for _, d := range DetectInjections(text) {
		w := ruleWeight(d.Type)
		total += d.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	score := total / weights
	if score > 1 {
		score = 1
	}
	return score
}

func ruleWeight(kind InjectionType) float64 {
	for _, rule := range injectionRules {
		if rule.kind == kind {
			return rule.weight
		}
	}
	return 1
}

// UnsafePromptError reports a risk score at or above the allowed maximum
// together with the distinct injection types found, in order of first
// appearance.
type UnsafePromptError struct {
	RiskScore float64
	Threshold float64
	Types     []InjectionType
}

func (e *UnsafePromptError) Error() string {
	names := make([]string, len(e.Types))
	for i, t := range e.Types {
		names[i] = string(t)
	}
	return fmt.Sprintf("prompt safety validation failed: risk score %.2f (threshold: %.2f), detected: %s",
		e.RiskScore, e.Threshold, strings.Join(names, ", "))
}

// ValidatePromptSafety returns an *UnsafePromptError when the risk score
// reaches maxRiskScore.
func ValidatePromptSafety(text string, maxRiskScore float64) error {
	riskScore := GetInjectionRiskScore(text)
	if riskScore < maxRiskScore {
		return nil
	}

	var types []InjectionType
	seen := make(map[InjectionType]bool)
	for _, d := range DetectInjections(text) {
		if !seen[d.Type] {
			types = append(types, d.Type)
			seen[d.Type] = true
		}
	}
	return &UnsafePromptError{RiskScore: riskScore, Threshold: maxRiskScore, Types: types}
}
