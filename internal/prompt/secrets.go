package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// SecretType represents different types of secrets that can be detected
type SecretType string

const (
	SecretTypeAWSKey       SecretType = "aws_key"
	SecretTypeGCPKey       SecretType = "gcp_key"
	SecretTypeOpenAIKey    SecretType = "openai_key"
	SecretTypeGitHubToken  SecretType = "github_token"
	SecretTypeSlackToken   SecretType = "slack_token"
	SecretTypeStripeKey    SecretType = "stripe_key"
	SecretTypeJWT          SecretType = "jwt"
	SecretTypePrivateKey   SecretType = "private_key"
	SecretTypeDatabaseURL  SecretType = "database_url"
	SecretTypeBearerToken  SecretType = "bearer_token"
	SecretTypeAssignedPass SecretType = "password"
)

// SecretDetection represents a detected secret instance
type SecretDetection struct {
	Type     SecretType
	StartPos int
	EndPos   int
}

type secretRule struct {
	kind SecretType
	// group selects the submatch to redact; 0 redacts the whole match
	group   int
	pattern *regexp.Regexp
}

// There is no generic long-token rule: hex digests and long digit strings
// are ordinary in math questions.
var secretRules = []secretRule{
	{SecretTypeAWSKey, 0, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{SecretTypeGCPKey, 0, regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`)},
	{SecretTypeOpenAIKey, 0, regexp.MustCompile(`\bsk-(?:proj-|ant-)?[A-Za-z0-9_\-]{32,}\b`)},
	{SecretTypeGitHubToken, 0, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{SecretTypeSlackToken, 0, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`)},
	{SecretTypeStripeKey, 0, regexp.MustCompile(`\b[sr]k_(?:live|test)_[0-9a-zA-Z]{24,}\b`)},
	{SecretTypeJWT, 0, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`)},
	{SecretTypePrivateKey, 0, regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|EC\s+|DSA\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`)},
	{SecretTypeDatabaseURL, 0, regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb|redis)://[^\s'"]+:[^\s'"]+@[^\s'"]+`)},
	{SecretTypeBearerToken, 1, regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9_\-\.=]{20,})`)},
	{SecretTypeAssignedPass, 1, regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[:=]\s*['"]?([^\s'"]{8,})`)},
}

// DetectSecrets returns all secret detections in the text, ordered by
// position. Overlapping matches keep the earliest, longest one.
func DetectSecrets(text string) []SecretDetection {
	var detections []SecretDetection
	for _, rule := range secretRules {
		for _, m := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*rule.group], m[2*rule.group+1]
			if start < 0 {
				continue
			}
			detections = append(detections, SecretDetection{Type: rule.kind, StartPos: start, EndPos: end})
		}
	}

	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].StartPos != detections[j].StartPos {
			return detections[i].StartPos < detections[j].StartPos
		}
		return detections[i].EndPos > detections[j].EndPos
	})

	out := detections[:0]
	end := -1
	for _, d := range detections {
		if d.StartPos < end {
			continue
		}
		out = append(out, d)
		end = d.EndPos
	}
	return out
}

// HasSecrets returns true if any secrets are detected
func HasSecrets(text string) bool {
	return len(DetectSecrets(text)) > 0
}

// RedactSecrets replaces every detected secret with a typed placeholder.
func RedactSecrets(text string) string {
	detections := DetectSecrets(text)
	if len(detections) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, d := range detections {
		b.WriteString(text[last:d.StartPos])
		b.WriteString("[" + strings.ToUpper(string(d.Type)) + "_REDACTED]")
		last = d.EndPos
	}
	b.WriteString(text[last:])
	return b.String()
}

// RedactSensitive strips both secrets and PII. Secrets go first so that a
// credential containing an email-like user part is removed whole.
func RedactSensitive(text string) string {
	return RedactPII(RedactSecrets(text))
}
