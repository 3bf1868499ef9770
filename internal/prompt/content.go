package prompt

import (
	"regexp"
	"strings"
	"unicode"
)

// ContentCategory names a family of vocabulary the service refuses to handle.
type ContentCategory string

const (
	CategorySecurity   ContentCategory = "security"
	CategoryPrivacy    ContentCategory = "privacy"
	CategoryCredential ContentCategory = "credential"
)

type contentRule struct {
	category ContentCategory
	pattern  *regexp.Regexp
}

var prohibitedRules = []contentRule{
	{CategorySecurity, regexp.MustCompile(`(?i)\b(hack|exploit|malicious|virus|attack)\b`)},
	{CategoryPrivacy, regexp.MustCompile(`(?i)\b(personal|private|confidential|secret)\b`)},
	{CategoryCredential, regexp.MustCompile(`(?i)\b(password|credit|social.*security)\b`)},
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script.*?</script>`)
	jsSchemePattern    = regexp.MustCompile(`(?i)javascript:`)
	blankRunPattern    = regexp.MustCompile(`[ \t]{2,}`)
)

var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+\b`),
	regexp.MustCompile(`[+\-*/=^()]`),
	regexp.MustCompile(`(?i)\b(solve|equation|function|derivative|integral|limit|sum|product|root|factor)\b`),
	regexp.MustCompile(`(?i)\b(algebra|geometry|calculus|trigonometry|statistics|probability|matrix|vector)\b`),
	regexp.MustCompile(`(?i)\b(theorem|proof|formula|solution|answer)\b`),
}

// ProhibitedCategories returns the distinct categories matched by text, in
// rule order.
func ProhibitedCategories(text string) []ContentCategory {
	var out []ContentCategory
	for _, rule := range prohibitedRules {
		if rule.pattern.MatchString(text) {
			out = append(out, rule.category)
		}
	}
	return out
}

// StripUnsafeMarkup removes script blocks and javascript: schemes and
// collapses the whitespace runs left behind.
func StripUnsafeMarkup(text string) string {
	out := scriptBlockPattern.ReplaceAllString(text, "")
	out = jsSchemePattern.ReplaceAllString(out, "")
	if out == text {
		return text
	}
	return strings.TrimSpace(blankRunPattern.ReplaceAllString(out, " "))
}

// ContainsControlChars reports null bytes or control characters other than
// ordinary line breaks and tabs.
func ContainsControlChars(text string) bool {
	for _, r := range text {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if r == 0 || unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// LooksLikeMath reports whether text carries any numeric, operator or
// mathematical vocabulary signal.
func LooksLikeMath(text string) bool {
	for _, p := range mathPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
