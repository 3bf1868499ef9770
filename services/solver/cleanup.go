package solver

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var verboseOpenings = []string{
	"okay, let's",
	"alright, let's",
	"sure, let's",
	"let's solve",
	"i'll solve",
	"here's how to",
}

var headerReplacer = strings.NewReplacer(
	`\(`, "$",
	`\)`, "$",
	`\[`, "$$",
	`\]`, "$$",
	"**Final Answer:**", "Final Answer:",
	"**Final Answer**", "Final Answer:",
	"## Final Answer", "Final Answer:",
	"**Solution Steps:**", "Solution Steps:",
	"## Solution Steps", "Solution Steps:",
	"**Verification:**", "Verification:",
	"## Verification", "Verification:",
)

var (
	boldRunPattern    = regexp.MustCompile(`\*{2,}`)
	headingPattern    = regexp.MustCompile(`(?m)^#{2,}\s*`)
	numberedPattern   = regexp.MustCompile(`(?m)^(\d+\.\s)`)
	newlineRunPattern = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
)

// CleanResponse normalises model output: it drops a chatty opening
// sentence, rewrites LaTeX delimiters to dollar signs, flattens markdown
// section headers and collapses runs of blank lines. Text without any of
// these features passes through trimmed.
func CleanResponse(text string) string {
	out := strings.TrimSpace(text)
	out = stripOpening(out)
	out = headerReplacer.Replace(out)
	out = boldRunPattern.ReplaceAllString(out, "")
	out = headingPattern.ReplaceAllString(out, "")
	out = numberedPattern.ReplaceAllString(out, "\n$1")
	out = newlineRunPattern.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func stripOpening(text string) string {
	lower := strings.ToLower(text)
	for _, opening := range verboseOpenings {
		if !strings.HasPrefix(lower, opening) {
			continue
		}
		cut := sentenceEnd(text)
		if cut == -1 {
			return text
		}
		if rest := strings.TrimSpace(text[cut:]); rest != "" {
			return rest
		}
		return text
	}
	return text
}

// sentenceEnd returns the index just past the first line break or period
// followed by whitespace, or -1 when text is a single sentence. Decimal
// points never end a sentence.
func sentenceEnd(text string) int {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			return i + 1
		case '.':
			if next, _ := utf8.DecodeRuneInString(text[i+1:]); unicode.IsSpace(next) {
				return i + 1
			}
		}
	}
	return -1
}

// HasFinalAnswer reports whether the cleaned text carries the Final Answer
// section.
func HasFinalAnswer(text string) bool {
	return strings.Contains(text, "Final Answer:")
}
