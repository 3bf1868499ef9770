package websearch

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
)

// Snippet is one web result.
type Snippet struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
}

type jsonResult struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Content     string `json:"content"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Link        string `json:"link"`
}

var (
	blankLinePattern  = regexp.MustCompile(`\n\s*\n`)
	listMarkerPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)
	urlLinePattern    = regexp.MustCompile(`(?im)^\s*(url|link|source)\s*:\s*(\S+)\s*$`)
	titleLinePattern  = regexp.MustCompile(`(?im)^\s*title\s*:\s*(.+)$`)
)

// parseSnippets extracts snippets from every text item of a tool result.
func parseSnippets(result *mcp.CallToolResult) []Snippet {
	var out []Snippet
	for _, content := range result.Content {
		text, ok := textOf(content)
		if !ok {
			continue
		}
		out = append(out, parseText(text)...)
	}
	return out
}

func textOf(content mcp.Content) (string, bool) {
	switch c := content.(type) {
	case mcp.TextContent:
		return c.Text, true
	case *mcp.TextContent:
		return c.Text, true
	default:
		return "", false
	}
}

// parseText understands JSON arrays (or objects with a results array) of
// search hits, and otherwise splits on blank lines or numbered list items.
func parseText(text string) []Snippet {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if snippets, ok := parseJSON(trimmed); ok {
		return snippets
	}

	var blocks []string
	if listMarkerPattern.MatchString(trimmed) {
		blocks = listMarkerPattern.Split(trimmed, -1)
	} else {
		blocks = blankLinePattern.Split(trimmed, -1)
	}

	out := make([]Snippet, 0, len(blocks))
	for _, block := range blocks {
		if s, ok := parseBlock(block); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseJSON(text string) ([]Snippet, bool) {
	if !strings.HasPrefix(text, "[") && !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var hits []jsonResult
	if err := json.Unmarshal([]byte(text), &hits); err != nil {
		var wrapped struct {
			Results []jsonResult `json:"results"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil || wrapped.Results == nil {
			return nil, false
		}
		hits = wrapped.Results
	}

	out := make([]Snippet, 0, len(hits))
	for _, h := range hits {
		body := firstNonEmpty(h.Snippet, h.Content, h.Description)
		if body == "" && h.Title == "" {
			continue
		}
		out = append(out, Snippet{
			Title: strings.TrimSpace(h.Title),
			Text:  strings.TrimSpace(body),
			URL:   firstNonEmpty(h.URL, h.Link),
		})
	}
	return out, true
}

func parseBlock(block string) (Snippet, bool) {
	var s Snippet
	if m := urlLinePattern.FindStringSubmatch(block); m != nil {
		s.URL = m[2]
		block = urlLinePattern.ReplaceAllString(block, "")
	}
	if m := titleLinePattern.FindStringSubmatch(block); m != nil {
		s.Title = strings.TrimSpace(m[1])
		block = titleLinePattern.ReplaceAllString(block, "")
	}
	s.Text = strings.Join(strings.Fields(block), " ")
	if s.Text == "" && s.Title == "" {
		return Snippet{}, false
	}
	return s, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "find": {}, "from": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "me": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "this": {}, "to": {}, "what": {}, "when": {}, "which": {},
	"with": {}, "you": {}, "your": {},
}

// terms returns the distinct lower-cased alphanumeric tokens of text that are
// not stopwords.
func terms(text string) map[string]struct{} {
	out := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// score is 0.4 for result volume plus 0.6 for question-term coverage.
// It is monotonic in both and 0 without snippets.
func score(question string, snippets []Snippet, maxResults int) float64 {
	if len(snippets) == 0 {
		return 0
	}
	if maxResults <= 0 {
		maxResults = 1
	}
	n := len(snippets)
	if n > maxResults {
		n = maxResults
	}
	volume := float64(n) / float64(maxResults)

	overlap := 0.0
	qTerms := terms(question)
	if len(qTerms) > 0 {
		var corpus strings.Builder
		for _, s := range snippets {
			corpus.WriteString(s.Title)
			corpus.WriteByte(' ')
			corpus.WriteString(s.Text)
			corpus.WriteByte(' ')
		}
		found := terms(corpus.String())
		hits := 0
		for t := range qTerms {
			if _, ok := found[t]; ok {
				hits++
			}
		}
		overlap = float64(hits) / float64(len(qTerms))
	}

	return math.Round((0.4*volume+0.6*overlap)*10000) / 10000
}
