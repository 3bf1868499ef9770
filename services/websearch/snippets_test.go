package websearch

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Snippet
	}{
		{
			name: "json array",
			text: `[{"title":"T","description":"D","link":"https://x"}]`,
			want: []Snippet{{Title: "T", Text: "D", URL: "https://x"}},
		},
		{
			name: "json results object",
			text: `{"results":[{"title":"T","snippet":"S","url":"https://y"}]}`,
			want: []Snippet{{Title: "T", Text: "S", URL: "https://y"}},
		},
		{
			name: "numbered list",
			text: "1. Title: First\nfirst body\nURL: https://a\n2. second body",
			want: []Snippet{
				{Title: "First", Text: "first body", URL: "https://a"},
				{Text: "second body"},
			},
		},
		{
			name: "blank line separated",
			text: "alpha beta\n\n\ngamma",
			want: []Snippet{{Text: "alpha beta"}, {Text: "gamma"}},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseText(tt.text))
		})
	}
}

func TestParseSnippets_SkipsNonText(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewImageContent("aGVsbG8=", "image/png"),
			mcp.NewTextContent("one\n\ntwo"),
		},
	}
	got := parseSnippets(result)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[1].Text)
}

func TestTerms(t *testing.T) {
	got := terms("What is the derivative of x^2?")
	assert.Contains(t, got, "derivative")
	assert.Contains(t, got, "x")
	assert.Contains(t, got, "2")
	assert.NotContains(t, got, "what")
	assert.NotContains(t, got, "the")
}

func TestScore(t *testing.T) {
	q := "derivative of sine"

	assert.Equal(t, 0.0, score(q, nil, 5))

	one := []Snippet{{Text: "the derivative of sine is cosine"}}
	assert.InDelta(t, 0.4*0.2+0.6, score(q, one, 5), 1e-9)

	unrelated := []Snippet{{Text: "weather today"}}
	assert.InDelta(t, 0.08, score(q, unrelated, 5), 1e-9)

	// more results never lowers confidence
	more := append(one, Snippet{Text: "calculus"})
	assert.Greater(t, score(q, more, 5), score(q, one, 5))

	// volume saturates at maxResults
	many := make([]Snippet, 10)
	for i := range many {
		many[i] = Snippet{Text: "derivative sine"}
	}
	assert.Equal(t, 1.0, score(q, many, 5))
}
