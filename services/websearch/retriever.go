// Package websearch implements the web-search stage over an MCP tool server.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/services"
)

const (
	sourceName        = "mcp"
	answerPrefix      = "Based on web search:\n"
	maxAnswerSnippets = 3
	defaultToolName   = "search_web"
	defaultMaxResults = 5
)

// Retriever asks the web-search tool for snippets and scores them.
type Retriever struct {
	caller     ToolCaller
	toolName   string
	maxResults int
	logger     *zap.Logger
}

// NewRetriever creates a web-search retriever.
func NewRetriever(caller ToolCaller, toolName string, maxResults int, logger *zap.Logger) *Retriever {
	if toolName == "" {
		toolName = defaultToolName
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Retriever{
		caller:     caller,
		toolName:   toolName,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Search returns one candidate built from the tool's snippets. A result with
// no snippets is a valid zero-confidence candidate. Transport errors, tool
// errors and timeouts are SourceUnavailable.
func (r *Retriever) Search(ctx context.Context, question string) (routing.Candidate, error) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: r.toolName,
			Arguments: map[string]any{
				"query":       question,
				"max_results": r.maxResults,
			},
		},
	}

	result, err := r.caller.CallTool(ctx, req)
	if err != nil {
		return routing.Candidate{}, services.NewSourceUnavailable(sourceName, err)
	}
	if result == nil {
		return routing.Candidate{}, services.NewSourceUnavailable(sourceName, errors.New("empty tool result"))
	}
	if result.IsError {
		return routing.Candidate{}, services.NewSourceUnavailable(sourceName, fmt.Errorf("tool %s returned an error: %s", r.toolName, toolErrorText(result)))
	}

	snippets := parseSnippets(result)
	if len(snippets) > r.maxResults {
		snippets = snippets[:r.maxResults]
	}
	confidence := score(question, snippets, r.maxResults)

	r.logger.Debug("web search completed",
		zap.Int("snippets", len(snippets)),
		zap.Float64("confidence", confidence),
	)

	return routing.Candidate{
		Source:     routing.SourceMCP,
		Answer:     formatAnswer(snippets),
		Confidence: confidence,
		Metadata: map[string]interface{}{
			"results_count": len(snippets),
			"snippets":      snippets,
			"search_query":  question,
		},
	}, nil
}

func formatAnswer(snippets []Snippet) string {
	if len(snippets) == 0 {
		return answerPrefix + "No web results found."
	}
	var b strings.Builder
	b.WriteString(answerPrefix)
	for i, s := range snippets {
		if i == maxAnswerSnippets {
			break
		}
		fmt.Fprintf(&b, "%d. ", i+1)
		if s.Title != "" {
			b.WriteString(s.Title)
			if s.Text != "" {
				b.WriteString(": ")
			}
		}
		b.WriteString(s.Text)
		if s.URL != "" {
			fmt.Fprintf(&b, " (%s)", s.URL)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func toolErrorText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if text, ok := textOf(c); ok && text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, "; ")
}
