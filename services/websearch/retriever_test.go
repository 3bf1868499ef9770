package websearch

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/services"
)

type MockToolCaller struct {
	mock.Mock
}

func (m *MockToolCaller) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*mcp.CallToolResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRetriever_Search(t *testing.T) {
	caller := new(MockToolCaller)
	body := `[
		{"title":"Pythagorean theorem","snippet":"In a right triangle the hypotenuse squared equals the sum of the squares of the legs.","url":"https://example.org/pt"},
		{"title":"Right triangle","content":"A triangle with one right angle.","url":"https://example.org/rt"}
	]`
	caller.On("CallTool", mock.Anything, mock.MatchedBy(func(req mcp.CallToolRequest) bool {
		args, ok := req.Params.Arguments.(map[string]any)
		return ok && req.Params.Name == "search_web" && args["query"] == "hypotenuse of a right triangle" && args["max_results"] == 4
	})).Return(mcp.NewToolResultText(body), nil)

	r := NewRetriever(caller, "", 4, zap.NewNop())
	c, err := r.Search(context.Background(), "hypotenuse of a right triangle")
	require.NoError(t, err)

	assert.Equal(t, routing.SourceMCP, c.Source)
	// volume 2/4, every term (hypotenuse, right, triangle) covered
	assert.InDelta(t, 0.8, c.Confidence, 1e-9)
	assert.Contains(t, c.Answer, "Based on web search:\n1. Pythagorean theorem: In a right triangle")
	assert.Contains(t, c.Answer, "(https://example.org/rt)")
	assert.Equal(t, 2, c.Metadata["results_count"])
	caller.AssertExpectations(t)
}

func TestRetriever_Search_NoSnippets(t *testing.T) {
	caller := new(MockToolCaller)
	caller.On("CallTool", mock.Anything, mock.Anything).Return(mcp.NewToolResultText("  "), nil)

	c, err := NewRetriever(caller, "search_web", 5, zap.NewNop()).Search(context.Background(), "integral of x")
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, "Based on web search:\nNo web results found.", c.Answer)
}

func TestRetriever_Search_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		result *mcp.CallToolResult
		err    error
	}{
		{"transport error", nil, errors.New("broken pipe")},
		{"timeout", nil, context.DeadlineExceeded},
		{"tool error", mcp.NewToolResultError("rate limited"), nil},
		{"nil result", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := new(MockToolCaller)
			caller.On("CallTool", mock.Anything, mock.Anything).Return(tt.result, tt.err)

			_, err := NewRetriever(caller, "", 5, zap.NewNop()).Search(context.Background(), "q")
			require.Error(t, err)
			assert.True(t, services.IsSourceUnavailableError(err))
		})
	}
}

func TestFormatAnswer_LimitsToThree(t *testing.T) {
	snippets := []Snippet{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}}
	assert.Equal(t, "Based on web search:\n1. a\n2. b\n3. c", formatAnswer(snippets))
}
