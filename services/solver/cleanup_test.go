package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "verbose opening dropped",
			in:   "Okay, let's solve this step by step.\nSolution Steps:\n1. Subtract $3$.",
			want: "Solution Steps:\n\n1. Subtract $3$.",
		},
		{
			name: "latex delimiters",
			in:   `The root is \(x = 2\) and \[x^2 = 4\]`,
			want: "The root is $x = 2$ and $$x^2 = 4$$",
		},
		{
			name: "bold and heading sections",
			in:   "## Solution Steps\nwork\n\n**Final Answer:** $2$",
			want: "Solution Steps:\nwork\n\nFinal Answer: $2$",
		},
		{
			name: "blank line runs collapsed",
			in:   "a\n\n\n\n\nb",
			want: "a\n\nb",
		},
		{
			name: "plain text passes through",
			in:   "  The answer is 4  ",
			want: "The answer is 4",
		},
		{
			name: "opening only on first line",
			in:   "Sure, let's do it\nFinal Answer: $7$",
			want: "Final Answer: $7$",
		},
		{
			name: "single sentence opening kept",
			in:   "Let's solve this: x = 2",
			want: "Let's solve this: x = 2",
		},
		{
			name: "opening ending in final period kept",
			in:   "Okay, let's go.",
			want: "Okay, let's go.",
		},
		{
			name: "decimal point is not a sentence break",
			in:   "Let's solve 2.5x = 5\nSolution Steps:\n1. Divide by $2.5$.",
			want: "Solution Steps:\n\n1. Divide by $2.5$.",
		},
		{
			name: "opening followed by blank text kept",
			in:   "Sure, let's see.   ",
			want: "Sure, let's see.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}

func TestHasFinalAnswer(t *testing.T) {
	assert.True(t, HasFinalAnswer("Solution Steps:\n...\nFinal Answer: $4$"))
	assert.False(t, HasFinalAnswer("the answer is 4"))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("What is 2+2?")
	assert.Contains(t, p, "QUESTION: What is 2+2?")
	assert.Contains(t, p, "Solution Steps:")
	assert.Contains(t, p, "Final Answer:")
	assert.Contains(t, p, "Verification (if applicable):")
}
