package routing

import (
	"time"
)

// Source identifies where an answer came from.
type Source string

const (
	SourceKB  Source = "KB"
	SourceMCP Source = "MCP"
	SourceLLM Source = "LLM"
)

// Stage is a router state. Stages run in declaration order.
type Stage int

const (
	StageKB Stage = iota
	StageMCP
	StageLLM
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageKB:
		return "kb"
	case StageMCP:
		return "mcp"
	case StageLLM:
		return "llm"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Source returns the answer source a stage queries.
func (s Stage) Source() Source {
	switch s {
	case StageKB:
		return SourceKB
	case StageMCP:
		return SourceMCP
	case StageLLM:
		return SourceLLM
	default:
		return ""
	}
}

// Strategy labels how far the router escalated.
type Strategy string

const (
	StrategyKBOnly       Strategy = "kb_only"
	StrategyKBToMCP      Strategy = "kb_to_mcp"
	StrategyKBToMCPToLLM Strategy = "kb_to_mcp_to_llm"
)

// Query is the validated question. It is never mutated after the input guard.
type Query struct {
	ID        string
	Raw       string
	Sanitized string
	CreatedAt time.Time
}

// Text returns the text retrieval stages should see.
func (q Query) Text() string {
	if q.Sanitized != "" {
		return q.Sanitized
	}
	return q.Raw
}

// Candidate is one source's proposed answer.
type Candidate struct {
	Source     Source
	Answer     string
	Confidence float64
	Metadata   map[string]interface{}
}

// Outcome is what happened when a stage ran.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeEscalated   Outcome = "escalated"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// StageAttempt records one stage invocation.
type StageAttempt struct {
	Stage      Stage         `json:"-"`
	Source     Source        `json:"source"`
	Outcome    Outcome       `json:"outcome"`
	Confidence float64       `json:"confidence"`
	Reason     string        `json:"reason,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Thresholds are the inclusive confidence cut-offs.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// Decision is the router's verdict for one query. Chosen is always set
// when the router returns without error.
type Decision struct {
	Chosen        Candidate
	Strategy      Strategy
	Attempted     []StageAttempt
	Thresholds    Thresholds
	HighCrossed   bool
	MediumCrossed bool
	// KBCandidates is the ranked knowledge-base list, kept for result listing.
	KBCandidates []Candidate
	KBAttempted  bool
	// BestSoFar is the highest-confidence candidate seen before the LLM stage.
	BestSoFar *Candidate
}

// Source returns the chosen source.
func (d *Decision) Source() Source {
	return d.Chosen.Source
}

// StagesAttempted lists the sources that were invoked, in order.
func (d *Decision) StagesAttempted() []Source {
	out := make([]Source, 0, len(d.Attempted))
	for _, a := range d.Attempted {
		out = append(out, a.Source)
	}
	return out
}

// Config is the immutable router configuration built once at startup.
type Config struct {
	Thresholds Thresholds
	TopK       int
	KBTimeout  time.Duration
	MCPTimeout time.Duration
	LLMTimeout time.Duration
}
