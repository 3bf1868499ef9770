package repositories

import (
	"context"
	"time"

	"github.com/upb/math-rag-agent/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Repositories called with the ctx passed to fn join the transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// FeedbackRepository stores answer feedback
type FeedbackRepository interface {
	// Insert writes a feedback row. Rows are never updated.
	Insert(ctx context.Context, feedback *models.Feedback) error

	// Summary aggregates feedback created at or after since
	Summary(ctx context.Context, since time.Time) (*FeedbackSummary, error)
}

// APICallLogRepository stores the API-call trail
type APICallLogRepository interface {
	// Insert writes one API-call log row
	Insert(ctx context.Context, log *models.APICallLog) error

	// MarkFeedbackReceived flags every row for requestID and returns how many
	// rows changed. Zero is not an error.
	MarkFeedbackReceived(ctx context.Context, requestID string) (int64, error)

	// GetByRequestID retrieves the log rows for a response id
	GetByRequestID(ctx context.Context, requestID string) ([]*models.APICallLog, error)

	// SourceStats aggregates answered searches by source and strategy
	SourceStats(ctx context.Context, since time.Time) ([]*SourceStats, error)
}

// FeedbackSummary is the aggregate verdict count over a time window
type FeedbackSummary struct {
	Total     int      `json:"total"`
	Correct   int      `json:"correct"`
	Incorrect int      `json:"incorrect"`
	AvgRating *float64 `json:"avg_rating,omitempty"`
}

// SourceStats is the per-source aggregate over a time window
type SourceStats struct {
	Source           string  `json:"source"`
	Strategy         string  `json:"search_strategy"`
	Requests         int     `json:"requests"`
	AvgConfidence    float64 `json:"avg_confidence"`
	AvgResponseMs    float64 `json:"avg_response_time_ms"`
	FeedbackReceived int     `json:"feedback_received"`
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Feedback    FeedbackRepository
	APICallLogs APICallLogRepository
}
