package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/upb/math-rag-agent/models"
	"github.com/upb/math-rag-agent/repositories"
	"go.uber.org/zap"
)

// FeedbackRepository implements repositories.FeedbackRepository
type FeedbackRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *DB, logger *zap.Logger) repositories.FeedbackRepository {
	return &FeedbackRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new feedback row
func (r *FeedbackRepository) Insert(ctx context.Context, fb *models.Feedback) error {
	query := `
		INSERT INTO feedback (id, response_id, question, response, correct, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		fb.ID,
		fb.ResponseID,
		fb.Question,
		fb.Response,
		fb.Correct,
		fb.Rating,
		fb.Comment,
		fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	r.logger.Debug("feedback inserted",
		zap.String("id", fb.ID.String()),
		zap.String("response_id", fb.ResponseID))
	return nil
}

// Summary aggregates verdicts and ratings since the given time
func (r *FeedbackRepository) Summary(ctx context.Context, since time.Time) (*repositories.FeedbackSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE correct),
		       AVG(rating)
		FROM feedback
		WHERE created_at >= $1
	`

	executor := GetExecutor(ctx, r.db)
	summary := &repositories.FeedbackSummary{}
	var avg sql.NullFloat64
	if err := executor.QueryRowContext(ctx, query, since).Scan(&summary.Total, &summary.Correct, &avg); err != nil {
		return nil, fmt.Errorf("failed to summarize feedback: %w", err)
	}
	summary.Incorrect = summary.Total - summary.Correct
	if avg.Valid {
		v := avg.Float64
		summary.AvgRating = &v
	}
	return summary, nil
}
