package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/math-rag-agent/models"
	"github.com/upb/math-rag-agent/repositories"
	"go.uber.org/zap"
)

// APICallLogRepository implements repositories.APICallLogRepository
type APICallLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAPICallLogRepository creates a new API-call log repository
func NewAPICallLogRepository(db *DB, logger *zap.Logger) repositories.APICallLogRepository {
	return &APICallLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new API-call log entry. Rows are written after the
// response is sent, so feedback may already exist for the request; the flag
// is set from the feedback table in the same statement.
func (r *APICallLogRepository) Insert(ctx context.Context, log *models.APICallLog) error {
	query := `
		INSERT INTO api_call_logs (
			id, request_id, endpoint, method, question, request_data, response_data,
			source, search_strategy, confidence, response_time_ms, status_code,
			error_message, feedback_received, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14::boolean OR EXISTS (SELECT 1 FROM feedback WHERE response_id = $2),
			$15
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.RequestID,
		log.Endpoint,
		log.Method,
		log.Question,
		nullableJSON(log.RequestData),
		nullableJSON(log.ResponseData),
		log.Source,
		log.Strategy,
		log.Confidence,
		log.ResponseTimeMs,
		log.StatusCode,
		log.ErrorMessage,
		log.FeedbackReceived,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert api call log: %w", err)
	}

	r.logger.Debug("api call log inserted",
		zap.String("id", log.ID.String()),
		zap.String("request_id", log.RequestID))
	return nil
}

// MarkFeedbackReceived flags the log rows of a response as having feedback
func (r *APICallLogRepository) MarkFeedbackReceived(ctx context.Context, requestID string) (int64, error) {
	query := `UPDATE api_call_logs SET feedback_received = true WHERE request_id = $1`

	executor := GetExecutor(ctx, r.db)
	res, err := executor.ExecContext(ctx, query, requestID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark feedback received: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// GetByRequestID retrieves the log rows for a response id, newest first
func (r *APICallLogRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.APICallLog, error) {
	query := `
		SELECT id, request_id, endpoint, method, question, request_data, response_data,
		       source, search_strategy, confidence, response_time_ms, status_code,
		       error_message, feedback_received, created_at
		FROM api_call_logs
		WHERE request_id = $1
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query api call logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.APICallLog
	for rows.Next() {
		log := &models.APICallLog{}
		var requestData, responseData []byte
		err := rows.Scan(
			&log.ID,
			&log.RequestID,
			&log.Endpoint,
			&log.Method,
			&log.Question,
			&requestData,
			&responseData,
			&log.Source,
			&log.Strategy,
			&log.Confidence,
			&log.ResponseTimeMs,
			&log.StatusCode,
			&log.ErrorMessage,
			&log.FeedbackReceived,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api call log: %w", err)
		}
		log.RequestData = requestData
		log.ResponseData = responseData
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api call log rows: %w", err)
	}

	return logs, nil
}

// SourceStats aggregates successful searches by source and strategy
func (r *APICallLogRepository) SourceStats(ctx context.Context, since time.Time) ([]*repositories.SourceStats, error) {
	query := `
		SELECT source, search_strategy, COUNT(*),
		       COALESCE(AVG(confidence), 0), COALESCE(AVG(response_time_ms), 0),
		       COUNT(*) FILTER (WHERE feedback_received)
		FROM api_call_logs
		WHERE endpoint = $1 AND status_code = 200 AND source IS NOT NULL AND created_at >= $2
		GROUP BY source, search_strategy
		ORDER BY source, search_strategy
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, models.EndpointSearch, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query source stats: %w", err)
	}
	defer rows.Close()

	var stats []*repositories.SourceStats
	for rows.Next() {
		s := &repositories.SourceStats{}
		if err := rows.Scan(&s.Source, &s.Strategy, &s.Requests, &s.AvgConfidence, &s.AvgResponseMs, &s.FeedbackReceived); err != nil {
			return nil, fmt.Errorf("failed to scan source stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source stats rows: %w", err)
	}
	return stats, nil
}

// nullableJSON keeps empty payloads out of JSONB columns.
func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}
