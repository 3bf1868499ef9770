// Package feedback records user verdicts on delivered answers.
package feedback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/models"
	"github.com/upb/math-rag-agent/repositories"
	"github.com/upb/math-rag-agent/services"
)

const ackMessage = "Feedback received successfully"

// Request is one feedback submission.
type Request struct {
	ResponseID string
	Question   string
	Response   string
	Correct    bool
	Rating     *int
	Comment    *string
}

// Ack confirms a stored submission.
type Ack struct {
	Message    string `json:"message"`
	FeedbackID string `json:"feedback_id"`
	Status     string `json:"status"`
}

// Observer counts recorded verdicts.
type Observer interface {
	ObserveFeedback(correct bool)
}

// Service writes feedback rows. It never reads routing state and never
// checks that the response id was issued.
type Service struct {
	feedback  repositories.FeedbackRepository
	logs      repositories.APICallLogRepository
	txManager repositories.TransactionManager
	observer  Observer
	logger    *zap.Logger
}

// NewService creates a feedback service. observer may be nil.
func NewService(
	feedback repositories.FeedbackRepository,
	logs repositories.APICallLogRepository,
	txManager repositories.TransactionManager,
	observer Observer,
	logger *zap.Logger,
) *Service {
	return &Service{
		feedback:  feedback,
		logs:      logs,
		txManager: txManager,
		observer:  observer,
		logger:    logger,
	}
}

// Record stores the feedback row and flags the matching API-call log in one
// transaction. A missing log row is not an error: the audit insert reads
// the feedback table and sets the flag itself.
func (s *Service) Record(ctx context.Context, req Request) (*Ack, error) {
	fb := models.NewFeedback(req.ResponseID, req.Question, req.Response, req.Correct)
	if req.Rating != nil {
		fb.WithRating(*req.Rating)
	}
	if req.Comment != nil && *req.Comment != "" {
		fb.WithComment(*req.Comment)
	}

	var flagged int64
	err := s.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		if err := s.feedback.Insert(txCtx, fb); err != nil {
			return err
		}
		n, err := s.logs.MarkFeedbackReceived(txCtx, req.ResponseID)
		if err != nil {
			return err
		}
		flagged = n
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record feedback",
			zap.String("response_id", req.ResponseID),
			zap.Error(err))
		return nil, services.WrapPersistence("failed to record feedback", err)
	}

	if s.observer != nil {
		s.observer.ObserveFeedback(req.Correct)
	}
	s.logger.Info("feedback recorded",
		zap.String("response_id", req.ResponseID),
		zap.Bool("correct", req.Correct),
		zap.Int64("flagged_calls", flagged))

	return &Ack{
		Message:    ackMessage,
		FeedbackID: req.ResponseID,
		Status:     "received",
	}, nil
}

// Summary aggregates feedback received since the given time.
func (s *Service) Summary(ctx context.Context, since time.Time) (*repositories.FeedbackSummary, error) {
	summary, err := s.feedback.Summary(ctx, since)
	if err != nil {
		return nil, services.WrapPersistence("failed to summarize feedback", err)
	}
	return summary, nil
}
