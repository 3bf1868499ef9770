package handlers

import (
	"context"
	"net/http"

	"github.com/upb/math-rag-agent/middleware"
	"github.com/upb/math-rag-agent/services/feedback"
	"github.com/upb/math-rag-agent/utils"
	"go.uber.org/zap"
)

// FeedbackService records answer feedback
type FeedbackService interface {
	Record(ctx context.Context, req feedback.Request) (*feedback.Ack, error)
}

// FeedbackRequest is the body of POST /api/v1/feedback
type FeedbackRequest struct {
	ResponseID string  `json:"response_id" validate:"required,max=64"`
	Question   string  `json:"question" validate:"required"`
	Response   string  `json:"response" validate:"required"`
	Correct    *bool   `json:"correct" validate:"required"`
	Rating     *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Comment    *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// FeedbackHandler handles feedback submissions
type FeedbackHandler struct {
	service FeedbackService
	logger  *zap.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler
func NewFeedbackHandler(service FeedbackService, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		service: service,
		logger:  logger,
	}
}

// HandleFeedback handles POST /api/v1/feedback
func (h *FeedbackHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req FeedbackRequest
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	ack, err := h.service.Record(ctx, feedback.Request{
		ResponseID: req.ResponseID,
		Question:   req.Question,
		Response:   req.Response,
		Correct:    *req.Correct,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ack); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
