package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/upb/math-rag-agent/middleware"
	"github.com/upb/math-rag-agent/services"
	"github.com/upb/math-rag-agent/services/synthesis"
	"github.com/upb/math-rag-agent/utils"
	"go.uber.org/zap"
)

// SearchService answers one question
type SearchService interface {
	Answer(ctx context.Context, question string) (*synthesis.Response, error)
}

// SearchRequest is the body of POST /api/v1/search. Emptiness and length
// are judged by the input guard so that rejections carry its reason codes.
type SearchRequest struct {
	Question string `json:"question"`
}

// SearchHandler handles question answering
type SearchHandler struct {
	service SearchService
	logger  *zap.Logger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(service SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSearch handles POST /api/v1/search
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req SearchRequest
	if err := utils.DecodeJSON(w, r, &req, 0); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	resp, err := h.service.Answer(ctx, req.Question)
	if err != nil {
		if services.IsOverloadedError(err) {
			HandleServiceError(w, err, h.logger)
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The caller is gone or the timeout middleware answers instead.
			h.logger.Info("search abandoned",
				zap.String("request_id", requestID),
				zap.Error(err))
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
