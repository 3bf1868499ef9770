package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/middleware"
	"github.com/upb/math-rag-agent/repositories"
	"github.com/upb/math-rag-agent/services/audit"
	"github.com/upb/math-rag-agent/utils"
	"go.uber.org/zap"
)

// DefaultStatsWindow is used when the since parameter is absent
const DefaultStatsWindow = 24 * time.Hour

// AuditStatsProvider reports audit queue state
type AuditStatsProvider interface {
	GetStats() audit.Stats
}

// FeedbackSummarizer aggregates feedback over a window
type FeedbackSummarizer interface {
	Summary(ctx context.Context, since time.Time) (*repositories.FeedbackSummary, error)
}

// SourceStatsReader aggregates answered searches over a window
type SourceStatsReader interface {
	SourceStats(ctx context.Context, since time.Time) ([]*repositories.SourceStats, error)
}

// ThresholdsView is the router configuration exposed to operators
type ThresholdsView struct {
	High       float64 `json:"high"`
	Medium     float64 `json:"medium"`
	TopK       int     `json:"top_k"`
	KBTimeout  string  `json:"kb_timeout"`
	MCPTimeout string  `json:"mcp_timeout"`
	LLMTimeout string  `json:"llm_timeout"`
}

// StatsResponse is the body of GET /api/v1/admin/stats
type StatsResponse struct {
	Since    time.Time                     `json:"since"`
	Router   ThresholdsView                `json:"router"`
	Audit    audit.Stats                   `json:"audit"`
	Feedback *repositories.FeedbackSummary `json:"feedback"`
	Sources  []*repositories.SourceStats   `json:"sources"`
}

// AdminHandler serves operator statistics
type AdminHandler struct {
	router   routing.Config
	audit    AuditStatsProvider
	feedback FeedbackSummarizer
	sources  SourceStatsReader
	now      func() time.Time
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	router routing.Config,
	audit AuditStatsProvider,
	feedback FeedbackSummarizer,
	sources SourceStatsReader,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		router:   router,
		audit:    audit,
		feedback: feedback,
		sources:  sources,
		now:      time.Now,
		logger:   logger,
	}
}

// HandleStats handles GET /api/v1/admin/stats?since=<duration>
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	window := DefaultStatsWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			_ = utils.WriteBadRequest(w, "since must be a positive duration such as 24h", nil)
			return
		}
		window = d
	}
	since := h.now().UTC().Add(-window)

	summary, err := h.feedback.Summary(ctx, since)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	sources, err := h.sources.SourceStats(ctx, since)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if sources == nil {
		sources = []*repositories.SourceStats{}
	}

	resp := StatsResponse{
		Since: since,
		Router: ThresholdsView{
			High:       h.router.Thresholds.High,
			Medium:     h.router.Thresholds.Medium,
			TopK:       h.router.TopK,
			KBTimeout:  h.router.KBTimeout.String(),
			MCPTimeout: h.router.MCPTimeout.String(),
			LLMTimeout: h.router.LLMTimeout.String(),
		},
		Audit:    h.audit.GetStats(),
		Feedback: summary,
		Sources:  sources,
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
