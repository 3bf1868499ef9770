package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/math-rag-agent/internal/routing"
	"github.com/upb/math-rag-agent/repositories"
	"github.com/upb/math-rag-agent/services/audit"
	"go.uber.org/zap"
)

type stubAuditStats struct{}

func (stubAuditStats) GetStats() audit.Stats {
	return audit.Stats{BufferSize: 100, PendingEvents: 3, WorkerCount: 2, Started: true}
}

type MockStatsStore struct {
	mock.Mock
}

func (m *MockStatsStore) Summary(ctx context.Context, since time.Time) (*repositories.FeedbackSummary, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.FeedbackSummary), args.Error(1)
}

func (m *MockStatsStore) SourceStats(ctx context.Context, since time.Time) ([]*repositories.SourceStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.SourceStats), args.Error(1)
}

func newAdminHandler(store *MockStatsStore, now time.Time) *AdminHandler {
	cfg := routing.Config{
		Thresholds: routing.Thresholds{High: 0.8, Medium: 0.6},
		TopK:       5,
		KBTimeout:  5 * time.Second,
		MCPTimeout: 10 * time.Second,
		LLMTimeout: 60 * time.Second,
	}
	h := NewAdminHandler(cfg, stubAuditStats{}, store, store, zap.NewNop())
	h.now = func() time.Time { return now }
	return h
}

func TestAdminHandler_HandleStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("default window", func(t *testing.T) {
		store := new(MockStatsStore)
		since := now.Add(-24 * time.Hour)
		store.On("Summary", mock.Anything, since).
			Return(&repositories.FeedbackSummary{Total: 4, Correct: 3, Incorrect: 1}, nil)
		store.On("SourceStats", mock.Anything, since).
			Return([]*repositories.SourceStats{{Source: "KB", Strategy: "kb_high_confidence", Requests: 10}}, nil)

		w := httptest.NewRecorder()
		newAdminHandler(store, now).HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)

		router := data["router"].(map[string]interface{})
		assert.Equal(t, 0.8, router["high"])
		assert.Equal(t, 0.6, router["medium"])
		assert.Equal(t, "10s", router["mcp_timeout"])

		auditStats := data["audit"].(map[string]interface{})
		assert.Equal(t, float64(3), auditStats["pending_events"])

		fb := data["feedback"].(map[string]interface{})
		assert.Equal(t, float64(4), fb["total"])

		sources := data["sources"].([]interface{})
		assert.Len(t, sources, 1)
		store.AssertExpectations(t)
	})

	t.Run("custom window with no traffic", func(t *testing.T) {
		store := new(MockStatsStore)
		since := now.Add(-time.Hour)
		store.On("Summary", mock.Anything, since).Return(&repositories.FeedbackSummary{}, nil)
		store.On("SourceStats", mock.Anything, since).Return(nil, nil)

		w := httptest.NewRecorder()
		newAdminHandler(store, now).HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats?since=1h", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, []interface{}{}, data["sources"])
	})

	t.Run("invalid window", func(t *testing.T) {
		store := new(MockStatsStore)

		w := httptest.NewRecorder()
		newAdminHandler(store, now).HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats?since=yesterday", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "Summary", mock.Anything, mock.Anything)
	})

	t.Run("repository failure", func(t *testing.T) {
		store := new(MockStatsStore)
		store.On("Summary", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		w := httptest.NewRecorder()
		newAdminHandler(store, now).HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
