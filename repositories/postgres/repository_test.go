package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/math-rag-agent/models"
	"github.com/upb/math-rag-agent/repositories"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

func TestFeedbackRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db, zap.NewNop())

	fb := models.NewFeedback("resp-1", "2+2?", "4", true).WithRating(4)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).
		WithArgs(fb.ID, "resp-1", "2+2?", "4", true, fb.Rating, fb.Comment, fb.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), fb))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepository_InsertError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).
		WillReturnError(errors.New("disk full"))

	err := repo.Insert(context.Background(), models.NewFeedback("r", "q", "a", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert feedback")
}

func TestFeedbackRepository_Summary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db, zap.NewNop())
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM feedback")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "correct", "avg"}).AddRow(10, 7, 4.2))

	summary, err := repo.Summary(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 7, summary.Correct)
	assert.Equal(t, 3, summary.Incorrect)
	require.NotNil(t, summary.AvgRating)
	assert.InDelta(t, 4.2, *summary.AvgRating, 1e-9)
}

func TestFeedbackRepository_SummaryWithoutRatings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM feedback")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "correct", "avg"}).AddRow(0, 0, nil))

	summary, err := repo.Summary(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Nil(t, summary.AvgRating)
}

func TestAPICallLogRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPICallLogRepository(db, zap.NewNop())

	log := models.NewAPICallLog("resp-1", models.EndpointSearch, "POST").
		WithQuestion("x+1=2").
		WithRouting("KB", "kb_only", 0.91)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_call_logs")).
		WithArgs(log.ID, "resp-1", models.EndpointSearch, "POST", "x+1=2", nil, nil,
			log.Source, log.Strategy, log.Confidence, int64(0), 200, log.ErrorMessage, false, log.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPICallLogRepository_InsertPicksUpEarlierFeedback(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPICallLogRepository(db, zap.NewNop())

	log := models.NewAPICallLog("resp-2", models.EndpointSearch, "POST")

	mock.ExpectExec(regexp.QuoteMeta("$14::boolean OR EXISTS (SELECT 1 FROM feedback WHERE response_id = $2)")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPICallLogRepository_MarkFeedbackReceived(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPICallLogRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_call_logs SET feedback_received = true")).
		WithArgs("resp-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkFeedbackReceived(context.Background(), "resp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestAPICallLogRepository_GetByRequestID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPICallLogRepository(db, zap.NewNop())
	id := models.NewAPICallLog("x", "y", "z").ID
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "request_id", "endpoint", "method", "question", "request_data", "response_data",
		"source", "search_strategy", "confidence", "response_time_ms", "status_code",
		"error_message", "feedback_received", "created_at",
	}).AddRow(id.String(), "resp-1", models.EndpointSearch, "POST", "q", []byte(`{"question":"q"}`), nil,
		"MCP", "kb_to_mcp", 0.65, int64(1200), 200, nil, true, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_call_logs")).
		WithArgs("resp-1").
		WillReturnRows(rows)

	logs, err := repo.GetByRequestID(context.Background(), "resp-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	require.NotNil(t, logs[0].Source)
	assert.Equal(t, "MCP", *logs[0].Source)
	assert.Nil(t, logs[0].ErrorMessage)
	assert.True(t, logs[0].FeedbackReceived)
	assert.JSONEq(t, `{"question":"q"}`, string(logs[0].RequestData))
}

func TestAPICallLogRepository_SourceStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAPICallLogRepository(db, zap.NewNop())
	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY source, search_strategy")).
		WithArgs(models.EndpointSearch, since).
		WillReturnRows(sqlmock.NewRows([]string{"source", "strategy", "count", "avg_conf", "avg_ms", "fb"}).
			AddRow("KB", "kb_only", 12, 0.88, 140.5, 3).
			AddRow("LLM", "kb_to_mcp_to_llm", 4, 1.0, 5200.0, 1))

	stats, err := repo.SourceStats(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, &repositories.SourceStats{
		Source: "KB", Strategy: "kb_only", Requests: 12, AvgConfidence: 0.88, AvgResponseMs: 140.5, FeedbackReceived: 3,
	}, stats[0])
}

func TestTransactionManager_InTransaction(t *testing.T) {
	t.Run("commits on success and routes calls through the tx", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewAPICallLogRepository(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE api_call_logs")).WithArgs("r").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			_, err := repo.MarkFeedbackReceived(ctx, "r")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
				panic("unexpected")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(errors.New("no connections"))

		err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
			t.Fatal("fn must not run")
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := Wrap(sqlDB, zap.NewNop())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_InitSchema(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS api_call_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
