package feedback

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/math-rag-agent/repositories/postgres"
	"github.com/upb/math-rag-agent/services"
)

type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) ObserveFeedback(correct bool) {
	m.Called(correct)
}

func newTestService(t *testing.T, observer Observer) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	logger := zap.NewNop()
	factory := postgres.NewRepositoryFactoryFromDB(postgres.Wrap(sqlDB, logger), logger)
	repos := factory.NewRepositories()
	return NewService(repos.Feedback, repos.APICallLogs, factory.GetTransactionManager(), observer, logger), sqlMock
}

func TestService_Record(t *testing.T) {
	observer := new(MockObserver)
	observer.On("ObserveFeedback", true).Once()
	svc, sqlMock := newTestService(t, observer)

	rating := 5
	comment := "clear steps"

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).
		WithArgs(sqlmock.AnyArg(), "resp-1", "2+2?", "4", true, 5, "clear steps", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectExec(regexp.QuoteMeta("UPDATE api_call_logs SET feedback_received = true")).
		WithArgs("resp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()

	ack, err := svc.Record(context.Background(), Request{
		ResponseID: "resp-1",
		Question:   "2+2?",
		Response:   "4",
		Correct:    true,
		Rating:     &rating,
		Comment:    &comment,
	})
	require.NoError(t, err)

	assert.Equal(t, &Ack{
		Message:    "Feedback received successfully",
		FeedbackID: "resp-1",
		Status:     "received",
	}, ack)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
	observer.AssertExpectations(t)
}

func TestService_Record_UnknownResponseID(t *testing.T) {
	svc, sqlMock := newTestService(t, nil)

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectExec(regexp.QuoteMeta("UPDATE api_call_logs")).
		WithArgs("never-issued").
		WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectCommit()

	ack, err := svc.Record(context.Background(), Request{ResponseID: "never-issued", Question: "q", Response: "a"})
	require.NoError(t, err)
	assert.Equal(t, "never-issued", ack.FeedbackID)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestService_Record_PersistenceFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(sqlmock.Sqlmock)
	}{
		{
			name: "insert fails",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).WillReturnError(errors.New("disk full"))
				m.ExpectRollback()
			},
		},
		{
			name: "flag update fails",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).WillReturnResult(sqlmock.NewResult(1, 1))
				m.ExpectExec(regexp.QuoteMeta("UPDATE api_call_logs")).WillReturnError(errors.New("lock timeout"))
				m.ExpectRollback()
			},
		},
		{
			name: "begin fails",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := new(MockObserver)
			svc, sqlMock := newTestService(t, observer)
			tt.setup(sqlMock)

			ack, err := svc.Record(context.Background(), Request{ResponseID: "r", Question: "q", Response: "a"})
			assert.Nil(t, ack)
			require.Error(t, err)
			assert.True(t, services.IsPersistenceError(err))
			assert.NoError(t, sqlMock.ExpectationsWereMet())
			observer.AssertNotCalled(t, "ObserveFeedback", mock.Anything)
		})
	}
}

func TestService_Summary(t *testing.T) {
	svc, sqlMock := newTestService(t, nil)
	since := time.Now().Add(-24 * time.Hour)

	sqlMock.ExpectQuery("SELECT COUNT").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "correct", "avg"}).AddRow(4, 3, 4.5))

	summary, err := svc.Summary(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Correct)
	assert.Equal(t, 1, summary.Incorrect)
}
