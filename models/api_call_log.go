package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Endpoint names recorded in the API-call log.
const (
	EndpointSearch   = "/api/v1/search"
	EndpointFeedback = "/api/v1/feedback"
)

// APICallLog is one row of the API-call trail written after each search.
type APICallLog struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	RequestID        string          `json:"request_id" db:"request_id"` // equals the response id
	Endpoint         string          `json:"endpoint" db:"endpoint"`
	Method           string          `json:"method" db:"method"`
	Question         string          `json:"question" db:"question"` // PII redacted
	RequestData      json.RawMessage `json:"request_data,omitempty" db:"request_data"`
	ResponseData     json.RawMessage `json:"response_data,omitempty" db:"response_data"`
	Source           *string         `json:"source,omitempty" db:"source"`
	Strategy         *string         `json:"search_strategy,omitempty" db:"search_strategy"`
	Confidence       *float64        `json:"confidence,omitempty" db:"confidence"`
	ResponseTimeMs   int64           `json:"response_time_ms" db:"response_time_ms"`
	StatusCode       int             `json:"status_code" db:"status_code"`
	ErrorMessage     *string         `json:"error_message,omitempty" db:"error_message"`
	FeedbackReceived bool            `json:"feedback_received" db:"feedback_received"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the APICallLog model
func (APICallLog) TableName() string {
	return "api_call_logs"
}

// NewAPICallLog creates a log entry for one call.
func NewAPICallLog(requestID, endpoint, method string) *APICallLog {
	return &APICallLog{
		ID:         uuid.New(),
		RequestID:  requestID,
		Endpoint:   endpoint,
		Method:     method,
		StatusCode: 200,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithQuestion sets the logged question text.
func (a *APICallLog) WithQuestion(question string) *APICallLog {
	a.Question = question
	return a
}

// WithRequestData stores the request payload as JSON.
func (a *APICallLog) WithRequestData(v interface{}) *APICallLog {
	if data, err := json.Marshal(v); err == nil {
		a.RequestData = data
	}
	return a
}

// WithResponseData stores the response payload as JSON.
func (a *APICallLog) WithResponseData(v interface{}) *APICallLog {
	if data, err := json.Marshal(v); err == nil {
		a.ResponseData = data
	}
	return a
}

// WithRouting records the routing outcome.
func (a *APICallLog) WithRouting(source, strategy string, confidence float64) *APICallLog {
	a.Source = &source
	a.Strategy = &strategy
	a.Confidence = &confidence
	return a
}

// WithLatency sets the end-to-end response time.
func (a *APICallLog) WithLatency(d time.Duration) *APICallLog {
	a.ResponseTimeMs = d.Milliseconds()
	return a
}

// WithError sets error information
func (a *APICallLog) WithError(statusCode int, errorMessage string) *APICallLog {
	a.StatusCode = statusCode
	a.ErrorMessage = &errorMessage
	return a
}
