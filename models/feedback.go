package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a user's verdict on a previously returned answer. Rows are
// written once and never updated.
type Feedback struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ResponseID string    `json:"response_id" db:"response_id"`
	Question   string    `json:"question" db:"question"`
	Response   string    `json:"response" db:"response"`
	Correct    bool      `json:"correct" db:"correct"`
	Rating     *int      `json:"rating,omitempty" db:"rating"`
	Comment    *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Feedback model
func (Feedback) TableName() string {
	return "feedback"
}

// NewFeedback creates a feedback entry for a response id.
func NewFeedback(responseID, question, response string, correct bool) *Feedback {
	return &Feedback{
		ID:         uuid.New(),
		ResponseID: responseID,
		Question:   question,
		Response:   response,
		Correct:    correct,
		CreatedAt:  time.Now().UTC(),
	}
}

// WithRating sets an optional 1-5 rating.
func (f *Feedback) WithRating(rating int) *Feedback {
	f.Rating = &rating
	return f
}

// WithComment sets an optional free-text comment.
func (f *Feedback) WithComment(comment string) *Feedback {
	f.Comment = &comment
	return f
}
