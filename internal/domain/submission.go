package domain

import "time"

// Submission outcomes recorded in the journal.
const (
	OutcomeSuccess         = "success"
	OutcomeBackendError    = "backend_error"
	OutcomeTimeout         = "timeout"
	OutcomeNetworkError    = "network_error"
	OutcomeInvalidResponse = "invalid_response"
)

// Submission is one journal entry per note forwarded to the backend. The note
// text itself is not stored.
type Submission struct {
	RequestID  string    `bson:"request_id" json:"request_id"`
	UserID     int64     `bson:"user_id" json:"user_id"`
	ChatID     int64     `bson:"chat_id,omitempty" json:"chat_id,omitempty"`
	Outcome    string    `bson:"outcome" json:"outcome"`
	StatusCode int       `bson:"status_code,omitempty" json:"status_code,omitempty"`
	DurationMS int64     `bson:"duration_ms" json:"duration_ms"`
	TextLength int       `bson:"text_length" json:"text_length"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Failed reports whether the submission did not reach a successful backend reply.
func (s Submission) Failed() bool {
	return s.Outcome != OutcomeSuccess
}
