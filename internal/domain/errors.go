package domain

import "errors"

var (
	// ErrMissingUserID is returned when a record has no Telegram user id.
	ErrMissingUserID = errors.New("user_id is required")
	// ErrEmptyNote is returned for notes without text.
	ErrEmptyNote = errors.New("note text is required")
	// ErrMissingRequestID is returned when a submission has no request id.
	ErrMissingRequestID = errors.New("request_id is required")
)
