// Package domain defines the types shared by the note pipeline and its storage.
package domain

import "strings"

// Note is a free-text message a user asked the bot to forward to the backend.
type Note struct {
	MessageID int
	ChatID    int64
	UserID    int64
	Username  string
	Text      string
}

// Validate reports whether the note carries enough data to be forwarded.
func (n Note) Validate() error {
	if n.UserID == 0 {
		return ErrMissingUserID
	}
	if strings.TrimSpace(n.Text) == "" {
		return ErrEmptyNote
	}
	return nil
}
