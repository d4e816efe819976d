package backend

import (
	"encoding/json"
	"fmt"

	"tg_note_logger_bot/internal/config"
	"tg_note_logger_bot/internal/domain"
)

// notePayload is the current wire layout.
type notePayload struct {
	TelegramUserID   int64   `json:"telegram_user_id"`
	TelegramUsername *string `json:"telegram_username"`
	NoteText         string  `json:"note_text"`
}

// legacyPayload is the layout older backends expect.
type legacyPayload struct {
	MessageID int     `json:"message_id"`
	UserID    int64   `json:"user_id"`
	Username  *string `json:"username"`
	Text      string  `json:"text"`
}

func encodePayload(format string, note domain.Note) ([]byte, error) {
	var username *string
	if note.Username != "" {
		username = &note.Username
	}

	switch format {
	case config.PayloadNote, "":
		return json.Marshal(notePayload{
			TelegramUserID:   note.UserID,
			TelegramUsername: username,
			NoteText:         note.Text,
		})
	case config.PayloadLegacy:
		return json.Marshal(legacyPayload{
			MessageID: note.MessageID,
			UserID:    note.UserID,
			Username:  username,
			Text:      note.Text,
		})
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}
