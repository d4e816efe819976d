package telegram

import (
	"context"
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_note_logger_bot/internal/domain"
	"tg_note_logger_bot/internal/feature/note"
	"tg_note_logger_bot/internal/logging"
)

// maxMessageLength is the platform limit for message text, in UTF-16 code units.
const maxMessageLength = 4096

// handleText receives every update no command handler matched. Non-command
// text messages are forwarded as notes; everything else is only logged.
func (c *Client) handleText(ctx context.Context, m messenger, update *models.Update) {
	meta := extractUpdateMeta(update)
	logger := logging.Apply(c.logger, logging.Context{UserID: meta.userID, ChatID: meta.chatID})

	if meta.updateType != "message" || meta.userID == 0 || meta.text == "" {
		logger.WithFields(logging.Fields{
			"event":       "telegram_update_ignored",
			"update_type": meta.updateType,
		}).Debug("ignored update without note text")
		return
	}

	if isCommand(update.Message) {
		logger.WithFields(logging.Fields{
			"event":   "command_unknown",
			"command": firstWord(meta.text),
		}).Info("ignored unknown command")
		return
	}

	if c.users != nil {
		if _, err := c.users.EnsureUser(ctx, meta.userID, meta.username); err != nil {
			logger.WithField("event", "user_register_error").WithError(err).Warn("failed to register user")
		}
	}

	var notice *models.Message
	if c.processingNotice {
		sent, err := m.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:          meta.chatID,
			Text:            note.ReplyProcessing,
			ReplyParameters: &models.ReplyParameters{MessageID: meta.messageID},
		})
		if err != nil {
			logger.WithField("event", "notice_send_error").WithError(err).Warn("failed to send processing notice")
		} else {
			notice = sent
		}
	}

	outcome := c.forwarder.Forward(ctx, domain.Note{
		MessageID: meta.messageID,
		ChatID:    meta.chatID,
		UserID:    meta.userID,
		Username:  meta.username,
		Text:      update.Message.Text,
	})

	c.deliver(ctx, m, logger, meta.chatID, notice, outcome.Reply)
}

// deliver edits the processing notice in place when there is one and falls
// back to a new message when there is none or the edit fails. The policy is
// the same for every outcome.
func (c *Client) deliver(ctx context.Context, m messenger, logger *logrus.Entry, chatID int64, notice *models.Message, text string) {
	if truncated := truncateMessage(text); truncated != text {
		logger.WithFields(logging.Fields{
			"event":  "note_reply_truncated",
			"length": utf16Len(text),
		}).Warn("note reply exceeds message limit, truncating")
		text = truncated
	}

	if notice != nil {
		_, err := m.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: notice.ID,
			Text:      text,
		})
		if err == nil {
			logger.WithField("event", "note_reply_edited").Debug("edited processing notice with reply")
			return
		}
		logger.WithField("event", "notice_edit_error").WithError(err).Warn("failed to edit processing notice, sending new message")
	}

	if _, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		logger.WithField("event", "note_reply_error").WithError(err).Error("failed to send note reply")
		return
	}

	logger.WithField("event", "note_reply_sent").Debug("sent note reply")
}

// isCommand follows the platform rule: a message is a command when it starts
// with a bot_command entity. A leading slash without an entity counts too.
func isCommand(msg *models.Message) bool {
	if msg == nil {
		return false
	}

	for _, entity := range msg.Entities {
		if entity.Type == models.MessageEntityTypeBotCommand && entity.Offset == 0 {
			return true
		}
	}

	return strings.HasPrefix(strings.TrimSpace(msg.Text), "/")
}

// truncateMessage cuts text to the platform limit and marks the cut.
func truncateMessage(text string) string {
	if utf16Len(text) <= maxMessageLength {
		return text
	}

	const ellipsis = "…"
	limit := maxMessageLength - utf16Len(ellipsis)

	var b strings.Builder
	units := 0
	for _, r := range text {
		n := runeUnits(r)
		if units+n > limit {
			break
		}
		b.WriteRune(r)
		units += n
	}
	b.WriteString(ellipsis)

	return b.String()
}

func utf16Len(text string) int {
	units := 0
	for _, r := range text {
		units += runeUnits(r)
	}
	return units
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
