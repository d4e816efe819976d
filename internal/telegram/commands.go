package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_note_logger_bot/internal/logging"
)

const (
	launchButtonText = "📊 View My Logs"
	statsTimeout     = 5 * time.Second
)

func (c *Client) handleStart(ctx context.Context, m messenger, update *models.Update) {
	meta := extractUpdateMeta(update)
	if meta.chatID == 0 {
		return
	}

	logger := logging.Apply(c.logger, logging.Context{UserID: meta.userID, ChatID: meta.chatID, Event: "command_start"})

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      meta.chatID,
		Text:        startGreeting(update.Message.From),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: launchKeyboard(c.miniAppURL),
	})
	if err != nil {
		logger.WithError(err).Error("failed to send start message")
		return
	}

	logger.Info("sent start message")
}

func (c *Client) handleMyID(ctx context.Context, m messenger, update *models.Update) {
	meta := extractUpdateMeta(update)
	if meta.chatID == 0 || meta.userID == 0 {
		return
	}

	logger := logging.Apply(c.logger, logging.Context{UserID: meta.userID, ChatID: meta.chatID, Event: "command_myid"})

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: meta.chatID,
		Text:   strconv.FormatInt(meta.userID, 10),
	})
	if err != nil {
		logger.WithError(err).Error("failed to send user id")
		return
	}

	logger.Info("sent user id")
}

func (c *Client) handleStats(ctx context.Context, m messenger, update *models.Update) {
	meta := extractUpdateMeta(update)
	if meta.chatID == 0 {
		return
	}

	logger := logging.Apply(c.logger, logging.Context{UserID: meta.userID, ChatID: meta.chatID, Event: "command_stats"})

	if c.ownerID == 0 || meta.userID != c.ownerID {
		logger.Warn("stats requested by non-owner")
		return
	}

	lines := []string{"Uptime: " + time.Since(c.processStart).Round(time.Second).String()}

	if c.stats == nil {
		lines = append(lines, "Persistence: disabled")
	} else {
		statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
		stats, err := c.stats.Collect(statsCtx)
		cancel()

		if err != nil {
			logger.WithError(err).Error("failed to collect stats")
			lines = append(lines, "Stats unavailable.")
		} else {
			lines = append(lines,
				fmt.Sprintf("Users: %d", stats.Users),
				fmt.Sprintf("Notes: %d", stats.Submissions),
				fmt.Sprintf("Failed notes: %d", stats.FailedSubmissions),
			)
		}
	}

	if _, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: meta.chatID,
		Text:   strings.Join(lines, "\n"),
	}); err != nil {
		logger.WithError(err).Error("failed to send stats")
		return
	}

	logger.Info("sent stats")
}

func launchKeyboard(url string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: launchButtonText, WebApp: &models.WebAppInfo{URL: url}},
			},
		},
	}
}

func startGreeting(user *models.User) string {
	return fmt.Sprintf(
		"Hi %s! I'm your personal AI logger. "+
			"Send me a note about your day, mood, health, diet, or activities, and I'll process it. "+
			"Click the button below or use the menu button to view your logs.",
		mentionHTML(user),
	)
}

func mentionHTML(user *models.User) string {
	if user == nil {
		return "there"
	}

	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name == "" {
		name = user.Username
	}
	if name == "" {
		name = "there"
	}

	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, user.ID, html.EscapeString(name))
}
