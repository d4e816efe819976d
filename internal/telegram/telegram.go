// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_note_logger_bot/internal/config"
	"tg_note_logger_bot/internal/domain"
	"tg_note_logger_bot/internal/feature/note"
	"tg_note_logger_bot/internal/logging"
	"tg_note_logger_bot/internal/store"
)

// Command names registered with the framework, without the leading slash.
const (
	CommandStart = "start"
	CommandMyID  = "myid"
	CommandStats = "stats"
)

type botRunner interface {
	Start(ctx context.Context)
	GetMe(ctx context.Context) (*models.User, error)
	RegisterHandlerMatchFunc(matchFunc bot.MatchFunc, f bot.HandlerFunc, m ...bot.Middleware) string
}

// messenger is the subset of *bot.Bot the handlers call.
type messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
}

var _ messenger = (*bot.Bot)(nil)

type noteForwarder interface {
	Forward(ctx context.Context, n domain.Note) note.Outcome
}

type userRegistrar interface {
	EnsureUser(ctx context.Context, userID int64, username string) (bool, error)
}

type statsProvider interface {
	Collect(ctx context.Context) (store.Stats, error)
}

const getMeTimeout = 10 * time.Second

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and the collaborators its handlers use.
type Client struct {
	bot    botRunner
	logger *logrus.Entry

	// username is the bot's own handle, used to accept /command@username.
	username string

	miniAppURL       string
	ownerID          int64
	processingNotice bool
	processStart     time.Time

	forwarder noteForwarder
	users     userRegistrar
	stats     statsProvider
}

// Option customizes a Client.
type Option func(*Client)

// WithNoteForwarder sets the handler for free-text notes. Required.
func WithNoteForwarder(f noteForwarder) Option {
	return func(c *Client) {
		c.forwarder = f
	}
}

// WithUserRegistrar records every user who sends a note.
func WithUserRegistrar(r userRegistrar) Option {
	return func(c *Client) {
		c.users = r
	}
}

// WithStatsProvider backs the owner-only /stats command.
func WithStatsProvider(p statsProvider) Option {
	return func(c *Client) {
		c.stats = p
	}
}

// WithProcessStart sets the reference time for uptime reporting.
func WithProcessStart(t time.Time) Option {
	return func(c *Client) {
		c.processStart = t
	}
}

// NewClient initializes the Telegram bot with long polling and registers the
// command and note handlers.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if strings.TrimSpace(cfg.MiniAppURL) == "" {
		return nil, errors.New("mini app url is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		logger:           logger,
		miniAppURL:       cfg.MiniAppURL,
		ownerID:          cfg.BotOwnerID,
		processingNotice: cfg.ProcessingNotice,
		processStart:     time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.forwarder == nil {
		return nil, errors.New("note forwarder is required")
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithSkipGetMe(),
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(c.adapt("text", c.handleText)),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	meCtx, cancel := context.WithTimeout(context.Background(), getMeTimeout)
	me, err := tgBot.GetMe(meCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	if me != nil {
		c.username = me.Username
	}

	tgBot.RegisterHandlerMatchFunc(c.matchCommand(CommandStart), c.adapt("start", c.handleStart))
	tgBot.RegisterHandlerMatchFunc(c.matchCommand(CommandMyID), c.adapt("myid", c.handleMyID))
	tgBot.RegisterHandlerMatchFunc(c.matchCommand(CommandStats), c.adapt("stats", c.handleStats))

	c.bot = tgBot
	return c, nil
}

// matchCommand matches messages that start with /name or /name@<this bot>.
// A command entity later in the text is part of a note, not a command.
func (c *Client) matchCommand(name string) bot.MatchFunc {
	return func(update *models.Update) bool {
		if update == nil {
			return false
		}
		command, ok := parseCommand(update.Message, c.username)
		return ok && command == name
	}
}

// parseCommand returns the command a message starts with. ok is false when
// there is no leading bot_command entity or the command names another bot.
func parseCommand(msg *models.Message, botUsername string) (string, bool) {
	if msg == nil {
		return "", false
	}

	for _, entity := range msg.Entities {
		if entity.Type != models.MessageEntityTypeBotCommand || entity.Offset != 0 {
			continue
		}
		// Command tokens are ASCII, so the UTF-16 length equals the byte length.
		if entity.Length < 2 || entity.Length > len(msg.Text) {
			return "", false
		}

		name, target, addressed := strings.Cut(msg.Text[1:entity.Length], "@")
		if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
			return "", false
		}
		return name, true
	}

	return "", false
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
		"bot_username":    c.username,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

type handlerFunc func(ctx context.Context, m messenger, update *models.Update)

// adapt converts a handler to the framework signature and keeps a panicking
// handler from taking the poller down.
func (c *Client) adapt(name string, fn handlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if b == nil || update == nil {
			return
		}
		c.dispatch(ctx, name, b, update, fn)
	}
}

func (c *Client) dispatch(ctx context.Context, name string, m messenger, update *models.Update, fn handlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			meta := extractUpdateMeta(update)
			logging.Apply(c.logger, logging.Context{UserID: meta.userID, ChatID: meta.chatID, Event: "telegram_handler_panic"}).
				WithFields(logging.Fields{
					"handler": name,
					"panic":   fmt.Sprint(r),
					"stack":   string(debug.Stack()),
				}).Error("telegram handler panicked")
		}
	}()

	fn(ctx, m, update)
}

type updateMeta struct {
	userID     int64
	username   string
	chatID     int64
	messageID  int
	text       string
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	if update == nil || update.Message == nil {
		return updateMeta{updateType: "unknown"}
	}

	msg := update.Message
	meta := updateMeta{
		chatID:     msg.Chat.ID,
		messageID:  msg.ID,
		text:       strings.TrimSpace(msg.Text),
		updateType: "message",
	}
	if msg.From != nil {
		meta.userID = msg.From.ID
		meta.username = msg.From.Username
	}

	return meta
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
