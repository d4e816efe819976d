// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken    = "TELEGRAM_TOKEN"
	KeyMiniAppURL       = "MINI_APP_URL"
	KeyBackendNoteURL   = "BACKEND_NOTE_URL"
	KeyBackendSecret    = "BACKEND_SECRET"
	KeyBackendTimeout   = "BACKEND_TIMEOUT"
	KeyBackendPayload   = "BACKEND_PAYLOAD"
	KeyProcessingNotice = "PROCESSING_NOTICE"
	KeyBotOwner         = "BOT_OWNER"
	KeyMongoURI         = "MONGO_URI"
	KeyMongoDB          = "MONGO_DB"
	KeyAppEnv           = "APP_ENV"
	KeyLogLevel         = "LOG_LEVEL"
	KeyHTTPPort         = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Allowed backend payload layouts.
	PayloadNote   = "note"
	PayloadLegacy = "legacy"

	// Defaults for optional settings.
	DefaultAppEnv           = EnvProduction
	DefaultLogLevel         = "info"
	DefaultHTTPPort         = 8080
	DefaultBackendTimeout   = 15 * time.Second
	DefaultBackendPayload   = PayloadNote
	DefaultProcessingNotice = true

	// Recommended database names by environment.
	DefaultMongoDBProd = "note_logger"
	DefaultMongoDBDev  = "note_logger_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyMiniAppURL,
		Example:     "https://example.github.io/note-logger/",
		Required:    true,
		Description: "Web app opened by the /start button.",
		Notes:       "Telegram only accepts https web app URLs.",
	},
	{
		Key:         KeyBackendNoteURL,
		Example:     "https://backend.example.com/api/process_note/",
		Required:    true,
		Description: "Endpoint receiving one POST per forwarded note.",
	},
	{
		Key:         KeyBackendSecret,
		Example:     "shared-secret",
		Description: "Shared secret sent to the backend as X-Bot-Secret.",
	},
	{
		Key:         KeyBackendTimeout,
		Example:     DefaultBackendTimeout.String(),
		Default:     DefaultBackendTimeout.String(),
		Description: "Timeout for a single backend request.",
	},
	{
		Key:         KeyBackendPayload,
		Example:     PayloadNote + " / " + PayloadLegacy,
		Default:     DefaultBackendPayload,
		Description: "JSON layout of the note payload.",
		Notes:       PayloadLegacy + " sends {message_id, user_id, username, text}.",
	},
	{
		Key:         KeyProcessingNotice,
		Example:     "true",
		Default:     strconv.FormatBool(DefaultProcessingNotice),
		Description: "Send an interim notice while the backend processes a note.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Description: "Telegram user_id allowed to run /stats.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string; enables the user registry and submission journal.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Description: "MongoDB database name.",
		Notes:       "Required when " + KeyMongoURI + " is set.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken    string
	MiniAppURL       string
	BackendNoteURL   string
	BackendSecret    string
	BackendTimeout   time.Duration
	BackendPayload   string
	ProcessingNotice bool
	BotOwnerID       int64
	MongoURI         string
	MongoDB          string
	AppEnv           string
	LogLevel         string
	HTTPPort         int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:           firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:    strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MiniAppURL:       strings.TrimSpace(os.Getenv(KeyMiniAppURL)),
		BackendNoteURL:   strings.TrimSpace(os.Getenv(KeyBackendNoteURL)),
		BackendSecret:    strings.TrimSpace(os.Getenv(KeyBackendSecret)),
		BackendTimeout:   DefaultBackendTimeout,
		BackendPayload:   firstNonEmpty(normalizeEnv(os.Getenv(KeyBackendPayload)), DefaultBackendPayload),
		ProcessingNotice: DefaultProcessingNotice,
		MongoURI:         strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:          strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:         firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:         DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}
	if cfg.MiniAppURL == "" {
		missing = append(missing, KeyMiniAppURL)
	}
	if cfg.BackendNoteURL == "" {
		missing = append(missing, KeyBackendNoteURL)
	}
	if cfg.MongoURI != "" && cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if err := validateURL(KeyMiniAppURL, cfg.MiniAppURL, "https"); err != nil {
		return Config{}, err
	}
	if err := validateURL(KeyBackendNoteURL, cfg.BackendNoteURL, "http", "https"); err != nil {
		return Config{}, err
	}

	if cfg.BackendPayload != PayloadNote && cfg.BackendPayload != PayloadLegacy {
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyBackendPayload, PayloadNote, PayloadLegacy)
	}

	if raw := strings.TrimSpace(os.Getenv(KeyBackendTimeout)); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBackendTimeout, parseErr)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyBackendTimeout)
		}
		cfg.BackendTimeout = timeout
	}

	if raw := strings.TrimSpace(os.Getenv(KeyProcessingNotice)); raw != "" {
		enabled, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyProcessingNotice, parseErr)
		}
		cfg.ProcessingNotice = enabled
	}

	if ownerRaw := strings.TrimSpace(os.Getenv(KeyBotOwner)); ownerRaw != "" {
		ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
		}
		cfg.BotOwnerID = ownerID
	}

	if cfg.MongoURI != "" && !isMongoURI(cfg.MongoURI) {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// PersistenceEnabled reports whether a MongoDB deployment is configured.
func (c Config) PersistenceEnabled() bool {
	return c.MongoURI != ""
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateURL(key, raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: host is required", key)
	}

	scheme := strings.ToLower(parsed.Scheme)
	for _, allowed := range schemes {
		if scheme == allowed {
			return nil
		}
	}

	return fmt.Errorf("invalid %s: scheme must be one of %s", key, strings.Join(schemes, ", "))
}

func isMongoURI(value string) bool {
	return strings.HasPrefix(value, "mongodb://") || strings.HasPrefix(value, "mongodb+srv://")
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
