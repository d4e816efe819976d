package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	redactedSuffix     = "...redacted"
	tokenVisiblePrefix = 4
)

// FormatRedacted renders the resolved configuration with secrets masked so it
// can be printed by --config-only or attached to support requests.
func FormatRedacted(cfg Config) string {
	lines := []string{
		fmt.Sprintf("app_env: %s", cfg.AppEnv),
		fmt.Sprintf("log_level: %s", cfg.LogLevel),
		fmt.Sprintf("http_port: %d", cfg.HTTPPort),
		fmt.Sprintf("telegram_token: %s", maskSecret(cfg.TelegramToken)),
		fmt.Sprintf("mini_app_url: %s", cfg.MiniAppURL),
		fmt.Sprintf("backend_note_url: %s", redactURL(cfg.BackendNoteURL)),
		fmt.Sprintf("backend_secret: %s", presence(cfg.BackendSecret)),
		fmt.Sprintf("backend_timeout: %s", cfg.BackendTimeout),
		fmt.Sprintf("backend_payload: %s", cfg.BackendPayload),
		fmt.Sprintf("processing_notice: %t", cfg.ProcessingNotice),
		fmt.Sprintf("bot_owner: %s", ownerString(cfg.BotOwnerID)),
	}

	if cfg.PersistenceEnabled() {
		lines = append(lines,
			fmt.Sprintf("mongo_uri: %s", redactURL(cfg.MongoURI)),
			fmt.Sprintf("mongo_db: %s", cfg.MongoDB),
		)
	} else {
		lines = append(lines, "mongo_uri: (disabled)")
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= tokenVisiblePrefix {
		return "redacted"
	}

	return value[:tokenVisiblePrefix] + redactedSuffix
}

func presence(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "redacted"
}

func ownerString(ownerID int64) string {
	if ownerID == 0 {
		return "(unset)"
	}
	return fmt.Sprintf("%d", ownerID)
}

// redactURL strips userinfo from connection strings; unparsable values are
// hidden entirely rather than echoed back.
func redactURL(raw string) string {
	if raw == "" {
		return "(unset)"
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "redacted"
	}

	parsed.User = nil
	return parsed.String()
}
