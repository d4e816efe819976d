package note

import (
	"strconv"
	"strings"

	"tg_note_logger_bot/internal/backend"
)

// User-facing replies.
const (
	ReplyProcessing   = "🤖 Processing your note with AI, please wait a moment..."
	ReplyProcessed    = "📝 Note processed!"
	ReplyNetworkError = "⚠️ Network error: Could not connect to the AI processing server. Please try again later."
	ReplyUnexpected   = "⚠️ An unexpected error occurred while processing your note."

	replyErrorPrefix   = "⚠️ Error processing note: "
	defaultErrorDetail = "Could not process note."
)

// FormatReply maps a backend result to the text sent back to the user.
func FormatReply(result backend.Result) string {
	switch result.Kind {
	case backend.KindSuccess:
		return formatSuccess(result.Response)
	case backend.KindBackendError:
		detail := strings.TrimSpace(result.Detail)
		if detail == "" {
			detail = defaultErrorDetail
		}
		return replyErrorPrefix + detail
	case backend.KindTimeout, backend.KindNetworkError:
		return ReplyNetworkError
	default:
		return ReplyUnexpected
	}
}

func formatSuccess(resp backend.Response) string {
	parts := []string{ReplyProcessed}

	if mood := strings.TrimSpace(resp.Mood); mood != "" {
		parts = append(parts, "Mood: "+mood)
	}
	if resp.HealthCount > 0 {
		parts = append(parts, formatCount(resp.HealthCount)+" health item(s) logged.")
	}
	if resp.ActivityCount > 0 {
		parts = append(parts, formatCount(resp.ActivityCount)+" activit(y/ies) logged.")
	}
	if msg := strings.TrimSpace(resp.Message); msg != "" {
		parts = append(parts, msg)
	}

	return strings.Join(parts, "\n")
}

// formatCount prints whole counts without a fractional part.
func formatCount(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
