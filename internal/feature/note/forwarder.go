// Package note forwards free-text notes to the processing backend and turns
// the classified result into a reply.
package note

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"tg_note_logger_bot/internal/backend"
	"tg_note_logger_bot/internal/domain"
	"tg_note_logger_bot/internal/logging"
)

const (
	journalTimeout = 3 * time.Second
	logPreviewLen  = 30
)

type submitter interface {
	Submit(ctx context.Context, note domain.Note) backend.Result
}

type journal interface {
	Record(ctx context.Context, submission domain.Submission) error
}

// Outcome is what the transport layer needs to answer the user.
type Outcome struct {
	Reply  string
	Result backend.Result
}

// Forwarder submits notes one at a time per call; it holds no per-note state.
type Forwarder struct {
	backend submitter
	journal journal
	logger  *logrus.Entry
	now     func() time.Time
}

// Option customizes a Forwarder.
type Option func(*Forwarder)

// WithJournal records every submission outcome.
func WithJournal(j journal) Option {
	return func(f *Forwarder) {
		f.journal = j
	}
}

// NewForwarder constructs a Forwarder for the given backend.
func NewForwarder(b submitter, logger *logrus.Entry, opts ...Option) (*Forwarder, error) {
	if b == nil {
		return nil, errors.New("backend is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	f := &Forwarder{
		backend: b,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Forward submits the note and returns the reply for the user. Invalid notes
// and backend failures both produce a reply; nothing is retried.
func (f *Forwarder) Forward(ctx context.Context, n domain.Note) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.Apply(f.logger, logging.Context{UserID: n.UserID, ChatID: n.ChatID})

	if err := n.Validate(); err != nil {
		logger.WithField("event", "note_rejected").WithError(err).Warn("note not forwarded")
		result := backend.InvalidResponse(err)
		return Outcome{Reply: FormatReply(result), Result: result}
	}

	logger.WithFields(logging.Fields{
		"event":    "note_received",
		"username": n.Username,
		"preview":  preview(n.Text),
	}).Info("received note for processing")

	result := f.backend.Submit(ctx, n)
	logResult(logging.Apply(logger, logging.Context{RequestID: result.RequestID}), result)

	f.record(ctx, n, result)

	return Outcome{Reply: FormatReply(result), Result: result}
}

func (f *Forwarder) record(ctx context.Context, n domain.Note, result backend.Result) {
	if f.journal == nil || result.RequestID == "" {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	err := f.journal.Record(recordCtx, domain.Submission{
		RequestID:  result.RequestID,
		UserID:     n.UserID,
		ChatID:     n.ChatID,
		Outcome:    result.Kind.String(),
		StatusCode: result.StatusCode,
		DurationMS: result.Duration.Milliseconds(),
		TextLength: utf8.RuneCountInString(n.Text),
		CreatedAt:  f.now().UTC(),
	})
	if err != nil {
		f.logger.WithFields(logging.Fields{
			"event":      "journal_error",
			"request_id": result.RequestID,
			"user_id":    n.UserID,
		}).WithError(err).Warn("failed to record note submission")
	}
}

func logResult(logger *logrus.Entry, result backend.Result) {
	fields := logging.Fields{
		"outcome":     result.Kind.String(),
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.StatusCode != 0 {
		fields["status_code"] = result.StatusCode
	}

	switch result.Kind {
	case backend.KindSuccess:
		fields["event"] = "note_processed"
		fields["mood"] = result.Response.Mood
		fields["health_count"] = result.Response.HealthCount
		fields["activity_count"] = result.Response.ActivityCount
		logger.WithFields(fields).Info("backend processed note")
	case backend.KindBackendError:
		fields["event"] = "note_backend_error"
		fields["detail"] = result.Detail
		logger.WithFields(fields).Error("backend rejected note")
	case backend.KindTimeout, backend.KindNetworkError:
		fields["event"] = "note_network_error"
		logger.WithFields(fields).WithError(result.Err).Error("backend unreachable")
	default:
		fields["event"] = "note_unexpected_error"
		logger.WithFields(fields).WithError(result.Err).Error("unexpected error processing note")
	}
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= logPreviewLen {
		return text
	}
	return string([]rune(text)[:logPreviewLen])
}
