// Package backend submits notes to the external processing service and
// classifies the outcome of each call.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_note_logger_bot/internal/config"
	"tg_note_logger_bot/internal/domain"
	"tg_note_logger_bot/internal/logging"
)

const (
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	headerBotSecret   = "X-Bot-Secret"
	contentTypeJSON   = "application/json"

	maxResponseBytes = 1 << 20
)

// newRequestID is overridable for tests.
var newRequestID = func() string {
	return uuid.NewString()
}

// Client owns the long-lived HTTP client used for every note submission.
type Client struct {
	http     *http.Client
	endpoint string
	secret   string
	format   string
	logger   *logrus.Entry
}

// noRedirect hands 3xx responses back to the caller so a note is never
// re-sent to another location.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The configured timeout
// and the no-redirect policy are applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a backend client from the validated configuration.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BackendNoteURL) == "" {
		return nil, errors.New("backend note url is required")
	}
	if cfg.BackendTimeout <= 0 {
		return nil, errors.New("backend timeout must be greater than 0")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		http:     &http.Client{},
		endpoint: cfg.BackendNoteURL,
		secret:   cfg.BackendSecret,
		format:   cfg.BackendPayload,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = cfg.BackendTimeout
	c.http.CheckRedirect = noRedirect

	if _, err := encodePayload(c.format, domain.Note{}); err != nil {
		return nil, err
	}

	return c, nil
}

// Submit sends the note with exactly one POST and classifies the outcome.
// It never retries.
func (c *Client) Submit(ctx context.Context, note domain.Note) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	requestID := newRequestID()
	started := time.Now()

	result := c.submit(ctx, requestID, note)
	result.RequestID = requestID
	result.Duration = time.Since(started)

	c.logger.WithFields(logging.Fields{
		"event":       "backend_request",
		"request_id":  requestID,
		"outcome":     result.Kind.String(),
		"status_code": result.StatusCode,
		"duration_ms": result.Duration.Milliseconds(),
	}).Debug("backend request finished")

	return result
}

func (c *Client) submit(ctx context.Context, requestID string, note domain.Note) Result {
	body, err := encodePayload(c.format, note)
	if err != nil {
		return InvalidResponse(fmt.Errorf("encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return InvalidResponse(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerRequestID, requestID)
	if c.secret != "" {
		req.Header.Set(headerBotSecret, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Timeout(err)
		}
		return NetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return Timeout(err)
		}
		return NetworkError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return BackendError(resp.StatusCode, errorDetail(raw))
	}

	decoded, err := decodeResponse(raw)
	if err != nil {
		result := InvalidResponse(fmt.Errorf("decode response: %w", err))
		result.StatusCode = resp.StatusCode
		return result
	}

	result := Success(decoded)
	result.StatusCode = resp.StatusCode
	return result
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}

	c.http.CloseIdleConnections()
	c.logger.WithField("event", "backend_client_closed").Info("backend client released")
}

// errorDetail extracts the "error" member of a JSON error body. Non-string
// values are returned as compact JSON; anything else yields "".
func errorDetail(raw []byte) string {
	members, err := decodeObject(raw)
	if err != nil {
		return ""
	}
	return textValue(members["error"])
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
