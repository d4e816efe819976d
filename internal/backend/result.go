package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"tg_note_logger_bot/internal/domain"
)

// Kind tags the variant held by a Result.
type Kind int

const (
	// KindSuccess means the backend answered 2xx with a decodable JSON body.
	KindSuccess Kind = iota
	// KindBackendError means the backend answered with a non-2xx status.
	KindBackendError
	// KindTimeout means no answer arrived before the request timeout.
	KindTimeout
	// KindNetworkError covers every other transport failure.
	KindNetworkError
	// KindInvalidResponse covers payload encoding failures and undecodable 2xx bodies.
	KindInvalidResponse
)

// String returns the journal outcome name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return domain.OutcomeSuccess
	case KindBackendError:
		return domain.OutcomeBackendError
	case KindTimeout:
		return domain.OutcomeTimeout
	case KindNetworkError:
		return domain.OutcomeNetworkError
	default:
		return domain.OutcomeInvalidResponse
	}
}

// Response is the backend's JSON answer. Every member is optional and loosely
// typed: text members take any JSON value, counts take any number.
type Response struct {
	Mood          string
	HealthCount   float64
	ActivityCount float64
	Message       string
	Error         string
}

// decodeResponse reads a JSON object without enforcing member types. Only a
// body that is not a JSON object is an error.
func decodeResponse(raw []byte) (Response, error) {
	members, err := decodeObject(raw)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Mood:          textValue(members["mood"]),
		HealthCount:   countValue(members["health_count"]),
		ActivityCount: countValue(members["activity_count"]),
		Message:       textValue(members["message"]),
		Error:         textValue(members["error"]),
	}, nil
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, err
	}
	if members == nil {
		return nil, errors.New("response body is not a JSON object")
	}
	return members, nil
}

// textValue renders strings as-is and any other non-null value as compact JSON.
func textValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return ""
	}
	return compact.String()
}

// countValue accepts JSON numbers and numeric strings; anything else is 0.
func countValue(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0
		}
		if n, err = strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
			return 0
		}
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// Result is the outcome of a single submission. Only the fields relevant to
// Kind are populated: Response for KindSuccess, StatusCode and Detail for
// KindBackendError, Err for the remaining kinds.
type Result struct {
	Kind       Kind
	RequestID  string
	Response   Response
	StatusCode int
	Detail     string
	Err        error
	Duration   time.Duration
}

// Success builds a KindSuccess result.
func Success(resp Response) Result {
	return Result{Kind: KindSuccess, Response: resp}
}

// BackendError builds a KindBackendError result.
func BackendError(status int, detail string) Result {
	return Result{Kind: KindBackendError, StatusCode: status, Detail: detail}
}

// Timeout builds a KindTimeout result.
func Timeout(cause error) Result {
	return Result{Kind: KindTimeout, Err: cause}
}

// NetworkError builds a KindNetworkError result.
func NetworkError(cause error) Result {
	return Result{Kind: KindNetworkError, Err: cause}
}

// InvalidResponse builds a KindInvalidResponse result.
func InvalidResponse(cause error) Result {
	return Result{Kind: KindInvalidResponse, Err: cause}
}

// OK reports whether the backend processed the note.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}
