// ABOUTME: Typed error kinds decoded once at the HTTP boundary
// ABOUTME: Screens branch on Kind instead of matching raw backend strings

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind is the closed set of failures a caller can branch on
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInsufficientCredits
	KindQuotaExceeded
	KindDailyLimit
	KindMissingBatchData
	KindValidation
	KindRateLimited
	KindServer
	KindNetwork
	KindCanceled
	KindTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindUnauthorized:        "unauthorized",
	KindForbidden:           "forbidden",
	KindNotFound:            "not_found",
	KindInsufficientCredits: "insufficient_credits",
	KindQuotaExceeded:       "quota_exceeded",
	KindDailyLimit:          "daily_limit",
	KindMissingBatchData:    "missing_batch_data",
	KindValidation:          "validation",
	KindRateLimited:         "rate_limited",
	KindServer:              "server",
	KindNetwork:             "network",
	KindCanceled:            "canceled",
	KindTimeout:             "timeout",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Message is the fixed user-facing text for the kind
func (k Kind) Message() string {
	switch k {
	case KindUnauthorized:
		return "Your session has expired. Please log in again."
	case KindForbidden:
		return "You do not have access to this resource."
	case KindNotFound:
		return "The requested item could not be found."
	case KindInsufficientCredits:
		return "Not enough credits. Purchase more credits to continue."
	case KindQuotaExceeded:
		return "Your plan quota has been used up."
	case KindDailyLimit:
		return "Daily limit reached. Please try again tomorrow."
	case KindMissingBatchData:
		return "There are no collected reviews to analyze yet."
	case KindValidation:
		return "Some of the information entered is invalid."
	case KindRateLimited:
		return "Too many requests. Please wait a moment and retry."
	case KindServer:
		return "The server ran into a problem. Please retry."
	case KindNetwork:
		return "Cannot reach the server. Check your connection and retry."
	case KindCanceled:
		return "The request was canceled."
	case KindTimeout:
		return "The request timed out. Please retry."
	default:
		return "Something went wrong. Please retry."
	}
}

// APIError is every error returned by Client request methods
type APIError struct {
	StatusCode int    // zero for transport failures
	Kind       Kind
	Code       string // backend error code, if any
	Message    string // backend message, if any
	RequestID  string
	Err        error // transport cause, if any
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Message()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend error (%d %s): %s", e.StatusCode, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown for non-API errors
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an APIError of kind k
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// UserMessage returns the fixed message for err's kind
func UserMessage(err error) string {
	return KindOf(err).Message()
}

// errorPayload accepts the shapes the backend uses for errors:
// {"error": "..."}, {"code": "...", "message": "..."} and
// {"error": {"code": "...", "message": "..."}}
type errorPayload struct {
	Error   json.RawMessage `json:"error"`
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Details string          `json:"details"`
}

func parseError(status int, body []byte, requestID string) *APIError {
	e := &APIError{StatusCode: status, RequestID: requestID}

	var p errorPayload
	if err := json.Unmarshal(body, &p); err == nil {
		e.Code = rawString(p.Code)
		e.Message = p.Message

		if len(p.Error) > 0 {
			var nested struct {
				Code    json.RawMessage `json:"code"`
				Message string          `json:"message"`
			}
			if s := rawString(p.Error); s != "" {
				if e.Message == "" {
					e.Message = s
				}
			} else if json.Unmarshal(p.Error, &nested) == nil {
				if e.Code == "" {
					e.Code = rawString(nested.Code)
				}
				if e.Message == "" {
					e.Message = nested.Message
				}
			}
		}
		if e.Message == "" {
			e.Message = p.Details
		}
	} else if len(body) > 0 && len(body) < 512 {
		e.Message = strings.TrimSpace(string(body))
	}

	e.Kind = classify(status, e.Code, e.Message)
	return e
}

// rawString returns a JSON string or number as text, "" otherwise
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// classify maps status and backend code to a Kind. Domain codes win over the
// status. Only a 401 is an authorization failure; token codes on any other
// status fall back to the status.
func classify(status int, code, message string) Kind {
	if status == http.StatusUnauthorized {
		return KindUnauthorized
	}
	if k, ok := kindFromCode(code); ok && k != KindUnauthorized {
		return k
	}
	// Some endpoints only put the code in the message field
	if k, ok := kindFromCode(message); ok && k != KindUnauthorized {
		return k
	}

	switch {
	case status == http.StatusPaymentRequired:
		return KindInsufficientCredits
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

func kindFromCode(code string) (Kind, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return KindUnknown, false
	}
	c = strings.NewReplacer("-", "_", " ", "_").Replace(c)
	if _, err := strconv.Atoi(c); err == nil {
		return KindUnknown, false
	}

	switch {
	case strings.Contains(c, "INSUFFICIENT_CREDIT"), strings.Contains(c, "NOT_ENOUGH_CREDIT"):
		return KindInsufficientCredits, true
	case strings.Contains(c, "QUOTA"):
		return KindQuotaExceeded, true
	case strings.Contains(c, "DAILY_LIMIT"):
		return KindDailyLimit, true
	case strings.Contains(c, "MISSING_BATCH_DATA"), strings.Contains(c, "NO_BATCH_DATA"):
		return KindMissingBatchData, true
	case c == "UNAUTHORIZED", c == "INVALID_TOKEN", c == "TOKEN_EXPIRED":
		return KindUnauthorized, true
	case c == "FORBIDDEN":
		return KindForbidden, true
	case c == "NOT_FOUND":
		return KindNotFound, true
	case c == "VALIDATION_ERROR", c == "INVALID_INPUT", c == "BAD_REQUEST":
		return KindValidation, true
	case c == "RATE_LIMITED", c == "TOO_MANY_REQUESTS":
		return KindRateLimited, true
	}
	return KindUnknown, false
}
