// Package errors defines the failure taxonomy shared by the gateway, tracker,
// events router and HTTP surface. Every failure that crosses a package boundary
// is an *AppError, so callers branch on a code instead of matching strings.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies an AppError.
type ErrorCode string

// Codes raised while talking to the backend or tracking jobs.
const (
	ErrCodeAuthentication ErrorCode = "authentication"  // backend rejected the credential (401)
	ErrCodeClient         ErrorCode = "client"          // any other 4xx; retrying will not help
	ErrCodeServer         ErrorCode = "server"          // 5xx or network failure after retries
	ErrCodePollingStalled ErrorCode = "polling_stalled" // too many consecutive failed polls
)

// Codes raised while routing lifecycle events.
const (
	ErrCodeUnroutableEvent  ErrorCode = "unroutable_event"
	ErrCodeMalformedPayload ErrorCode = "malformed_payload"
	ErrCodeDispatch         ErrorCode = "dispatch"
)

// General purpose codes, also produced by MapDBError.
const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
)

// HTTPStatus is the status the HTTP surface answers with for c.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidation, ErrCodeUnroutableEvent, ErrCodeMalformedPayload:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeClient, ErrCodeServer, ErrCodeDispatch, ErrCodePollingStalled:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether an operation failing with c may succeed later.
func (c ErrorCode) Transient() bool {
	return c == ErrCodeServer || c == ErrCodeTimeout
}

// AppError is a coded failure. It wraps Cause for errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	// StatusCode is the backend's HTTP status; zero when nothing was received.
	StatusCode int
	Cause      error
	// Field names the offending input for single-field failures.
	Field string
	// Fields lists every offending input when there are several.
	Fields []string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// Detail is the uniform failure body returned to callers.
type Detail struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Detail returns the caller-facing view of e.
func (e *AppError) Detail() Detail {
	return Detail{Detail: e.Message, StatusCode: e.StatusCode}
}

func newError(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Authentication reports a rejected credential.
func Authentication(msg string) *AppError {
	e := newError(ErrCodeAuthentication, msg)
	e.StatusCode = http.StatusUnauthorized
	return e
}

// Client carries the detail of a non-401 4xx response.
func Client(status int, detail string) *AppError {
	e := newError(ErrCodeClient, detail)
	e.StatusCode = status
	return e
}

// Server reports a 5xx response, or a network failure when status is zero.
func Server(status int, detail string, cause error) *AppError {
	e := newError(ErrCodeServer, detail)
	e.StatusCode = status
	e.Cause = cause
	return e
}

func PollingStalled(jobRef string, failures uint32, cause error) *AppError {
	e := newError(ErrCodePollingStalled,
		fmt.Sprintf("polling stalled for %s after %d consecutive failures", jobRef, failures))
	e.Cause = cause
	return e
}

func UnroutableEvent(eventType string) *AppError {
	e := newError(ErrCodeUnroutableEvent, fmt.Sprintf("unroutable event_type %q", eventType))
	e.Field = "event_type"
	return e
}

// MalformedPayload names every missing or invalid payload field.
func MalformedPayload(eventType string, fields []string) *AppError {
	e := newError(ErrCodeMalformedPayload, fmt.Sprintf("malformed %s payload: missing required field(s): %s",
		eventType, strings.Join(fields, ", ")))
	e.Fields = append([]string(nil), fields...)
	return e
}

// Dispatch reports a message that could not be delivered to recipient.
func Dispatch(recipient string, cause error) *AppError {
	e := newError(ErrCodeDispatch, "deliver message to "+recipient)
	e.Field = recipient
	e.Cause = cause
	return e
}

func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func Validation(msg string) *AppError {
	return newError(ErrCodeValidation, msg)
}

func ValidationField(field, msg string) *AppError {
	e := newError(ErrCodeValidation, msg)
	e.Field = field
	return e
}

func Internal(msg string) *AppError {
	return newError(ErrCodeInternal, msg)
}

// Wrap attaches code and msg to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, msg string) *AppError {
	if err == nil {
		return nil
	}
	e := newError(code, msg)
	e.Cause = err
	return e
}

func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the outermost AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if e, ok := asAppError(err); ok {
		return e.Code
	}
	return ""
}

func asAppError(err error) (*AppError, bool) {
	var e *AppError
	ok := errors.As(err, &e)
	return e, ok
}

// HasCode reports whether err's chain holds an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	return code != "" && GetCode(err) == code
}

func IsAuthentication(err error) bool   { return HasCode(err, ErrCodeAuthentication) }
func IsClient(err error) bool           { return HasCode(err, ErrCodeClient) }
func IsServer(err error) bool           { return HasCode(err, ErrCodeServer) }
func IsPollingStalled(err error) bool   { return HasCode(err, ErrCodePollingStalled) }
func IsUnroutableEvent(err error) bool  { return HasCode(err, ErrCodeUnroutableEvent) }
func IsMalformedPayload(err error) bool { return HasCode(err, ErrCodeMalformedPayload) }
func IsDispatch(err error) bool         { return HasCode(err, ErrCodeDispatch) }
func IsNotFound(err error) bool         { return HasCode(err, ErrCodeNotFound) }
func IsConflict(err error) bool         { return HasCode(err, ErrCodeConflict) }
func IsValidation(err error) bool       { return HasCode(err, ErrCodeValidation) }
func IsTimeout(err error) bool          { return HasCode(err, ErrCodeTimeout) }
func IsCanceled(err error) bool         { return HasCode(err, ErrCodeCanceled) }

// IsTransient reports whether err may succeed on a later attempt.
func IsTransient(err error) bool {
	return GetCode(err).Transient()
}

// DetailOf normalises any error into the caller-facing shape.
func DetailOf(err error) Detail {
	if err == nil {
		return Detail{}
	}
	if e, ok := asAppError(err); ok {
		return e.Detail()
	}
	return Detail{Detail: err.Error()}
}
