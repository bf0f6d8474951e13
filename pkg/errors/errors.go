package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusUnprocessableEntity)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrConflict           = NewError("CONFLICT", "duplicate message", http.StatusConflict)
	ErrUnauthorized       = NewError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
	ErrForbidden          = NewError("FORBIDDEN", "forbidden", http.StatusForbidden)
	ErrTimeout            = NewError("TIMEOUT", "operation timed out", http.StatusGatewayTimeout)
	ErrCancelled          = NewError("CANCELLED", "operation cancelled", 499)
	ErrServiceUnavailable = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
	ErrBadRequest         = NewError("BAD_REQUEST", "malformed request", http.StatusBadRequest)
	ErrRateLimited        = NewError("RATE_LIMITED", "too many requests", http.StatusTooManyRequests)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so sentinels survive WithCause
// and WithDetail copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	switch e.Code {
	case ErrTimeout.Code, ErrServiceUnavailable.Code, ErrRateLimited.Code, ErrInternal.Code:
		return true
	}
	return false
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}
	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}
	switch e.Code {
	case ErrValidation.Code, ErrNotFound.Code, ErrBadRequest.Code, ErrUnauthorized.Code, ErrForbidden.Code:
		return true
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	err := *e
	err.Details = details
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool   { return hasCode(err, ErrNotFound.Code) }
func IsValidation(err error) bool { return hasCode(err, ErrValidation.Code) }
func IsConflict(err error) bool   { return hasCode(err, ErrConflict.Code) }
func IsTimeout(err error) bool    { return hasCode(err, ErrTimeout.Code) }
func IsCancelled(err error) bool  { return hasCode(err, ErrCancelled.Code) }
func IsInternal(err error) bool   { return hasCode(err, ErrInternal.Code) }

func IsSecurity(err error) bool {
	return hasCode(err, ErrUnauthorized.Code) || hasCode(err, ErrForbidden.Code)
}

func ToHTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	appErr, ok := As(err)
	if !ok {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}
	if msg, ok := appErr.Details["message"].(string); ok && msg != "" {
		response["error"] = msg
	}

	details := make(map[string]interface{}, len(appErr.Details))
	for k, v := range appErr.Details {
		if k == "message" || k == "stack_trace" {
			continue
		}
		details[k] = v
	}
	if len(details) > 0 {
		response["details"] = details
	}

	return response
}
