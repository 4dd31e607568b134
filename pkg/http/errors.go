package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in AppError.Code. Validation failures use
// "ERR_" + the upper-cased validator tag instead.
const (
	CodeNotFound     = "ERR_NOT_FOUND"
	CodeBadRequest   = "ERR_BAD_REQUEST"
	CodeLimitReached = "ERR_LIMIT_REACHED"
	CodeInternal     = "ERR_INTERNAL"
)

// AppError is an error that knows its HTTP status. It is written as one entry
// of the response data.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates an error with the given code and status.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithParam attaches a value the client can use to render the message, for
// example the id of a missing strategy.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithField names the offending request field.
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithError keeps the cause for logs. It is never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

// ConflictError reports a request refused because of current state, such as
// the strategy limit.
func ConflictError(message string) *AppError {
	return NewAppError(CodeLimitReached, "", message, http.StatusConflict)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}
