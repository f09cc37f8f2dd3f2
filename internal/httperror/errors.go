// Package httperror maps service errors onto the JSON error envelope.
package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/gemini"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/guard"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/settings"
	"github.com/nocodeuchun-ctrl/Avto-bot/internal/usage"
)

// ErrorCode is the machine-readable error_code value.
type ErrorCode string

const (
	ErrorCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeHTTPRateLimit ErrorCode = "HTTP_RATE_LIMIT"
	ErrorCodeLLM           ErrorCode = "LLM_ERROR"
	ErrorCodeLLMTimeout    ErrorCode = "LLM_TIMEOUT"
	ErrorCodeLLMModel      ErrorCode = "LLM_MODEL_ERROR"
	ErrorCodeGuardBlocked  ErrorCode = "GUARD_BLOCKED"
	ErrorCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrorCodeSettings      ErrorCode = "SETTINGS_ERROR"
	ErrorCodeUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrorResponse is the error body every endpoint renders.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	RequestID *string        `json:"request_id"`
	Details   map[string]any `json:"details"`
}

// Error carries status and code alongside the message.
type Error struct {
	Code    ErrorCode
	Status  int
	Type    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Response converts err into a status and body.
func Response(err error, requestID string) (int, ErrorResponse) {
	apiErr := FromError(err)
	if apiErr == nil {
		apiErr = NewInternalError("unknown error")
	}

	var requestIDPtr *string
	if requestID != "" {
		requestIDPtr = &requestID
	}

	return apiErr.Status, ErrorResponse{
		ErrorCode: string(apiErr.Code),
		ErrorType: apiErr.Type,
		Message:   apiErr.Message,
		RequestID: requestIDPtr,
		Details:   apiErr.Details,
	}
}

// FromError maps known sentinel and typed errors; anything else is a 500.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var blocked *guard.BlockedError
	if errors.As(err, &blocked) {
		return NewGuardBlocked(blocked.Score, blocked.Threshold)
	}

	switch {
	case errors.Is(err, settings.ErrInvalidSettings):
		return NewSettingsError(err.Error())
	case errors.Is(err, usage.ErrDisabled):
		return NewUnavailable("Usage accounting is disabled")
	case errors.Is(err, settings.ErrStoreRequired):
		return NewUnavailable("Settings store unavailable")
	case errors.Is(err, gemini.ErrInvalidModel):
		return NewLLMModelError("Invalid model")
	case errors.Is(err, gemini.ErrMissingAPIKey):
		return NewLLMError("Missing Gemini API key", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return NewLLMTimeoutError("LLM request timed out")
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(err)
	}

	return NewInternalError(err.Error())
}

// NewInternalError builds a 500.
func NewInternalError(message string) *Error {
	return &Error{
		Code:    ErrorCodeInternal,
		Status:  http.StatusInternalServerError,
		Type:    "InternalError",
		Message: message,
	}
}

// NewValidationError builds a 422 listing the offending fields.
func NewValidationError(err error) *Error {
	return &Error{
		Code:    ErrorCodeValidation,
		Status:  http.StatusUnprocessableEntity,
		Type:    "ValidationError",
		Message: "Input validation failed",
		Details: validationDetails(err),
	}
}

// NewMissingField builds a 400 for a required but blank field.
func NewMissingField(field string) *Error {
	return &Error{
		Code:    ErrorCodeMissingField,
		Status:  http.StatusBadRequest,
		Type:    "MissingFieldError",
		Message: fmt.Sprintf("Field '%s' required", field),
		Details: map[string]any{"field": field},
	}
}

// NewInvalidInput builds a 400.
func NewInvalidInput(message string) *Error {
	return &Error{
		Code:    ErrorCodeInvalidInput,
		Status:  http.StatusBadRequest,
		Type:    "InvalidInputError",
		Message: message,
	}
}

// NewUnauthorized builds a 401.
func NewUnauthorized(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Type:    "UnauthorizedError",
		Message: "Invalid API key",
		Details: details,
	}
}

// NewRateLimitExceeded builds a 429.
func NewRateLimitExceeded(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeHTTPRateLimit,
		Status:  http.StatusTooManyRequests,
		Type:    "HTTPRateLimitExceededError",
		Message: "Rate limit exceeded",
		Details: details,
	}
}

// NewGuardBlocked builds a 400 for input the injection guard rejected.
func NewGuardBlocked(score float64, threshold float64) *Error {
	return &Error{
		Code:    ErrorCodeGuardBlocked,
		Status:  http.StatusBadRequest,
		Type:    "GuardBlockedError",
		Message: fmt.Sprintf("Input blocked by injection guard (score=%.2f, threshold=%.2f)", score, threshold),
		Details: map[string]any{"score": score, "threshold": threshold},
	}
}

// NewSettingsError builds a 400 for rejected settings.
func NewSettingsError(message string) *Error {
	return &Error{
		Code:    ErrorCodeSettings,
		Status:  http.StatusBadRequest,
		Type:    "SettingsError",
		Message: message,
	}
}

// NewUnavailable builds a 503 for a disabled or unreachable dependency.
func NewUnavailable(message string) *Error {
	return &Error{
		Code:    ErrorCodeUnavailable,
		Status:  http.StatusServiceUnavailable,
		Type:    "ServiceUnavailableError",
		Message: message,
	}
}

// NewLLMModelError builds a 400.
func NewLLMModelError(message string) *Error {
	return &Error{
		Code:    ErrorCodeLLMModel,
		Status:  http.StatusBadRequest,
		Type:    "LLMModelError",
		Message: message,
	}
}

// NewLLMTimeoutError builds a 504.
func NewLLMTimeoutError(message string) *Error {
	return &Error{
		Code:    ErrorCodeLLMTimeout,
		Status:  http.StatusGatewayTimeout,
		Type:    "LLMTimeoutError",
		Message: message,
	}
}

// NewLLMError builds an LLM error with the given status.
func NewLLMError(message string, status int) *Error {
	return &Error{
		Code:    ErrorCodeLLM,
		Status:  status,
		Type:    "LLMError",
		Message: message,
	}
}

// FieldError describes one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func validationDetails(err error) map[string]any {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))
		for _, validationErr := range validationErrors {
			fields = append(fields, FieldError{
				Field:   validationErr.Field(),
				Message: validationErr.Error(),
				Value:   validationErr.Value(),
			})
		}
		return map[string]any{"errors": fields}
	}

	return map[string]any{
		"errors": []FieldError{{Field: "body", Message: err.Error()}},
	}
}
