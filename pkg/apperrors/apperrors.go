// Package apperrors defines the typed error taxonomy shared across the
// engine and its HTTP boundary, grounded on the original implementation's
// shared/error and shared/error_codes modules.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError for HTTP status mapping and retry policy.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindIntegrity         Kind = "integrity"
	KindDegraded          Kind = "degraded"
	KindUpstreamExecution Kind = "upstream_execution"
	KindLayerLogic        Kind = "layer_logic"
	KindInternal          Kind = "internal"
)

// AppError is the typed error carried across layer and HTTP boundaries.
// Code follows the DOMAIN_ACTION_REASON convention (e.g.
// "CHECKPOINT_ROLLBACK_NOT_CONFIRMED").
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	TestCaseID string // set for UpstreamExecution errors
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus maps a Kind to its response status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindIntegrity, KindDegraded, KindUpstreamExecution, KindLayerLogic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, cause error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Cause: cause}
}

func Validation(code, message string) *AppError { return New(KindValidation, code, message) }

func Unauthorized() *AppError {
	// Uniform, opaque message regardless of underlying cause (missing
	// header, malformed scheme, unknown token, expired session).
	return New(KindAuth, "AUTH_UNAUTHORIZED", "authentication failed")
}

func NotFound(code, message string) *AppError { return New(KindNotFound, code, message) }

func Conflict(code, message string) *AppError { return New(KindConflict, code, message) }

func Internal(code string, cause error) *AppError {
	return Wrap(KindInternal, code, "internal server error", cause)
}

// As is a thin re-export of errors.As for callers that only import this
// package, matching the original's habit of a single error-handling import.
func As(err error, target **AppError) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		*target = ae
		return true
	}
	return false
}

// IsRetriable classifies whether an error should be retried by the retry
// policy: network/timeout-shaped errors are retriable, validation/auth
// errors never are.
func IsRetriable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindValidation, KindAuth, KindNotFound, KindConflict:
			return false
		case KindUpstreamExecution:
			return true
		default:
			return false
		}
	}
	// Unclassified errors (e.g. raw network errors from an HTTP client
	// before they're wrapped) are treated as retriable.
	return true
}
