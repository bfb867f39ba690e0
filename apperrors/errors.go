package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrStorageUnavailable is returned whenever the storage gateway is not Ready.
var ErrStorageUnavailable = errors.New("storage unavailable")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: invalid field '%s' - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Entity, e.ID)
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Message)
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// Kind is the short label used in the "error" field of the response envelope.
func Kind(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "Validation error"
	case errors.As(err, &nf):
		return "Not found"
	case errors.As(err, &ce):
		return "Conflict"
	case errors.Is(err, ErrStorageUnavailable):
		return "Storage unavailable"
	default:
		return "Internal server error"
	}
}

// StatusCode maps an error onto the HTTP status of the public contract.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
