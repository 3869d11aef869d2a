// Package apperr defines the error taxonomy shared by the sales pipeline,
// the action handlers and the workflow engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is implemented by every error in this package
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError carries the common fields of all application errors
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
	Cause      error  `json:"-"`
}

func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

// ActionInputError is returned when an action is missing a required input
type ActionInputError struct {
	BaseError
	Action string
	Field  string
}

func NewActionInputError(action, field, message string) *ActionInputError {
	return &ActionInputError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s: %s", action, message),
			StatusCode: http.StatusUnprocessableEntity,
			ErrorCode:  "ACTION_INPUT_ERROR",
		},
		Action: action,
		Field:  field,
	}
}

// EntityNotFoundError is returned for unknown workflow or document ids
type EntityNotFoundError struct {
	BaseError
	Entity string
	ID     int64
}

func NewEntityNotFoundError(entity string, id int64) *EntityNotFoundError {
	return &EntityNotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s %d not found", entity, id),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Entity: entity,
		ID:     id,
	}
}

// NotificationDeliveryError wraps a failed send on the notification sink.
// Callers log it and carry on.
type NotificationDeliveryError struct {
	BaseError
	Channel   string
	Recipient string
}

func NewNotificationDeliveryError(channel, recipient string, cause error) *NotificationDeliveryError {
	return &NotificationDeliveryError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s delivery to %s failed", channel, recipient),
			StatusCode: http.StatusBadGateway,
			ErrorCode:  "NOTIFICATION_FAILED",
			Cause:      cause,
		},
		Channel:   channel,
		Recipient: recipient,
	}
}

// PersistenceError wraps a repository failure
type PersistenceError struct {
	BaseError
	Op string
}

func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("persistence failure during %s", op),
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "PERSISTENCE_ERROR",
			Cause:      cause,
		},
		Op: op,
	}
}

// ValidationError is returned for malformed requests and definitions
type ValidationError struct {
	BaseError
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Field: field,
	}
}

// ConflictError is returned when an operation would violate a uniqueness rule
type ConflictError struct {
	BaseError
	Resource string
}

func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusConflict,
			ErrorCode:  "CONFLICT",
		},
		Resource: resource,
	}
}

// InvalidTransitionError is returned when a document is asked to move to a
// status its lifecycle does not allow from the current one
type InvalidTransitionError struct {
	BaseError
	Entity string
	From   string
	Action string
}

func NewInvalidTransitionError(entity, from, action string, cause error) *InvalidTransitionError {
	return &InvalidTransitionError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("cannot %s %s in status %s", action, entity, from),
			StatusCode: http.StatusConflict,
			ErrorCode:  "INVALID_TRANSITION",
			Cause:      cause,
		},
		Entity: entity,
		From:   from,
		Action: action,
	}
}

// IsNotFound reports whether err is or wraps an EntityNotFoundError
func IsNotFound(err error) bool {
	var nf *EntityNotFoundError
	return errors.As(err, &nf)
}

// IsActionInput reports whether err is or wraps an ActionInputError
func IsActionInput(err error) bool {
	var ai *ActionInputError
	return errors.As(err, &ai)
}

// ToHTTP converts any error into a status code and response body
func ToHTTP(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	var ae AppError
	if errors.As(err, &ae) {
		msg := ae.Error()
		// Do not leak driver messages to clients
		var pe *PersistenceError
		if errors.As(err, &pe) {
			msg = pe.Message
		}
		return ae.HTTPStatus(), map[string]interface{}{
			"code":    ae.Code(),
			"message": msg,
		}
	}

	return http.StatusInternalServerError, map[string]interface{}{
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	}
}
