package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes for expected alternate outcomes. These are surfaced to the
// acting user with an actionable message and are never retried automatically.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeStaleState        = "STALE_STATE"
	CodeItemUnavailable   = "ITEM_UNAVAILABLE"
	CodeReservationLost   = "RESERVATION_MISMATCH"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeDeliveryFailed    = "NOTIFICATION_DELIVERY_FAILED"
	CodeExpiredAction     = "EXPIRED_ACTION"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewInvalidTransition signals the requested status edge does not exist or
// its precondition was never satisfied.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

// NewStaleState signals another actor already moved the record past the
// state the caller observed. Callers must re-render from current state.
func NewStaleState(message string, details map[string]any) error {
	return NewDomainError(CodeStaleState, message, http.StatusConflict, details)
}

// NewItemUnavailable signals a lost reservation race or an unsellable item.
func NewItemUnavailable(message string, details map[string]any) error {
	return NewDomainError(CodeItemUnavailable, message, http.StatusConflict, details)
}

// NewReservationMismatch signals the caller is not the recorded holder.
func NewReservationMismatch(message string, details map[string]any) error {
	return NewDomainError(CodeReservationLost, message, http.StatusConflict, details)
}

// NewPermissionDenied signals a role or ownership check failed.
func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewExpiredAction signals a conversational action token is gone. Always
// benign: handlers log at debug level and return without a user message.
func NewExpiredAction() error {
	return NewDomainError(CodeExpiredAction, "action no longer available", http.StatusGone, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsBenign reports whether err is an expired-action outcome that must be
// swallowed rather than surfaced.
func IsBenign(err error) bool {
	return HasCode(err, CodeExpiredAction)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
