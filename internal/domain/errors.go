package domain

import (
	"errors"
	"fmt"
)

// Error classes. Specific errors wrap one of these so callers can classify them
// with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// ValidationError carries a message meant for the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

var (
	ErrCartLineNotFound  = &NotFoundError{Entity: "cart item"}
	ErrOrderNotFound     = &NotFoundError{Entity: "order"}
	ErrEmptyCart         = NewValidationError("cart", "cart is empty")
	ErrInvalidPhone      = NewValidationError("phone", "phone must be 10 digits starting with 09")
	ErrIllegalTransition = fmt.Errorf("%w: illegal order status transition", ErrConflict)
)
