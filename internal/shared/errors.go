package shared

import (
	"errors"
	"fmt"
)

// Error kinds shared by every module. Domain errors wrap exactly one of them.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrReferential       = errors.New("referenced by other records")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPersistence       = errors.New("persistence failure")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
)

// DomainError carries a human readable message on top of an error kind.
type DomainError struct {
	Kind    error
	Message string
}

// NewError builds a DomainError of the given kind.
func NewError(kind error, message string) error {
	return &DomainError{Kind: kind, Message: message}
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

// Persistence wraps an unexpected store error with a domain message unless it
// is already a domain error.
func Persistence(base error, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return fmt.Errorf("%w: %w", base, err)
}

// UserSafeMessage extracts a message fit for display.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "Something went wrong, please try again."
}
