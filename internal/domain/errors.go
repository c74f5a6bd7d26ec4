package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrConflict            = errors.New("conflict")
)

// NotFoundError reports a missing entity, or one the caller may not see.
type NotFoundError struct {
	Entity string
}

func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type ValidationError struct {
	Message string
}

func Invalid(message string) error {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError reports a write that lost a race with a concurrent change.
type ConflictError struct {
	Message string
}

func Conflict(message string) error {
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StockError names the product whose stock cannot cover a request. An empty
// ProductID means the check was not tied to a single line.
type StockError struct {
	ProductID string
}

func (e *StockError) Error() string {
	if e.ProductID == "" {
		return "Insufficient stock"
	}
	return fmt.Sprintf("Insufficient stock for product %s", e.ProductID)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
