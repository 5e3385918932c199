package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. The conflict family wraps ErrConflict so callers can match
// either the specific condition or the general class.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")

	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)
	ErrOrderClosed       = fmt.Errorf("%w: order closed", ErrConflict)
	ErrProductInOrder    = fmt.Errorf("%w: product referenced by order", ErrConflict)
)

// AppError carries a machine-readable code and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error for the named resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Conflict creates a generic 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// InsufficientStock reports the product whose stock cannot cover the requirement.
func InsufficientStock(productID string, required, available int) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock for product %s: required %d, available %d", productID, required, available),
		Status:  http.StatusConflict,
		Err:     ErrInsufficientStock,
	}
}

// OrderClosed reports a mutation attempted on a closed order.
func OrderClosed(orderID string) *AppError {
	return &AppError{
		Code:    "ORDER_CLOSED",
		Message: fmt.Sprintf("order %s is already closed", orderID),
		Status:  http.StatusConflict,
		Err:     ErrOrderClosed,
	}
}

// ProductInOrder reports a product that cannot be removed while positions reference it.
func ProductInOrder(productID string) *AppError {
	return &AppError{
		Code:    "PRODUCT_IN_ORDER",
		Message: fmt.Sprintf("product %s is referenced by an order position", productID),
		Status:  http.StatusConflict,
		Err:     ErrProductInOrder,
	}
}

// Internal creates a 500 error. The message never includes err.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
