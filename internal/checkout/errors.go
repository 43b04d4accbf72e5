package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrReservationConflict  = errors.New("reservation conflict")
	ErrOrderNumberCollision = errors.New("order number collision")
	ErrWrite                = errors.New("order write failed")
	ErrUnavailable          = errors.New("catalog unavailable")
	ErrCancelled            = errors.New("checkout cancelled")
	// ErrRollbackFailed marks stock drift: a compensating increment did not apply.
	ErrRollbackFailed = errors.New("stock rollback failed")
)

// Failure is the single error type returned by Place. It unwraps to its Reason
// sentinel and to the underlying cause.
type Failure struct {
	Reason    error
	ProductID string
	Title     string
	Available int
	Detail    string
	Err       error
}

func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Reason}
	}
	return []error{f.Reason, f.Err}
}

func (f *Failure) name() string {
	if f.Title != "" {
		return f.Title
	}
	return f.ProductID
}

// Error renders a message fit to show the shopper.
func (f *Failure) Error() string {
	switch f.Reason {
	case ErrInvalidInput:
		return "Invalid order: " + f.Detail
	case ErrProductNotFound:
		return fmt.Sprintf("Product %s not found", f.ProductID)
	case ErrInsufficientStock:
		if f.Available == 0 {
			return fmt.Sprintf("Insufficient stock for %s: out of stock", f.name())
		}
		return fmt.Sprintf("Insufficient stock for %s: only %d left", f.name(), f.Available)
	case ErrReservationConflict:
		return fmt.Sprintf("%s sold out while you were checking out, only %d left", f.name(), f.Available)
	case ErrOrderNumberCollision:
		return "Could not allocate an order number, please try again"
	case ErrUnavailable:
		return "The catalog is temporarily unavailable, please try again"
	case ErrCancelled:
		return "Checkout was cancelled"
	default:
		if f.Detail != "" {
			return "Could not save your order: " + f.Detail
		}
		return "Could not save your order, please try again"
	}
}

// Code is the stable machine-readable reason used by the API and metrics.
func (f *Failure) Code() string {
	switch f.Reason {
	case ErrInvalidInput:
		return "INVALID_INPUT"
	case ErrProductNotFound:
		return "NOT_FOUND"
	case ErrInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case ErrReservationConflict:
		return "RESERVATION_CONFLICT"
	case ErrOrderNumberCollision:
		return "ORDER_NUMBER_COLLISION"
	case ErrUnavailable:
		return "UNAVAILABLE"
	case ErrCancelled:
		return "CANCELLED"
	default:
		return "WRITE_ERROR"
	}
}

func invalid(format string, args ...any) *Failure {
	return &Failure{Reason: ErrInvalidInput, Detail: fmt.Sprintf(format, args...)}
}
