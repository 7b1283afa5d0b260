// utils/errors.go
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUserIDNotFound       = errors.New("authentication required: user ID not found")
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid booking state for this action")
	ErrTooLateToCancel      = errors.New("booking cannot be cancelled within 24 hours of departure")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrInsufficientCapacity = errors.New("not enough available seats")
)

// SeatConflictError reports the specific seat numbers that are already held so
// the client can prompt re-selection.
type SeatConflictError struct {
	SeatNumbers []int
}

func (e *SeatConflictError) Error() string {
	nums := make([]string, 0, len(e.SeatNumbers))
	for _, n := range e.SeatNumbers {
		nums = append(nums, strconv.Itoa(n))
	}
	return fmt.Sprintf("seats %s are already booked. Please refresh and select different seats", strings.Join(nums, ", "))
}

// IsSeatConflict reports whether err is a seat conflict and returns it if so.
func IsSeatConflict(err error) (*SeatConflictError, bool) {
	var sc *SeatConflictError
	if errors.As(err, &sc) {
		return sc, true
	}
	return nil, false
}

// ValidationError carries the failing field so clients can enumerate them.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// PaymentGatewayError wraps provider or network failures so the HTTP layer can
// surface the provider message without leaking internals.
type PaymentGatewayError struct {
	Msg string
	Err error
}

func (e *PaymentGatewayError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "payment gateway error"
}

func (e *PaymentGatewayError) Unwrap() error { return e.Err }
