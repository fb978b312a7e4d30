// Package fault defines the error kinds exchanged between the booking,
// inventory and payment services. Collaborators observe only the kind:
// a definite negative (business), an unsafe-to-proceed dependency outage
// (unavailable), or a remote call whose outcome is unknown (unclear).
package fault

import (
	"fmt"
	"github.com/cockroachdb/errors"

	"openbooking/internal/pkg/errs"
)

type Code string

const (
	CodeInsufficientAvailability Code = "INSUFFICIENT_AVAILABILITY"
	CodePaymentDeclined          Code = "PAYMENT_DECLINED"
	CodeResourceNotFound         Code = "RESOURCE_NOT_FOUND"
	CodeBookingFailed            Code = "BOOKING_FAILED"
	CodeInvalidRequest           Code = "INVALID_REQUEST"
)

// BusinessError is a definite negative outcome from a legitimate request.
// It is safe to compensate on: the remote has decided, nothing is in limbo.
type BusinessError struct {
	Code    Code
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Business(code Code, msg string) error {
	return &BusinessError{Code: code, Message: msg}
}

func Businessf(code Code, format string, args ...any) error {
	return &BusinessError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// BusinessCode extracts the code carried by a business error, if any.
func BusinessCode(err error) (Code, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return "", false
}

// ErrUnavailable marks failures where a dependency (typically the durable
// idempotency store) cannot answer safely. The operation must not proceed;
// the caller retries later with the same key.
var ErrUnavailable = errs.New("service temporarily unavailable")

func Unavailable(err error, msg string) error {
	return errs.Mark(errs.Wrap(err, msg), ErrUnavailable)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ErrUnclearOutcome marks remote calls whose result cannot be determined:
// timeouts, 503/504, connection resets. Never treated as success or failure,
// and never compensated synchronously.
var ErrUnclearOutcome = errs.New("remote outcome unknown")

func Unclear(err error, msg string) error {
	return errs.Mark(errs.Wrap(err, msg), ErrUnclearOutcome)
}

func IsUnclear(err error) bool {
	return errors.Is(err, ErrUnclearOutcome)
}

// ErrNotFound is the generic lookup miss surfaced by repositories.
var ErrNotFound = errs.New("not found")
