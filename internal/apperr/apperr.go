// Package apperr defines the business error vocabulary shared by both
// services. Validation and contention errors propagate to the HTTP boundary
// with their specific code; infrastructure failures collapse to SystemBusy so
// internals never leak to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code   string
	Status int
	msg    string
}

func (e *Error) Error() string { return e.msg }

func newErr(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, msg: msg}
}

var (
	ErrScheduleNotFound  = newErr("SCHEDULE_NOT_FOUND", http.StatusNotFound, "schedule not found")
	ErrSeatInvalidRow    = newErr("SEAT_INVALID_ROW", http.StatusBadRequest, "seat row out of range")
	ErrSeatInvalidCol    = newErr("SEAT_INVALID_COL", http.StatusBadRequest, "seat col out of range")
	ErrSeatAlreadyLocked = newErr("SEAT_ALREADY_LOCKED", http.StatusConflict, "seat already locked")
	ErrSeatSoldOut       = newErr("SEAT_SOLD_OUT", http.StatusConflict, "seat sold out")
	ErrParamInvalid      = newErr("PARAM_VALID_ERROR", http.StatusBadRequest, "invalid request parameters")
	ErrUnauthorized      = newErr("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden         = newErr("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrOrderNotFound     = newErr("ORDER_NOT_FOUND", http.StatusNotFound, "order not found")
	ErrOrderStatusBad    = newErr("ORDER_STATUS_INVALID", http.StatusConflict, "order status does not allow this operation")
	ErrOrderCreateFailed = newErr("ORDER_CREATE_FAILED", http.StatusInternalServerError, "order creation failed")
	ErrSystemBusy        = newErr("SYSTEM_BUSY", http.StatusServiceUnavailable, "system busy, try again later")
)

// FromCode resolves a wire-level code back to its sentinel, for clients that
// relay errors between services. Unknown codes map to SystemBusy.
func FromCode(code string) *Error {
	for _, e := range []*Error{
		ErrScheduleNotFound, ErrSeatInvalidRow, ErrSeatInvalidCol,
		ErrSeatAlreadyLocked, ErrSeatSoldOut, ErrParamInvalid,
		ErrUnauthorized, ErrForbidden, ErrOrderNotFound,
		ErrOrderStatusBad, ErrOrderCreateFailed,
	} {
		if e.Code == code {
			return e
		}
	}
	return ErrSystemBusy
}

// AsError unwraps err to an *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Wrap annotates an infrastructure error while keeping the sentinel in the
// chain for the boundary to classify.
func Wrap(sentinel *Error, cause error) error {
	return fmt.Errorf("%w: %v", sentinel, cause)
}
