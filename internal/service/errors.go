package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it instead of on
// message text.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// Error is the typed error returned by every service operation.  Code is
// a stable machine-readable identifier (e.g. "copy_not_available"),
// Message is meant for humans.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func notFound(code, msg string) *Error   { return newError(KindNotFound, code, msg, nil) }
func conflict(code, msg string) *Error   { return newError(KindConflict, code, msg, nil) }
func invalid(code, msg string) *Error    { return newError(KindValidation, code, msg, nil) }
func internal(msg string, err error) *Error {
	return newError(KindInternal, "internal", msg, err)
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of a typed error, "internal" otherwise.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Well-known error codes.
const (
	CodeUserNotFound           = "user_not_found"
	CodeBookNotFound           = "book_not_found"
	CodeCategoryNotFound       = "category_not_found"
	CodeCopyNotFound           = "copy_not_found"
	CodeLoanNotFound           = "loan_not_found"
	CodeReservationNotFound    = "reservation_not_found"
	CodeCopyNotAvailable       = "copy_not_available"
	CodeCopyHasActiveLoan      = "copy_has_active_loan"
	CodeLoanNotActive          = "loan_not_active"
	CodeReservationNotActive   = "reservation_not_active"
	CodeReservationNotNeeded   = "copies_available"
	CodeDuplicateReservation   = "duplicate_reservation"
	CodeDuplicateEmail         = "duplicate_email"
	CodeDuplicateISBN          = "duplicate_isbn"
	CodeDuplicateCode          = "duplicate_code"
	CodeDuplicateCategory      = "duplicate_category"
	CodeInUse                  = "in_use"
	CodeInvalidInput           = "invalid_input"
	CodeInvalidCredentials     = "invalid_credentials"
	CodeInvalidRefreshToken    = "invalid_refresh_token"
)
