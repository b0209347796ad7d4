// Package repository implements MySQL persistence for the library
// service.  It also defines the sentinel errors shared by every storage
// driver so that the service layer can translate storage outcomes into
// typed domain errors without inspecting driver-specific values.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInUse is returned when a delete is blocked because other rows
// still reference the target (books with copies, users with loans).
var ErrInUse = errors.New("referenced by other records")

// Uniqueness violations.
var (
	ErrEmailExists   = errors.New("email already exists")
	ErrDuplicateCode = errors.New("copy code already exists")
	ErrDuplicateISBN = errors.New("isbn already exists")
	ErrDuplicateName = errors.New("category name already exists")
)

// Lifecycle violations detected by conditional updates.  They are
// evaluated inside the same transaction as the write they guard, so a
// caller that sees nil knows the transition really happened.
var (
	// ErrCopyUnavailable: the copy could not be claimed for a loan.
	ErrCopyUnavailable = errors.New("copy not available")
	// ErrCopyInUse: the copy still has an ACTIVE or OVERDUE loan.
	ErrCopyInUse = errors.New("copy has an open loan")
	// ErrLoanNotReturnable: the loan's status does not allow the transition.
	ErrLoanNotReturnable = errors.New("loan not active")
	// ErrReservationNotActive: the reservation already left ACTIVE.
	ErrReservationNotActive = errors.New("reservation not active")
	// ErrCopiesAvailable: a reservation was requested while copies are free.
	ErrCopiesAvailable = errors.New("book has available copies")
	// ErrDuplicateReservation: the user already waits for this book.
	ErrDuplicateReservation = errors.New("duplicate reservation")
)
