package repository

import (
	"time"

	"github.com/iliyamo/library-api/internal/model"
)

// BookFilter narrows book listings.  Zero values mean "any".
type BookFilter struct {
	CategoryID    uint64
	Query         string // case-insensitive match on title, author or isbn
	AvailableOnly bool   // only books with at least one AVAILABLE copy
}

// CopyFilter narrows copy listings.
type CopyFilter struct {
	BookID uint64
	Status model.CopyStatus
}

// LoanFilter narrows loan listings.  When OverdueAt is set only loans
// overdue at that instant are returned: status OVERDUE, or ACTIVE with a
// due date before it.
type LoanFilter struct {
	UserID    uint64
	Status    model.LoanStatus
	OverdueAt *time.Time
}

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	UserID uint64
	BookID uint64
	Status model.ReservationStatus
}
