package model

import "time"

// LoanStatus is the state of a borrowing transaction.
//
//	ACTIVE  --return-->  RETURNED
//	ACTIVE  --sweep--->  OVERDUE
//	OVERDUE --return-->  RETURNED
//
// RETURNED is terminal.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanReturned LoanStatus = "RETURNED"
	LoanOverdue  LoanStatus = "OVERDUE"
)

// Open reports whether the loan still holds its copy.
func (s LoanStatus) Open() bool { return s == LoanActive || s == LoanOverdue }

// DefaultLoanPeriod is used when a loan is created without a due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Loan records a time-bounded borrowing of one copy by one user.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – borrowing user.
//  CopyID     – borrowed copy.
//  Status     – ACTIVE, RETURNED or OVERDUE.
//  DueDate    – instant after which the loan is overdue.
//  ReturnedAt – when the copy came back (nil while open).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Loan struct {
	ID         uint64     `json:"id"`                    // loans.id
	UserID     uint64     `json:"user_id"`               // loans.user_id
	CopyID     uint64     `json:"copy_id"`               // loans.copy_id
	Status     LoanStatus `json:"status"`                // loans.status
	DueDate    time.Time  `json:"due_date"`              // loans.due_date
	ReturnedAt *time.Time `json:"returned_at,omitempty"` // loans.returned_at (nullable)
	CreatedAt  time.Time  `json:"created_at"`            // loans.created_at
	UpdatedAt  time.Time  `json:"updated_at"`            // loans.updated_at
}

// OverdueAt reports whether the loan counts as overdue at now: either
// the sweep already flagged it, or it is ACTIVE past its due date.
func (l *Loan) OverdueAt(now time.Time) bool {
	if l.Status == LoanOverdue {
		return true
	}
	return l.Status == LoanActive && l.DueDate.Before(now)
}

// LoanDetail is a loan with the borrower and the book resolved.
type LoanDetail struct {
	Loan
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	CopyCode   string `json:"copy_code"`
	BookID     uint64 `json:"book_id"`
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	BookISBN   string `json:"book_isbn"`
}
