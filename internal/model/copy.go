package model

import "time"

// CopyStatus is the lending state of a physical copy.  It is the only
// source of truth for whether a copy can be borrowed.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyLoaned    CopyStatus = "LOANED"
	CopyDamaged   CopyStatus = "DAMAGED"
	CopyReserved  CopyStatus = "RESERVED"
)

// Valid reports whether s is one of the four known copy statuses.
func (s CopyStatus) Valid() bool {
	switch s {
	case CopyAvailable, CopyLoaned, CopyDamaged, CopyReserved:
		return true
	}
	return false
}

// Copy represents a single physical instance of a book.  Copies are
// created by catalog administration and are mutated by loan creation,
// loan return and administrative status overrides.
//
// Fields:
//  ID          – primary key identifier.
//  BookID      – book this copy belongs to.
//  Code        – unique human-readable inventory code.
//  Status      – lending state (AVAILABLE, LOANED, DAMAGED, RESERVED).
//  ReservedFor – user a RESERVED copy is held for (nil otherwise).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Copy struct {
	ID          uint64     `json:"id"`                     // copies.id
	BookID      uint64     `json:"book_id"`                // copies.book_id
	Code        string     `json:"code"`                   // copies.code
	Status      CopyStatus `json:"status"`                 // copies.status
	ReservedFor *uint64    `json:"reserved_for,omitempty"` // copies.reserved_for (nullable)
	CreatedAt   time.Time  `json:"created_at"`             // copies.created_at
	UpdatedAt   time.Time  `json:"updated_at"`             // copies.updated_at
}

// LoanableBy reports whether userID may open a loan on the copy right
// now.  A RESERVED copy can only be claimed by the user it is held for.
func (c *Copy) LoanableBy(userID uint64) bool {
	switch c.Status {
	case CopyAvailable:
		return true
	case CopyReserved:
		return c.ReservedFor != nil && *c.ReservedFor == userID
	}
	return false
}

// CopyDetail is a copy together with the title information of its book.
type CopyDetail struct {
	Copy
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	BookISBN   string `json:"book_isbn"`
}
