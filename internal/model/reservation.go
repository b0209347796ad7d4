package model

import "time"

// ReservationStatus is the state of a book-level reservation.  Both
// FULFILLED and CANCELLED are terminal.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationFulfilled, ReservationCancelled:
		return true
	}
	return false
}

// Reservation is a user's place in the queue for the next copy of a
// book.  Reservations reference books rather than copies because copies
// of the same book are interchangeable.  CreatedAt orders the queue.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – waiting user.
//  BookID    – reserved book.
//  Status    – ACTIVE, FULFILLED or CANCELLED.
//  CreatedAt – creation timestamp (FIFO key).
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64            `json:"id"`         // reservations.id
	UserID    uint64            `json:"user_id"`    // reservations.user_id
	BookID    uint64            `json:"book_id"`    // reservations.book_id
	Status    ReservationStatus `json:"status"`     // reservations.status
	CreatedAt time.Time         `json:"created_at"` // reservations.created_at
	UpdatedAt time.Time         `json:"updated_at"` // reservations.updated_at
}

// ReservationDetail is a reservation with user and book resolved.
type ReservationDetail struct {
	Reservation
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	BookISBN   string `json:"book_isbn"`
}
