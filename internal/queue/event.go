// Package queue defines the lifecycle events exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys, also used as queue names on the default exchange.
const (
	KeyLoanCreated          = "loan.created"
	KeyLoanReturned         = "loan.returned"
	KeyReservationFulfilled = "reservation.fulfilled"
)

// Keys lists every routing key the consumer subscribes to.
var Keys = []string{KeyLoanCreated, KeyLoanReturned, KeyReservationFulfilled}

// Envelope carries fields common to every event.
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEnvelope stamps a fresh event id and the current UTC time.
func NewEnvelope(eventType string) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// LoanEvent is published when a loan is opened or returned.
type LoanEvent struct {
	Envelope
	LoanID     uint64     `json:"loan_id"`
	UserID     uint64     `json:"user_id"`
	UserEmail  string     `json:"user_email"`
	CopyID     uint64     `json:"copy_id"`
	CopyCode   string     `json:"copy_code"`
	BookID     uint64     `json:"book_id"`
	BookTitle  string     `json:"book_title"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// ReservationFulfilledEvent tells the waiting user that a copy of the
// reserved book came back.  CopyID is set when the copy is held for
// them.
type ReservationFulfilledEvent struct {
	Envelope
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	BookID        uint64 `json:"book_id"`
	CopyID        uint64 `json:"copy_id,omitempty"`
	Held          bool   `json:"held"`
}
