package service

import (
	"context"
	"time"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

// The store interfaces below are satisfied by the MySQL repositories in
// package repository and by the in-process driver in
// repository/memory.  Implementations report outcomes with the sentinel
// errors declared in package repository.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id uint64) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type CategoryStore interface {
	Create(ctx context.Context, c *model.Category) error
	GetByID(ctx context.Context, id uint64) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id uint64) error
}

type BookStore interface {
	Create(ctx context.Context, b *model.Book) error
	GetByID(ctx context.Context, id uint64) (*model.BookDetail, error)
	List(ctx context.Context, f repository.BookFilter) ([]model.BookDetail, error)
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id uint64) error
}

type CopyStore interface {
	Create(ctx context.Context, c *model.Copy) error
	GetByID(ctx context.Context, id uint64) (*model.CopyDetail, error)
	List(ctx context.Context, f repository.CopyFilter) ([]model.CopyDetail, error)
	Update(ctx context.Context, c *model.Copy) error
	SetStatus(ctx context.Context, id uint64, status model.CopyStatus) (*model.Copy, error)
	CountAvailable(ctx context.Context, bookID uint64) (int, error)
	Hold(ctx context.Context, copyID, userID uint64) error
	ReleaseHold(ctx context.Context, copyID, userID uint64) error
	Delete(ctx context.Context, id uint64) error
}

type LoanStore interface {
	CreateClaimingCopy(ctx context.Context, l *model.Loan) error
	GetByID(ctx context.Context, id uint64) (*model.Loan, error)
	GetDetail(ctx context.Context, id uint64) (*model.LoanDetail, error)
	List(ctx context.Context, f repository.LoanFilter) ([]model.LoanDetail, error)
	Return(ctx context.Context, id uint64, from []model.LoanStatus, at time.Time) (*model.Loan, error)
	UpdateDueDate(ctx context.Context, id uint64, due, now time.Time) (*model.Loan, error)
	Delete(ctx context.Context, id uint64, release []model.LoanStatus) (*model.Loan, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type ReservationStore interface {
	CreateIfUnavailable(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error)
	List(ctx context.Context, f repository.ReservationFilter) ([]model.ReservationDetail, error)
	Transition(ctx context.Context, id uint64, status model.ReservationStatus) (*model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
}

// Publisher delivers domain events to interested consumers.  Delivery is
// best effort; the services log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Clock returns the current time.  Tests substitute a fixed clock.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
