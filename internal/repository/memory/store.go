// Package memory is an in-process storage driver for the library
// service.  It mirrors the MySQL repositories: same sentinel errors,
// same ordering, same joined detail rows.  One mutex serialises every
// operation, which gives each call the atomicity a MySQL transaction
// gives the SQL driver.
//
// It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/iliyamo/library-api/internal/model"
)

type refreshToken struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

// Store holds all tables.  Use the accessor methods to obtain the
// per-table views that satisfy the service store interfaces.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq uint64

	users        map[uint64]*model.User
	tokens       map[string]*refreshToken
	categories   map[uint64]*model.Category
	books        map[uint64]*model.Book
	copies       map[uint64]*model.Copy
	loans        map[uint64]*model.Loan
	reservations map[uint64]*model.Reservation
}

// New returns an empty store stamping rows with the wall clock.
func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		users:        map[uint64]*model.User{},
		tokens:       map[string]*refreshToken{},
		categories:   map[uint64]*model.Category{},
		books:        map[uint64]*model.Book{},
		copies:       map[uint64]*model.Copy{},
		loans:        map[uint64]*model.Loan{},
		reservations: map[uint64]*model.Reservation{},
	}
}

// WithClock replaces the clock used for created_at/updated_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// nextID is shared by all tables; ids stay unique and increasing.
func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) Users() *UserRepo               { return &UserRepo{s} }
func (s *Store) Tokens() *TokenRepo             { return &TokenRepo{s} }
func (s *Store) Categories() *CategoryRepo      { return &CategoryRepo{s} }
func (s *Store) Books() *BookRepo               { return &BookRepo{s} }
func (s *Store) Copies() *CopyRepo              { return &CopyRepo{s} }
func (s *Store) Loans() *LoanRepo               { return &LoanRepo{s} }
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s} }

func strPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func u64Ptr(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func timePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
