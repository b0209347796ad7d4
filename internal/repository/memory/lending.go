package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

type LoanRepo struct{ s *Store }

func cloneLoan(l *model.Loan) *model.Loan {
	out := *l
	out.ReturnedAt = timePtr(l.ReturnedAt)
	return &out
}

// loanDetail joins user, copy and book.  Caller holds the lock.
func (s *Store) loanDetail(l *model.Loan) model.LoanDetail {
	d := model.LoanDetail{Loan: *cloneLoan(l)}
	if u, ok := s.users[l.UserID]; ok {
		d.UserName, d.UserEmail = u.Name, u.Email
	}
	if c, ok := s.copies[l.CopyID]; ok {
		d.CopyCode, d.BookID = c.Code, c.BookID
		if b, ok := s.books[c.BookID]; ok {
			d.BookTitle, d.BookAuthor, d.BookISBN = b.Title, b.Author, b.ISBN
		}
	}
	return d
}

func statusIn(s model.LoanStatus, allowed []model.LoanStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// CreateClaimingCopy claims the copy (AVAILABLE, or RESERVED for the
// borrower) and inserts the loan under one lock.
func (r *LoanRepo) CreateClaimingCopy(_ context.Context, l *model.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[l.CopyID]
	if !ok || !c.LoanableBy(l.UserID) {
		return repository.ErrCopyUnavailable
	}
	if _, ok := r.s.users[l.UserID]; !ok {
		return repository.ErrNotFound
	}
	r.s.setCopyStatus(c, model.CopyLoaned, nil)
	now := r.s.now()
	l.ID = r.s.nextID()
	l.Status = model.LoanActive
	l.DueDate = l.DueDate.UTC()
	l.ReturnedAt = nil
	l.CreatedAt, l.UpdatedAt = now, now
	r.s.loans[l.ID] = cloneLoan(l)
	return nil
}

func (r *LoanRepo) GetByID(_ context.Context, id uint64) (*model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneLoan(l), nil
}

func (r *LoanRepo) GetDetail(_ context.Context, id uint64) (*model.LoanDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := r.s.loanDetail(l)
	return &d, nil
}

// List returns matching loans, newest first.
func (r *LoanRepo) List(_ context.Context, f repository.LoanFilter) ([]model.LoanDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.LoanDetail{}
	for _, l := range r.s.loans {
		if f.UserID != 0 && l.UserID != f.UserID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.OverdueAt != nil && !l.OverdueAt(*f.OverdueAt) {
			continue
		}
		out = append(out, r.s.loanDetail(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *LoanRepo) Return(_ context.Context, id uint64, from []model.LoanStatus, at time.Time) (*model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !statusIn(l.Status, from) {
		return nil, repository.ErrLoanNotReturnable
	}
	at = at.UTC()
	l.Status = model.LoanReturned
	l.ReturnedAt = &at
	l.UpdatedAt = r.s.now()
	if c, ok := r.s.copies[l.CopyID]; ok {
		r.s.setCopyStatus(c, model.CopyAvailable, nil)
	}
	return cloneLoan(l), nil
}

func (r *LoanRepo) UpdateDueDate(_ context.Context, id uint64, due, now time.Time) (*model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !l.Status.Open() {
		return nil, repository.ErrLoanNotReturnable
	}
	if l.Status == model.LoanOverdue && due.After(now) {
		l.Status = model.LoanActive
	}
	l.DueDate = due.UTC()
	l.UpdatedAt = r.s.now()
	return cloneLoan(l), nil
}

func (r *LoanRepo) Delete(_ context.Context, id uint64, release []model.LoanStatus) (*model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if statusIn(l.Status, release) {
		if c, ok := r.s.copies[l.CopyID]; ok {
			r.s.setCopyStatus(c, model.CopyAvailable, nil)
		}
	}
	delete(r.s.loans, id)
	return cloneLoan(l), nil
}

func (r *LoanRepo) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, l := range r.s.loans {
		if l.Status == model.LoanActive && l.DueDate.Before(now) {
			l.Status = model.LoanOverdue
			l.UpdatedAt = r.s.now()
			n++
		}
	}
	return n, nil
}

type ReservationRepo struct{ s *Store }

func cloneReservation(res *model.Reservation) *model.Reservation {
	out := *res
	return &out
}

// reservationDetail joins user and book.  Caller holds the lock.
func (s *Store) reservationDetail(res *model.Reservation) model.ReservationDetail {
	d := model.ReservationDetail{Reservation: *res}
	if u, ok := s.users[res.UserID]; ok {
		d.UserName, d.UserEmail = u.Name, u.Email
	}
	if b, ok := s.books[res.BookID]; ok {
		d.BookTitle, d.BookAuthor, d.BookISBN = b.Title, b.Author, b.ISBN
	}
	return d
}

func (r *ReservationRepo) CreateIfUnavailable(_ context.Context, res *model.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.books[res.BookID]; !ok {
		return repository.ErrNotFound
	}
	if r.s.countAvailable(res.BookID) > 0 {
		return repository.ErrCopiesAvailable
	}
	for _, other := range r.s.reservations {
		if other.UserID == res.UserID && other.BookID == res.BookID && other.Status == model.ReservationActive {
			return repository.ErrDuplicateReservation
		}
	}
	if _, ok := r.s.users[res.UserID]; !ok {
		return repository.ErrNotFound
	}
	now := r.s.now()
	res.ID = r.s.nextID()
	res.Status = model.ReservationActive
	res.CreatedAt, res.UpdatedAt = now, now
	r.s.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (r *ReservationRepo) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneReservation(res), nil
}

func (r *ReservationRepo) GetDetail(_ context.Context, id uint64) (*model.ReservationDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := r.s.reservationDetail(res)
	return &d, nil
}

// List returns matching reservations oldest first, id breaking ties.
func (r *ReservationRepo) List(_ context.Context, f repository.ReservationFilter) ([]model.ReservationDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.ReservationDetail{}
	for _, res := range r.s.reservations {
		if f.UserID != 0 && res.UserID != f.UserID {
			continue
		}
		if f.BookID != 0 && res.BookID != f.BookID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		out = append(out, r.s.reservationDetail(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ReservationRepo) Transition(_ context.Context, id uint64, status model.ReservationStatus) (*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if res.Status != model.ReservationActive {
		return nil, repository.ErrReservationNotActive
	}
	res.Status = status
	res.UpdatedAt = r.s.now()
	return cloneReservation(res), nil
}

func (r *ReservationRepo) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.reservations, id)
	return nil
}
