package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/queue"
	"github.com/iliyamo/library-api/internal/repository"
)

// LoanService is the loan ledger and the coordinator of the lending
// lifecycle.  Primary transitions (open, return, delete) change the
// ledger and the copy together in one storage transaction.  Follow-up
// work after a return (reservation processing, events) is best effort:
// it is logged on failure and never undoes the return.
type LoanService struct {
	loans    LoanStore
	copies   CopyStore
	users    UserStore
	listener AvailabilityListener
	events   Publisher
	log      *zap.Logger
	opts     LifecycleOptions
	now      Clock
}

// NewLoanService wires the ledger.  listener and events may be nil.
func NewLoanService(loans LoanStore, copies CopyStore, users UserStore, listener AvailabilityListener,
	events Publisher, log *zap.Logger, opts LifecycleOptions) *LoanService {
	if loans == nil || copies == nil || users == nil || log == nil {
		panic("nil dependency passed to NewLoanService")
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &LoanService{
		loans:    loans,
		copies:   copies,
		users:    users,
		listener: listener,
		events:   events,
		log:      log,
		opts:     opts.withDefaults(),
		now:      utcNow,
	}
}

// WithClock replaces the time source.  Used by tests.
func (s *LoanService) WithClock(c Clock) *LoanService {
	s.now = c
	return s
}

// Options returns the effective lifecycle options.
func (s *LoanService) Options() LifecycleOptions { return s.opts }

// Create opens a loan of copyID for userID.  dueDate defaults to now
// plus the configured loan period.  The copy must be AVAILABLE, or
// RESERVED for this user; it becomes LOANED atomically with the insert.
func (s *LoanService) Create(ctx context.Context, userID, copyID uint64, dueDate *time.Time) (*model.LoanDetail, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fromStore(err, CodeUserNotFound, "user not found")
	}
	c, err := s.copies.GetByID(ctx, copyID)
	if err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	if !c.LoanableBy(userID) {
		return nil, conflict(CodeCopyNotAvailable, "copy is not available for loan")
	}

	due := s.now().Add(s.opts.LoanPeriod)
	if dueDate != nil {
		due = dueDate.UTC()
	}
	l := &model.Loan{UserID: userID, CopyID: copyID, Status: model.LoanActive, DueDate: due}
	if err := s.loans.CreateClaimingCopy(ctx, l); err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	s.log.Info("loan created",
		zap.Uint64("loan_id", l.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("copy_id", copyID),
		zap.Time("due_date", l.DueDate))

	d, err := s.detail(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.KeyLoanCreated, loanEvent(queue.KeyLoanCreated, d))
	return d, nil
}

// Return closes a loan and frees its copy.  Which statuses are
// returnable depends on the configured ReturnPolicy.  After the return
// the oldest reservation for the book, if any, is fulfilled.
func (s *LoanService) Return(ctx context.Context, id uint64) (*model.LoanDetail, error) {
	l, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeLoanNotFound, "loan not found")
	}
	allowed := s.opts.ReturnPolicy.returnable()
	if !statusIn(l.Status, allowed) {
		return nil, conflict(CodeLoanNotActive, "loan is not active")
	}
	returned, err := s.loans.Return(ctx, id, allowed, s.now())
	if err != nil {
		return nil, fromStore(err, CodeLoanNotFound, "loan not found")
	}
	s.log.Info("loan returned",
		zap.Uint64("loan_id", id),
		zap.Uint64("copy_id", returned.CopyID),
		zap.String("previous_status", string(l.Status)))

	s.copyFreed(ctx, returned.CopyID)

	d, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.KeyLoanReturned, loanEvent(queue.KeyLoanReturned, d))
	return d, nil
}

// copyFreed hands a newly available copy to the reservation queue.
// Failures are logged only.
func (s *LoanService) copyFreed(ctx context.Context, copyID uint64) {
	if s.listener == nil {
		return
	}
	c, err := s.copies.GetByID(ctx, copyID)
	if err != nil {
		s.log.Warn("reservation processing skipped: copy lookup failed",
			zap.Uint64("copy_id", copyID), zap.Error(err))
		return
	}
	if _, err := s.listener.ProcessForBook(ctx, c.BookID, c.ID); err != nil {
		s.log.Warn("reservation processing failed",
			zap.Uint64("book_id", c.BookID), zap.Uint64("copy_id", c.ID), zap.Error(err))
	}
}

// SweepOverdue marks every ACTIVE loan past its due date as OVERDUE and
// returns the number of loans changed.
func (s *LoanService) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.loans.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, internal("overdue sweep failed", err)
	}
	if n > 0 {
		s.log.Info("overdue sweep", zap.Int64("marked", n))
	}
	return n, nil
}

// UpdateDueDate changes the due date of an open loan.  An OVERDUE loan
// given a due date in the future becomes ACTIVE again.
func (s *LoanService) UpdateDueDate(ctx context.Context, id uint64, due time.Time) (*model.LoanDetail, error) {
	if due.IsZero() {
		return nil, invalid(CodeInvalidInput, "due_date is required")
	}
	if _, err := s.loans.UpdateDueDate(ctx, id, due.UTC(), s.now()); err != nil {
		return nil, fromStore(err, CodeLoanNotFound, "loan not found")
	}
	return s.detail(ctx, id)
}

// Delete hard-deletes a loan.  An open loan (ACTIVE or OVERDUE) gives
// its copy back, and the reservation queue gets a chance at it.
func (s *LoanService) Delete(ctx context.Context, id uint64) error {
	deleted, err := s.loans.Delete(ctx, id, []model.LoanStatus{model.LoanActive, model.LoanOverdue})
	if err != nil {
		return fromStore(err, CodeLoanNotFound, "loan not found")
	}
	s.log.Info("loan deleted",
		zap.Uint64("loan_id", id),
		zap.String("status", string(deleted.Status)))
	if deleted.Status.Open() {
		s.copyFreed(ctx, deleted.CopyID)
	}
	return nil
}

// Get returns a loan with its user and book details.
func (s *LoanService) Get(ctx context.Context, id uint64) (*model.LoanDetail, error) {
	return s.detail(ctx, id)
}

// LoanQuery selects one of the ledger projections.  UserID wins over
// Active, which wins over Overdue, mirroring the admin listing endpoint.
type LoanQuery struct {
	UserID  uint64
	Active  bool
	Overdue bool
}

// List returns the projection selected by q, or every loan.
func (s *LoanService) List(ctx context.Context, q LoanQuery) ([]model.LoanDetail, error) {
	switch {
	case q.UserID != 0:
		return s.ListByUser(ctx, q.UserID)
	case q.Active:
		return s.ListActive(ctx)
	case q.Overdue:
		return s.ListOverdue(ctx)
	}
	return s.list(ctx, repository.LoanFilter{})
}

// ListByUser returns every loan of a user, whatever its status.
func (s *LoanService) ListByUser(ctx context.Context, userID uint64) ([]model.LoanDetail, error) {
	return s.list(ctx, repository.LoanFilter{UserID: userID})
}

// ListActive returns loans with status ACTIVE.
func (s *LoanService) ListActive(ctx context.Context) ([]model.LoanDetail, error) {
	return s.list(ctx, repository.LoanFilter{Status: model.LoanActive})
}

// ListOverdue returns loans overdue right now, whether or not the sweep
// has already flagged them.
func (s *LoanService) ListOverdue(ctx context.Context) ([]model.LoanDetail, error) {
	now := s.now()
	return s.list(ctx, repository.LoanFilter{OverdueAt: &now})
}

func (s *LoanService) list(ctx context.Context, f repository.LoanFilter) ([]model.LoanDetail, error) {
	out, err := s.loans.List(ctx, f)
	if err != nil {
		return nil, internal("list loans", err)
	}
	return out, nil
}

func (s *LoanService) detail(ctx context.Context, id uint64) (*model.LoanDetail, error) {
	d, err := s.loans.GetDetail(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeLoanNotFound, "loan not found")
	}
	return d, nil
}

func (s *LoanService) publish(ctx context.Context, key string, ev any) {
	if err := s.events.Publish(ctx, key, ev); err != nil {
		s.log.Warn("event publish failed", zap.String("key", key), zap.Error(err))
	}
}

func loanEvent(key string, d *model.LoanDetail) queue.LoanEvent {
	return queue.LoanEvent{
		Envelope:   queue.NewEnvelope(key),
		LoanID:     d.ID,
		UserID:     d.UserID,
		UserEmail:  d.UserEmail,
		CopyID:     d.CopyID,
		CopyCode:   d.CopyCode,
		BookID:     d.BookID,
		BookTitle:  d.BookTitle,
		DueDate:    d.DueDate,
		ReturnedAt: d.ReturnedAt,
	}
}

func statusIn(s model.LoanStatus, allowed []model.LoanStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
