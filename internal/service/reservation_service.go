package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/queue"
	"github.com/iliyamo/library-api/internal/repository"
)

// ReservationService is the per-book FIFO queue of waiting users.
type ReservationService struct {
	reservations ReservationStore
	copies       CopyStore
	users        UserStore
	books        BookStore
	events       Publisher
	log          *zap.Logger
	opts         LifecycleOptions
}

// NewReservationService wires the queue.  events may be nil.
func NewReservationService(reservations ReservationStore, copies CopyStore, users UserStore, books BookStore,
	events Publisher, log *zap.Logger, opts LifecycleOptions) *ReservationService {
	if reservations == nil || copies == nil || users == nil || books == nil || log == nil {
		panic("nil dependency passed to NewReservationService")
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &ReservationService{
		reservations: reservations,
		copies:       copies,
		users:        users,
		books:        books,
		events:       events,
		log:          log,
		opts:         opts.withDefaults(),
	}
}

// Create enqueues userID for bookID.  Reservations are only accepted
// while the book has no AVAILABLE copy, and a user waits at most once
// per book.
func (s *ReservationService) Create(ctx context.Context, userID, bookID uint64) (*model.ReservationDetail, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fromStore(err, CodeUserNotFound, "user not found")
	}
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, fromStore(err, CodeBookNotFound, "book not found")
	}
	available, err := s.copies.CountAvailable(ctx, bookID)
	if err != nil {
		return nil, internal("count available copies", err)
	}
	if available > 0 {
		return nil, conflict(CodeReservationNotNeeded, "book has available copies, reservation not needed")
	}
	r := &model.Reservation{UserID: userID, BookID: bookID, Status: model.ReservationActive}
	if err := s.reservations.CreateIfUnavailable(ctx, r); err != nil {
		return nil, fromStore(err, CodeBookNotFound, "book not found")
	}
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("book_id", bookID))
	return s.detail(ctx, r.ID)
}

// FindByBook returns the ACTIVE reservations of a book, oldest first.
func (s *ReservationService) FindByBook(ctx context.Context, bookID uint64) ([]model.ReservationDetail, error) {
	return s.List(ctx, repository.ReservationFilter{BookID: bookID, Status: model.ReservationActive})
}

// Fulfill marks an ACTIVE reservation FULFILLED.
func (s *ReservationService) Fulfill(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	return s.transition(ctx, id, model.ReservationFulfilled)
}

// Cancel marks an ACTIVE reservation CANCELLED.
func (s *ReservationService) Cancel(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	return s.transition(ctx, id, model.ReservationCancelled)
}

func (s *ReservationService) transition(ctx context.Context, id uint64, to model.ReservationStatus) (*model.ReservationDetail, error) {
	if _, err := s.reservations.Transition(ctx, id, to); err != nil {
		return nil, fromStore(err, CodeReservationNotFound, "reservation not found")
	}
	s.log.Info("reservation transitioned", zap.Uint64("reservation_id", id), zap.String("status", string(to)))
	return s.detail(ctx, id)
}

// ProcessForBook fulfils the oldest ACTIVE reservation of bookID after
// copyID became available.  It returns nil when nobody is waiting.
//
// With HoldForReservation the copy is first moved to RESERVED for the
// waiting user.  If someone borrowed the copy in the meantime the hold
// fails and the reservation stays queued for the next return.
func (s *ReservationService) ProcessForBook(ctx context.Context, bookID, copyID uint64) (*model.Reservation, error) {
	waiting, err := s.FindByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	next := waiting[0].Reservation

	held := false
	if s.opts.HoldForReservation && copyID != 0 {
		if err := s.copies.Hold(ctx, copyID, next.UserID); err != nil {
			if errors.Is(err, repository.ErrCopyUnavailable) {
				s.log.Info("copy claimed before it could be held",
					zap.Uint64("copy_id", copyID), zap.Uint64("reservation_id", next.ID))
				return nil, nil
			}
			return nil, internal("hold copy for reservation", err)
		}
		held = true
	}

	r, err := s.reservations.Transition(ctx, next.ID, model.ReservationFulfilled)
	if err != nil {
		if held {
			if relErr := s.copies.ReleaseHold(ctx, copyID, next.UserID); relErr != nil {
				s.log.Error("release hold failed", zap.Uint64("copy_id", copyID), zap.Error(relErr))
			}
		}
		return nil, fromStore(err, CodeReservationNotFound, "reservation not found")
	}
	s.log.Info("reservation fulfilled",
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("user_id", r.UserID),
		zap.Uint64("book_id", bookID),
		zap.Bool("copy_held", held))

	ev := queue.ReservationFulfilledEvent{
		Envelope:      queue.NewEnvelope(queue.KeyReservationFulfilled),
		ReservationID: r.ID,
		UserID:        r.UserID,
		BookID:        bookID,
		Held:          held,
	}
	if held {
		ev.CopyID = copyID
	}
	if err := s.events.Publish(ctx, queue.KeyReservationFulfilled, ev); err != nil {
		s.log.Warn("event publish failed", zap.String("key", queue.KeyReservationFulfilled), zap.Error(err))
	}
	return r, nil
}

// Get returns a reservation with its user and book details.
func (s *ReservationService) Get(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	return s.detail(ctx, id)
}

// List returns reservations matching f in queue order.
func (s *ReservationService) List(ctx context.Context, f repository.ReservationFilter) ([]model.ReservationDetail, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid(CodeInvalidInput, "unknown reservation status")
	}
	out, err := s.reservations.List(ctx, f)
	if err != nil {
		return nil, internal("list reservations", err)
	}
	return out, nil
}

// ListByUser returns every reservation of a user in queue order.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error) {
	return s.List(ctx, repository.ReservationFilter{UserID: userID})
}

// Delete hard-deletes a reservation.
func (s *ReservationService) Delete(ctx context.Context, id uint64) error {
	if err := s.reservations.Delete(ctx, id); err != nil {
		return fromStore(err, CodeReservationNotFound, "reservation not found")
	}
	return nil
}

func (s *ReservationService) detail(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	d, err := s.reservations.GetDetail(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeReservationNotFound, "reservation not found")
	}
	return d, nil
}
