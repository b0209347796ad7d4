package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

// AvailabilityListener is told that a copy of a book became AVAILABLE
// again.  The reservation queue implements it.
type AvailabilityListener interface {
	ProcessForBook(ctx context.Context, bookID, copyID uint64) (*model.Reservation, error)
}

// CopyService is the copy registry: a status store for physical copies
// plus their catalog CRUD.  It holds no transition policy; the loan and
// reservation services own that.
type CopyService struct {
	copies   CopyStore
	books    BookStore
	listener AvailabilityListener
	log      *zap.Logger
}

// NewCopyService wires the registry.  listener may be nil.
func NewCopyService(copies CopyStore, books BookStore, listener AvailabilityListener, log *zap.Logger) *CopyService {
	if copies == nil || books == nil || log == nil {
		panic("nil dependency passed to NewCopyService")
	}
	return &CopyService{copies: copies, books: books, listener: listener, log: log}
}

// CopyInput carries the writable fields of a copy.  Nil pointers leave
// the field unchanged on update.
type CopyInput struct {
	BookID *uint64
	Code   *string
	Status *model.CopyStatus
}

// Create adds a copy, AVAILABLE unless a status is given.  A new
// AVAILABLE copy is offered to the book's reservation queue.
func (s *CopyService) Create(ctx context.Context, in CopyInput) (*model.Copy, error) {
	if in.BookID == nil || *in.BookID == 0 {
		return nil, invalid(CodeInvalidInput, "book_id is required")
	}
	if in.Code == nil || strings.TrimSpace(*in.Code) == "" {
		return nil, invalid(CodeInvalidInput, "code is required")
	}
	status := model.CopyAvailable
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, invalid(CodeInvalidInput, "unknown copy status")
		}
		status = *in.Status
	}
	if _, err := s.books.GetByID(ctx, *in.BookID); err != nil {
		return nil, fromStore(err, CodeBookNotFound, "book not found")
	}
	c := &model.Copy{BookID: *in.BookID, Code: strings.TrimSpace(*in.Code), Status: status}
	if err := s.copies.Create(ctx, c); err != nil {
		return nil, fromStore(err, CodeBookNotFound, "book not found")
	}
	if c.Status == model.CopyAvailable {
		c = s.offerToQueue(ctx, c, "copy added")
	}
	return c, nil
}

// Get returns a copy with its book title.
func (s *CopyService) Get(ctx context.Context, id uint64) (*model.CopyDetail, error) {
	c, err := s.copies.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	return c, nil
}

// List returns copies filtered by book and status.
func (s *CopyService) List(ctx context.Context, f repository.CopyFilter) ([]model.CopyDetail, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid(CodeInvalidInput, "unknown copy status")
	}
	out, err := s.copies.List(ctx, f)
	if err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	return out, nil
}

// Update changes the book and/or code of a copy.  A status in the input
// is applied through SetStatus.
func (s *CopyService) Update(ctx context.Context, id uint64, in CopyInput) (*model.Copy, error) {
	cur, err := s.copies.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	c := cur.Copy
	moved := false
	if in.BookID != nil && *in.BookID != c.BookID {
		if _, err := s.books.GetByID(ctx, *in.BookID); err != nil {
			return nil, fromStore(err, CodeBookNotFound, "book not found")
		}
		c.BookID = *in.BookID
		moved = true
	}
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if code == "" {
			return nil, invalid(CodeInvalidInput, "code cannot be empty")
		}
		c.Code = code
	}
	if err := s.copies.Update(ctx, &c); err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	if in.Status != nil && *in.Status != c.Status {
		return s.SetStatus(ctx, id, *in.Status)
	}
	if moved && c.Status == model.CopyAvailable {
		return s.offerToQueue(ctx, &c, "copy moved"), nil
	}
	return &c, nil
}

// SetStatus is the administrative override: an unconditional write of
// the status.  Moving a copy back to AVAILABLE lets the reservation
// queue claim it.
func (s *CopyService) SetStatus(ctx context.Context, id uint64, status model.CopyStatus) (*model.Copy, error) {
	if !status.Valid() {
		return nil, invalid(CodeInvalidInput, "unknown copy status")
	}
	before, err := s.copies.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	c, err := s.copies.SetStatus(ctx, id, status)
	if err != nil {
		return nil, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	s.log.Info("copy status overridden",
		zap.Uint64("copy_id", id),
		zap.String("from", string(before.Status)),
		zap.String("to", string(status)))
	if status == model.CopyAvailable && before.Status != model.CopyAvailable {
		c = s.offerToQueue(ctx, c, "status override")
	}
	return c, nil
}

// offerToQueue hands a copy that just became AVAILABLE for its book to
// the reservation queue and returns the copy as stored afterwards.
// Queue failures are logged; the copy write already succeeded.
func (s *CopyService) offerToQueue(ctx context.Context, c *model.Copy, cause string) *model.Copy {
	if s.listener == nil {
		return c
	}
	if _, err := s.listener.ProcessForBook(ctx, c.BookID, c.ID); err != nil {
		s.log.Warn("reservation processing failed",
			zap.String("cause", cause),
			zap.Uint64("book_id", c.BookID),
			zap.Uint64("copy_id", c.ID),
			zap.Error(err))
	}
	if fresh, err := s.copies.GetByID(ctx, c.ID); err == nil {
		return &fresh.Copy
	}
	return c
}

// IsAvailable reports whether the copy is AVAILABLE.
func (s *CopyService) IsAvailable(ctx context.Context, id uint64) (bool, error) {
	c, err := s.copies.GetByID(ctx, id)
	if err != nil {
		return false, fromStore(err, CodeCopyNotFound, "copy not found")
	}
	return c.Status == model.CopyAvailable, nil
}

// CountAvailable counts the AVAILABLE copies of a book.
func (s *CopyService) CountAvailable(ctx context.Context, bookID uint64) (int, error) {
	n, err := s.copies.CountAvailable(ctx, bookID)
	if err != nil {
		return 0, fromStore(err, CodeBookNotFound, "book not found")
	}
	return n, nil
}

// Delete removes a copy unless an ACTIVE or OVERDUE loan references it.
func (s *CopyService) Delete(ctx context.Context, id uint64) error {
	if err := s.copies.Delete(ctx, id); err != nil {
		return fromStore(err, CodeCopyNotFound, "copy not found")
	}
	s.log.Info("copy deleted", zap.Uint64("copy_id", id))
	return nil
}
