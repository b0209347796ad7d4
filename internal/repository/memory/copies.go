package memory

import (
	"context"
	"sort"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

type CopyRepo struct{ s *Store }

func cloneCopy(c *model.Copy) model.Copy {
	out := *c
	out.ReservedFor = u64Ptr(c.ReservedFor)
	return out
}

// copyDetail joins the book.  Caller holds the lock.
func (s *Store) copyDetail(c *model.Copy) model.CopyDetail {
	d := model.CopyDetail{Copy: cloneCopy(c)}
	if b, ok := s.books[c.BookID]; ok {
		d.BookTitle, d.BookAuthor, d.BookISBN = b.Title, b.Author, b.ISBN
	}
	return d
}

// countAvailable counts AVAILABLE copies of a book.  Caller holds the lock.
func (s *Store) countAvailable(bookID uint64) int {
	n := 0
	for _, c := range s.copies {
		if c.BookID == bookID && c.Status == model.CopyAvailable {
			n++
		}
	}
	return n
}

func (s *Store) setCopyStatus(c *model.Copy, status model.CopyStatus, reservedFor *uint64) {
	c.Status = status
	c.ReservedFor = reservedFor
	c.UpdatedAt = s.now()
}

func (r *CopyRepo) codeTaken(code string, except uint64) bool {
	for id, c := range r.s.copies {
		if id != except && c.Code == code {
			return true
		}
	}
	return false
}

func (r *CopyRepo) Create(_ context.Context, c *model.Copy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.codeTaken(c.Code, 0) {
		return repository.ErrDuplicateCode
	}
	if _, ok := r.s.books[c.BookID]; !ok {
		return repository.ErrNotFound
	}
	if c.Status == "" {
		c.Status = model.CopyAvailable
	}
	now := r.s.now()
	c.ID = r.s.nextID()
	c.ReservedFor = nil
	c.CreatedAt, c.UpdatedAt = now, now
	stored := cloneCopy(c)
	r.s.copies[c.ID] = &stored
	return nil
}

func (r *CopyRepo) GetByID(_ context.Context, id uint64) (*model.CopyDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := r.s.copyDetail(c)
	return &d, nil
}

func (r *CopyRepo) List(_ context.Context, f repository.CopyFilter) ([]model.CopyDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.CopyDetail{}
	for _, c := range r.s.copies {
		if f.BookID != 0 && c.BookID != f.BookID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, r.s.copyDetail(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update writes book and code only.
func (r *CopyRepo) Update(_ context.Context, c *model.Copy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.copies[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.codeTaken(c.Code, c.ID) {
		return repository.ErrDuplicateCode
	}
	if _, ok := r.s.books[c.BookID]; !ok {
		return repository.ErrNotFound
	}
	cur.BookID, cur.Code = c.BookID, c.Code
	cur.UpdatedAt = r.s.now()
	*c = cloneCopy(cur)
	return nil
}

func (r *CopyRepo) SetStatus(_ context.Context, id uint64, status model.CopyStatus) (*model.Copy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.s.setCopyStatus(c, status, nil)
	out := cloneCopy(c)
	return &out, nil
}

func (r *CopyRepo) CountAvailable(_ context.Context, bookID uint64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.countAvailable(bookID), nil
}

func (r *CopyRepo) Hold(_ context.Context, copyID, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[copyID]
	if !ok || c.Status != model.CopyAvailable {
		return repository.ErrCopyUnavailable
	}
	uid := userID
	r.s.setCopyStatus(c, model.CopyReserved, &uid)
	return nil
}

func (r *CopyRepo) ReleaseHold(_ context.Context, copyID, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.copies[copyID]
	if ok && c.Status == model.CopyReserved && c.ReservedFor != nil && *c.ReservedFor == userID {
		r.s.setCopyStatus(c, model.CopyAvailable, nil)
	}
	return nil
}

// Delete refuses copies with an ACTIVE or OVERDUE loan.  Closed loans of
// the copy are removed with it.
func (r *CopyRepo) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.copies[id]; !ok {
		return repository.ErrNotFound
	}
	for _, l := range r.s.loans {
		if l.CopyID == id && l.Status.Open() {
			return repository.ErrCopyInUse
		}
	}
	for lid, l := range r.s.loans {
		if l.CopyID == id {
			delete(r.s.loans, lid)
		}
	}
	delete(r.s.copies, id)
	return nil
}
