package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

type CategoryRepo struct{ s *Store }

func cloneCategory(c *model.Category) *model.Category {
	out := *c
	out.Description = strPtr(c.Description)
	return &out
}

func (r *CategoryRepo) nameTaken(name string, except uint64) bool {
	for id, c := range r.s.categories {
		if id != except && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (r *CategoryRepo) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(c.Name, 0) {
		return repository.ErrDuplicateName
	}
	now := r.s.now()
	c.ID = r.s.nextID()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.categories[c.ID] = cloneCategory(c)
	return nil
}

func (r *CategoryRepo) GetByID(_ context.Context, id uint64) (*model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCategory(c), nil
}

func (r *CategoryRepo) List(_ context.Context) ([]model.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, *cloneCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CategoryRepo) Update(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.categories[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(c.Name, c.ID) {
		return repository.ErrDuplicateName
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = r.s.now()
	r.s.categories[c.ID] = cloneCategory(c)
	return nil
}

func (r *CategoryRepo) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return repository.ErrNotFound
	}
	for _, b := range r.s.books {
		if b.CategoryID == id {
			return repository.ErrInUse
		}
	}
	delete(r.s.categories, id)
	return nil
}

type BookRepo struct{ s *Store }

func cloneBook(b *model.Book) model.Book {
	out := *b
	out.Editorial = strPtr(b.Editorial)
	out.Year = intPtr(b.Year)
	out.Description = strPtr(b.Description)
	out.ImageURL = strPtr(b.ImageURL)
	return out
}

// bookDetail joins the category.  Caller holds the lock.
func (s *Store) bookDetail(b *model.Book) model.BookDetail {
	d := model.BookDetail{Book: cloneBook(b)}
	if c, ok := s.categories[b.CategoryID]; ok {
		d.CategoryName = c.Name
	}
	return d
}

func (r *BookRepo) isbnTaken(isbn string, except uint64) bool {
	for id, b := range r.s.books {
		if id != except && b.ISBN == isbn {
			return true
		}
	}
	return false
}

func (r *BookRepo) Create(_ context.Context, b *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.isbnTaken(b.ISBN, 0) {
		return repository.ErrDuplicateISBN
	}
	if _, ok := r.s.categories[b.CategoryID]; !ok {
		return repository.ErrNotFound
	}
	now := r.s.now()
	b.ID = r.s.nextID()
	b.CreatedAt, b.UpdatedAt = now, now
	stored := cloneBook(b)
	r.s.books[b.ID] = &stored
	return nil
}

func (r *BookRepo) GetByID(_ context.Context, id uint64) (*model.BookDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := r.s.bookDetail(b)
	return &d, nil
}

// List matches Query case-insensitively against title, author and isbn
// and orders by title then id.
func (r *BookRepo) List(_ context.Context, f repository.BookFilter) ([]model.BookDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := []model.BookDetail{}
	for _, b := range r.s.books {
		if f.CategoryID != 0 && b.CategoryID != f.CategoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(b.Author), q) &&
			!strings.Contains(strings.ToLower(b.ISBN), q) {
			continue
		}
		if f.AvailableOnly && r.s.countAvailable(b.ID) == 0 {
			continue
		}
		out = append(out, r.s.bookDetail(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *BookRepo) Update(_ context.Context, b *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.books[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.isbnTaken(b.ISBN, b.ID) {
		return repository.ErrDuplicateISBN
	}
	if _, ok := r.s.categories[b.CategoryID]; !ok {
		return repository.ErrNotFound
	}
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = r.s.now()
	stored := cloneBook(b)
	r.s.books[b.ID] = &stored
	return nil
}

// Delete refuses books that still have copies or reservations.
func (r *BookRepo) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.books[id]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range r.s.copies {
		if c.BookID == id {
			return repository.ErrInUse
		}
	}
	for _, res := range r.s.reservations {
		if res.BookID == id {
			return repository.ErrInUse
		}
	}
	delete(r.s.books, id)
	return nil
}
