package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

const (
	maxCategoryName        = 100
	maxCategoryDescription = 500
	minISBN, maxISBN       = 10, 13
	minYear                = 1000
)

// CatalogService manages categories and books.
type CatalogService struct {
	categories CategoryStore
	books      BookStore
	log        *zap.Logger
	now        Clock
}

func NewCatalogService(categories CategoryStore, books BookStore, log *zap.Logger) *CatalogService {
	if categories == nil || books == nil || log == nil {
		panic("nil dependency passed to NewCatalogService")
	}
	return &CatalogService{categories: categories, books: books, log: log, now: utcNow}
}

// CategoryInput carries the writable fields of a category.
type CategoryInput struct {
	Name        *string
	Description *string
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	if in.Name == nil {
		return nil, invalid(CodeInvalidInput, "name is required")
	}
	c := &model.Category{}
	if err := applyCategory(c, in); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fromStore(err, CodeCategoryNotFound, "category not found")
	}
	s.log.Info("category created", zap.Uint64("category_id", c.ID), zap.String("name", c.Name))
	return c, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id uint64) (*model.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeCategoryNotFound, "category not found")
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	out, err := s.categories.List(ctx)
	if err != nil {
		return nil, internal("list categories", err)
	}
	return out, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint64, in CategoryInput) (*model.Category, error) {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCategory(c, in); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fromStore(err, CodeCategoryNotFound, "category not found")
	}
	return c, nil
}

// DeleteCategory fails with in_use while books reference the category.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint64) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return fromStore(err, CodeCategoryNotFound, "category not found")
	}
	s.log.Info("category deleted", zap.Uint64("category_id", id))
	return nil
}

func applyCategory(c *model.Category, in CategoryInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || utf8.RuneCountInString(name) > maxCategoryName {
			return invalid(CodeInvalidInput, "name must be 1 to 100 characters")
		}
		c.Name = name
	}
	if in.Description != nil {
		if utf8.RuneCountInString(*in.Description) > maxCategoryDescription {
			return invalid(CodeInvalidInput, "description must be at most 500 characters")
		}
		d := *in.Description
		c.Description = &d
	}
	return nil
}

// BookInput carries the writable fields of a book.  Nil pointers leave
// the field unchanged on update.
type BookInput struct {
	Title       *string
	Author      *string
	ISBN        *string
	Editorial   *string
	Year        *int
	CategoryID  *uint64
	Description *string
	ImageURL    *string
}

func (s *CatalogService) CreateBook(ctx context.Context, in BookInput) (*model.BookDetail, error) {
	if in.Title == nil || in.Author == nil || in.ISBN == nil || in.CategoryID == nil {
		return nil, invalid(CodeInvalidInput, "title, author, isbn and category_id are required")
	}
	b := &model.Book{}
	if err := s.applyBook(ctx, b, in); err != nil {
		return nil, err
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, fromStore(err, CodeCategoryNotFound, "category not found")
	}
	s.log.Info("book created", zap.Uint64("book_id", b.ID), zap.String("isbn", b.ISBN))
	return s.GetBook(ctx, b.ID)
}

func (s *CatalogService) GetBook(ctx context.Context, id uint64) (*model.BookDetail, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeBookNotFound, "book not found")
	}
	return b, nil
}

func (s *CatalogService) ListBooks(ctx context.Context, f repository.BookFilter) ([]model.BookDetail, error) {
	f.Query = strings.TrimSpace(f.Query)
	out, err := s.books.List(ctx, f)
	if err != nil {
		return nil, internal("list books", err)
	}
	return out, nil
}

func (s *CatalogService) UpdateBook(ctx context.Context, id uint64, in BookInput) (*model.BookDetail, error) {
	current, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	b := current.Book
	if err := s.applyBook(ctx, &b, in); err != nil {
		return nil, err
	}
	if err := s.books.Update(ctx, &b); err != nil {
		return nil, fromStore(err, CodeBookNotFound, "book not found")
	}
	return s.GetBook(ctx, id)
}

// DeleteBook fails with in_use while copies of the book exist.
func (s *CatalogService) DeleteBook(ctx context.Context, id uint64) error {
	if err := s.books.Delete(ctx, id); err != nil {
		return fromStore(err, CodeBookNotFound, "book not found")
	}
	s.log.Info("book deleted", zap.Uint64("book_id", id))
	return nil
}

func (s *CatalogService) applyBook(ctx context.Context, b *model.Book, in BookInput) error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return invalid(CodeInvalidInput, "title is required")
		}
		b.Title = t
	}
	if in.Author != nil {
		a := strings.TrimSpace(*in.Author)
		if a == "" {
			return invalid(CodeInvalidInput, "author is required")
		}
		b.Author = a
	}
	if in.ISBN != nil {
		isbn := strings.TrimSpace(*in.ISBN)
		if n := len(isbn); n < minISBN || n > maxISBN {
			return invalid(CodeInvalidInput, "isbn must be 10 to 13 characters")
		}
		b.ISBN = isbn
	}
	if in.Year != nil {
		if y := *in.Year; y < minYear || y > s.now().Year() {
			return invalid(CodeInvalidInput, "year out of range")
		}
		y := *in.Year
		b.Year = &y
	}
	if in.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *in.CategoryID); err != nil {
			return fromStore(err, CodeCategoryNotFound, "category not found")
		}
		b.CategoryID = *in.CategoryID
	}
	b.Editorial = keep(b.Editorial, in.Editorial)
	b.Description = keep(b.Description, in.Description)
	b.ImageURL = keep(b.ImageURL, in.ImageURL)
	return nil
}

// keep returns next when set, else cur.
func keep(cur, next *string) *string {
	if next == nil {
		return cur
	}
	v := *next
	return &v
}

// WithClock replaces the clock used by the year check.
func (s *CatalogService) WithClock(c Clock) *CatalogService {
	s.now = c
	return s
}

