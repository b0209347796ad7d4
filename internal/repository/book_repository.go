package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-api/internal/model"
)

// BookRepo encapsulates database operations for books.
type BookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookSelect = `SELECT b.id, b.title, b.author, b.isbn, b.editorial, b.year, b.category_id,
       b.description, b.image_url, b.created_at, b.updated_at, cat.name
FROM books b
JOIN categories cat ON cat.id = b.category_id`

func scanBook(row interface{ Scan(...any) error }) (*model.BookDetail, error) {
	var (
		b                         model.BookDetail
		editorial, desc, imageURL sql.NullString
		year                      sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &editorial, &year, &b.CategoryID,
		&desc, &imageURL, &b.CreatedAt, &b.UpdatedAt, &b.CategoryName)
	if err != nil {
		return nil, notFound(err)
	}
	b.Editorial = stringPtr(editorial)
	b.Description = stringPtr(desc)
	b.ImageURL = stringPtr(imageURL)
	if year.Valid {
		y := int(year.Int64)
		b.Year = &y
	}
	return &b, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// Create inserts a book.  A missing category surfaces as ErrNotFound.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO books (title, author, isbn, editorial, year, category_id, description, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.ISBN, nullString(b.Editorial), nullInt(b.Year), b.CategoryID,
		nullString(b.Description), nullString(b.ImageURL))
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrDuplicateISBN
		case isMissingParent(err):
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = created.Book
	return nil
}

func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.BookDetail, error) {
	return scanBook(r.db.QueryRowContext(ctx, bookSelect+` WHERE b.id = ?`, id))
}

// List returns books matching f ordered by title.
func (r *BookRepo) List(ctx context.Context, f BookFilter) ([]model.BookDetail, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != 0 {
		where = append(where, "b.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		where = append(where, "(b.title LIKE ? OR b.author LIKE ? OR b.isbn LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.AvailableOnly {
		where = append(where, "EXISTS (SELECT 1 FROM copies c WHERE c.book_id = b.id AND c.status = 'AVAILABLE')")
	}
	query := bookSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.title, b.id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BookDetail{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, isbn = ?, editorial = ?, year = ?, category_id = ?,
		        description = ?, image_url = ?
		 WHERE id = ?`,
		b.Title, b.Author, b.ISBN, nullString(b.Editorial), nullInt(b.Year), b.CategoryID,
		nullString(b.Description), nullString(b.ImageURL), b.ID)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrDuplicateISBN
		case isMissingParent(err):
			return ErrNotFound
		}
		return err
	}
	updated, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	*b = updated.Book
	return nil
}

// Delete removes a book without copies.  The copy count is read under
// a row lock on the book so a concurrent copy insert cannot slip in.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM books WHERE id = ? FOR UPDATE`, id).Scan(&locked); err != nil {
			return notFound(err)
		}
		var copies int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM copies WHERE book_id = ?`, id).Scan(&copies); err != nil {
			return err
		}
		if copies > 0 {
			return ErrInUse
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		if isReferenced(err) {
			return ErrInUse
		}
		return err
	})
}
