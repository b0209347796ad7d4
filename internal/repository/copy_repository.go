package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-api/internal/model"
)

// CopyRepo is the MySQL copy registry.  Status writes that are part of
// the loan lifecycle happen in LoanRepo so that they share a
// transaction with the ledger row; this repo holds the plain status
// store plus the conditional hold transitions used by reservations.
type CopyRepo struct {
	db *sql.DB
}

func NewCopyRepo(db *sql.DB) *CopyRepo { return &CopyRepo{db: db} }

const copySelect = `SELECT c.id, c.book_id, c.code, c.status, c.reserved_for, c.created_at, c.updated_at,
       b.title, b.author, b.isbn
FROM copies c
JOIN books b ON b.id = c.book_id`

func scanCopy(row interface{ Scan(...any) error }) (*model.CopyDetail, error) {
	var (
		c           model.CopyDetail
		reservedFor sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.BookID, &c.Code, &c.Status, &reservedFor, &c.CreatedAt, &c.UpdatedAt,
		&c.BookTitle, &c.BookAuthor, &c.BookISBN)
	if err != nil {
		return nil, notFound(err)
	}
	if reservedFor.Valid {
		u := uint64(reservedFor.Int64)
		c.ReservedFor = &u
	}
	return &c, nil
}

// Create inserts a copy.  Missing books surface as ErrNotFound and
// duplicate codes as ErrDuplicateCode.
func (r *CopyRepo) Create(ctx context.Context, c *model.Copy) error {
	if c.Status == "" {
		c.Status = model.CopyAvailable
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO copies (book_id, code, status) VALUES (?, ?, ?)`, c.BookID, c.Code, c.Status)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrDuplicateCode
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
	*c = created.Copy
	return nil
}

func (r *CopyRepo) GetByID(ctx context.Context, id uint64) (*model.CopyDetail, error) {
	return scanCopy(r.db.QueryRowContext(ctx, copySelect+` WHERE c.id = ?`, id))
}

func (r *CopyRepo) List(ctx context.Context, f CopyFilter) ([]model.CopyDetail, error) {
	var (
		where []string
		args  []any
	)
	if f.BookID != 0 {
		where = append(where, "c.book_id = ?")
		args = append(args, f.BookID)
	}
	if f.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, f.Status)
	}
	query := copySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CopyDetail{}
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update writes the book and code of a copy.  Status is changed only
// through SetStatus or the lifecycle operations.
func (r *CopyRepo) Update(ctx context.Context, c *model.Copy) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE copies SET book_id = ?, code = ? WHERE id = ?`, c.BookID, c.Code, c.ID)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrDuplicateCode
		case isMissingParent(err):
			return ErrNotFound
		}
		return err
	}
	updated, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = updated.Copy
	return nil
}

// SetStatus unconditionally writes the status.  Any reservation hold is
// dropped because the override replaces it.
func (r *CopyRepo) SetStatus(ctx context.Context, id uint64, status model.CopyStatus) (*model.Copy, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE copies SET status = ?, reserved_for = NULL WHERE id = ?`, status, id); err != nil {
		return nil, err
	}
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c.Copy, nil
}

// CountAvailable counts AVAILABLE copies of a book.
func (r *CopyRepo) CountAvailable(ctx context.Context, bookID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM copies WHERE book_id = ? AND status = 'AVAILABLE'`, bookID).Scan(&n)
	return n, err
}

// Hold moves an AVAILABLE copy to RESERVED for userID.  It returns
// ErrCopyUnavailable when the copy was not AVAILABLE at write time.
func (r *CopyRepo) Hold(ctx context.Context, copyID, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE copies SET status = 'RESERVED', reserved_for = ? WHERE id = ? AND status = 'AVAILABLE'`,
		userID, copyID)
	if err := affected(res, err); err != nil {
		if err == ErrNotFound {
			return ErrCopyUnavailable
		}
		return err
	}
	return nil
}

// ReleaseHold returns a copy held for userID to AVAILABLE.  It is a
// no-op when the hold is gone.
func (r *CopyRepo) ReleaseHold(ctx context.Context, copyID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE copies SET status = 'AVAILABLE', reserved_for = NULL
		 WHERE id = ? AND status = 'RESERVED' AND reserved_for = ?`, copyID, userID)
	return err
}

// Delete removes a copy that has no ACTIVE or OVERDUE loan.  The copy
// row is locked first so a loan cannot be opened between the check and
// the delete.
func (r *CopyRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM copies WHERE id = ? FOR UPDATE`, id).Scan(&locked); err != nil {
			return notFound(err)
		}
		var open int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM loans WHERE copy_id = ? AND status IN ('ACTIVE','OVERDUE')`, id).Scan(&open); err != nil {
			return err
		}
		if open > 0 {
			return ErrCopyInUse
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM copies WHERE id = ?`, id)
		return err
	})
}
