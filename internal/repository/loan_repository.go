package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/library-api/internal/model"
)

// LoanRepo is the MySQL loan ledger.  Every operation that changes the
// availability of a copy writes the loan row and the copy row in the
// same transaction, so the two tables never disagree.
type LoanRepo struct {
	db *sql.DB
}

func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

const loanColumns = `id, user_id, copy_id, status, due_date, returned_at, created_at, updated_at`

const loanDetailSelect = `SELECT l.id, l.user_id, l.copy_id, l.status, l.due_date, l.returned_at, l.created_at, l.updated_at,
       u.name, u.email, c.code, b.id, b.title, b.author, b.isbn
FROM loans l
JOIN users u ON u.id = l.user_id
JOIN copies c ON c.id = l.copy_id
JOIN books b ON b.id = c.book_id`

func scanLoan(row interface{ Scan(...any) error }) (*model.Loan, error) {
	var (
		l          model.Loan
		returnedAt sql.NullTime
	)
	err := row.Scan(&l.ID, &l.UserID, &l.CopyID, &l.Status, &l.DueDate, &returnedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		l.ReturnedAt = &t
	}
	return &l, nil
}

func scanLoanDetail(row interface{ Scan(...any) error }) (*model.LoanDetail, error) {
	var (
		d          model.LoanDetail
		returnedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.UserID, &d.CopyID, &d.Status, &d.DueDate, &returnedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.UserName, &d.UserEmail, &d.CopyCode, &d.BookID, &d.BookTitle, &d.BookAuthor, &d.BookISBN)
	if err != nil {
		return nil, notFound(err)
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		d.ReturnedAt = &t
	}
	return &d, nil
}

// CreateClaimingCopy opens a loan.  The copy is claimed with a single
// conditional update: it must be AVAILABLE, or RESERVED for the
// borrowing user.  When no row matches, ErrCopyUnavailable is returned
// and nothing is written.
func (r *LoanRepo) CreateClaimingCopy(ctx context.Context, l *model.Loan) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE copies SET status = 'LOANED', reserved_for = NULL
			 WHERE id = ? AND (status = 'AVAILABLE' OR (status = 'RESERVED' AND reserved_for = ?))`,
			l.CopyID, l.UserID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrCopyUnavailable
		}
		res, err = tx.ExecContext(ctx,
			`INSERT INTO loans (user_id, copy_id, status, due_date) VALUES (?, ?, ?, ?)`,
			l.UserID, l.CopyID, model.LoanActive, l.DueDate.UTC())
		if err != nil {
			if isMissingParent(err) {
				return ErrNotFound
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		created, err := scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
		if err != nil {
			return err
		}
		*l = *created
		return nil
	})
}

func (r *LoanRepo) GetByID(ctx context.Context, id uint64) (*model.Loan, error) {
	return scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
}

func (r *LoanRepo) GetDetail(ctx context.Context, id uint64) (*model.LoanDetail, error) {
	return scanLoanDetail(r.db.QueryRowContext(ctx, loanDetailSelect+` WHERE l.id = ?`, id))
}

// List returns loans matching f, newest first.
func (r *LoanRepo) List(ctx context.Context, f LoanFilter) ([]model.LoanDetail, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		where = append(where, "l.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "l.status = ?")
		args = append(args, f.Status)
	}
	if f.OverdueAt != nil {
		where = append(where, "(l.status = 'OVERDUE' OR (l.status = 'ACTIVE' AND l.due_date < ?))")
		args = append(args, f.OverdueAt.UTC())
	}
	query := loanDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY l.created_at DESC, l.id DESC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LoanDetail{}
	for rows.Next() {
		d, err := scanLoanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// lockLoan reads a loan row with FOR UPDATE inside tx.
func lockLoan(ctx context.Context, tx *sql.Tx, id uint64) (*model.Loan, error) {
	return scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ? FOR UPDATE`, id))
}

func statusIn(s model.LoanStatus, allowed []model.LoanStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// Return closes a loan whose status is one of from, stamps returnedAt
// and releases the copy back to AVAILABLE.
func (r *LoanRepo) Return(ctx context.Context, id uint64, from []model.LoanStatus, at time.Time) (*model.Loan, error) {
	var out *model.Loan
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		l, err := lockLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if !statusIn(l.Status, from) {
			return ErrLoanNotReturnable
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET status = 'RETURNED', returned_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE copies SET status = 'AVAILABLE', reserved_for = NULL WHERE id = ?`, l.CopyID); err != nil {
			return err
		}
		out, err = scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDueDate moves the due date of an open loan.  An OVERDUE loan
// whose new due date lies after now becomes ACTIVE again.
func (r *LoanRepo) UpdateDueDate(ctx context.Context, id uint64, due, now time.Time) (*model.Loan, error) {
	var out *model.Loan
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		l, err := lockLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if !l.Status.Open() {
			return ErrLoanNotReturnable
		}
		status := l.Status
		if status == model.LoanOverdue && due.After(now) {
			status = model.LoanActive
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET due_date = ?, status = ? WHERE id = ?`, due.UTC(), status, id); err != nil {
			return err
		}
		out, err = scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete hard-deletes a loan.  When its status is in release the copy
// goes back to AVAILABLE in the same transaction.  The deleted row is
// returned.
func (r *LoanRepo) Delete(ctx context.Context, id uint64, release []model.LoanStatus) (*model.Loan, error) {
	var out *model.Loan
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		l, err := lockLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		if statusIn(l.Status, release) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE copies SET status = 'AVAILABLE', reserved_for = NULL WHERE id = ?`, l.CopyID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkOverdue flips every ACTIVE loan due before now to OVERDUE and
// returns how many rows changed.  Already OVERDUE rows are untouched,
// so repeated calls are harmless.
func (r *LoanRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loans SET status = 'OVERDUE' WHERE status = 'ACTIVE' AND due_date < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
