package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-api/internal/model"
)

// ReservationRepo is the MySQL reservation queue.  Queue order is
// created_at ascending with id as tiebreaker.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, book_id, status, created_at, updated_at`

const reservationDetailSelect = `SELECT r.id, r.user_id, r.book_id, r.status, r.created_at, r.updated_at,
       u.name, u.email, b.title, b.author, b.isbn
FROM reservations r
JOIN users u ON u.id = r.user_id
JOIN books b ON b.id = r.book_id`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var res model.Reservation
	if err := row.Scan(&res.ID, &res.UserID, &res.BookID, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func scanReservationDetail(row interface{ Scan(...any) error }) (*model.ReservationDetail, error) {
	var d model.ReservationDetail
	err := row.Scan(&d.ID, &d.UserID, &d.BookID, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.UserName, &d.UserEmail, &d.BookTitle, &d.BookAuthor, &d.BookISBN)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// CreateIfUnavailable enqueues a reservation.  The book row is locked so
// that concurrent requests for the same book see each other; under that
// lock the book must have no AVAILABLE copy and the user no other ACTIVE
// reservation for it.
func (r *ReservationRepo) CreateIfUnavailable(ctx context.Context, res *model.Reservation) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM books WHERE id = ? FOR UPDATE`, res.BookID).Scan(&locked); err != nil {
			return notFound(err)
		}
		var available int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM copies WHERE book_id = ? AND status = 'AVAILABLE'`, res.BookID).Scan(&available); err != nil {
			return err
		}
		if available > 0 {
			return ErrCopiesAvailable
		}
		var dup int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reservations WHERE user_id = ? AND book_id = ? AND status = 'ACTIVE'`,
			res.UserID, res.BookID).Scan(&dup); err != nil {
			return err
		}
		if dup > 0 {
			return ErrDuplicateReservation
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (user_id, book_id, status) VALUES (?, ?, 'ACTIVE')`, res.UserID, res.BookID)
		if err != nil {
			if isMissingParent(err) {
				return ErrNotFound
			}
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		created, err := scanReservation(tx.QueryRowContext(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
		if err != nil {
			return err
		}
		*res = *created
		return nil
	})
}

func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

func (r *ReservationRepo) GetDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	return scanReservationDetail(r.db.QueryRowContext(ctx, reservationDetailSelect+` WHERE r.id = ?`, id))
}

// List returns reservations matching f in queue order.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.ReservationDetail, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		where = append(where, "r.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.BookID != 0 {
		where = append(where, "r.book_id = ?")
		args = append(args, f.BookID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	query := reservationDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at ASC, r.id ASC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationDetail{}
	for rows.Next() {
		d, err := scanReservationDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Transition moves an ACTIVE reservation to status.  The update is
// conditioned on status = 'ACTIVE'; a miss on an existing row yields
// ErrReservationNotActive.
func (r *ReservationRepo) Transition(ctx context.Context, id uint64, status model.ReservationStatus) (*model.Reservation, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = 'ACTIVE'`, status, id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrReservationNotActive
	}
	return r.GetByID(ctx, id)
}

func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id))
}
