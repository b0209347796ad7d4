package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-api/internal/model"
)

const userColumns = "id,name,email,password_hash,role,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Create inserts the user and fills in its ID and timestamps.  The
// email is normalised to lower case before insertion.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, u.Role)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
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
	*u = *created
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update writes name, email, role and password hash.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, email=?, password_hash=?, role=? WHERE id=?",
		u.Name, u.Email, u.PasswordHash, u.Role, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	updated, err := r.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	*u = *updated
	return nil
}

// Delete removes the user.  Users referenced by loans or reservations
// cannot be deleted.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	err := affected(r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id))
	if isReferenced(err) {
		return ErrInUse
	}
	return err
}
