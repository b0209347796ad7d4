package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/library-api/internal/model"
)

// CategoryRepo encapsulates database operations for categories.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

const categoryColumns = "id, name, description, created_at, updated_at"

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	var (
		c    model.Category
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	c.Description = stringPtr(desc)
	return &c, nil
}

func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`, c.Name, nullString(c.Description))
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateName
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
	*c = *created
	return nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (*model.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
}

func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, nullString(c.Description), c.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateName
		}
		return err
	}
	updated, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *updated
	return nil
}

// Delete removes a category that no book references.
func (r *CategoryRepo) Delete(ctx context.Context, id uint64) error {
	err := affected(r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id))
	if isReferenced(err) {
		return ErrInUse
	}
	return err
}
