package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/iliyamo/student-records/internal/model"
)

// UserChanges lists the columns to update; nil fields are left untouched.
type UserChanges struct {
	Name         *string
	Email        *string
	PasswordHash *string
	RoleID       *int64
	IsActive     *bool
}

func (c UserChanges) empty() bool {
	return c.Name == nil && c.Email == nil && c.PasswordHash == nil && c.RoleID == nil && c.IsActive == nil
}

// UserRepo stores users. Every read joins the user's role.
type UserRepo struct{ DB bun.IDB }

// NewUserRepo returns a UserRepo on db.
func NewUserRepo(db bun.IDB) *UserRepo { return &UserRepo{DB: db} }

var userSortColumns = map[string]string{
	"name":      "u.name",
	"email":     "u.email",
	"createdAt": "u.created_at",
	"updatedAt": "u.updated_at",
}

// FindByEmail returns the user with exactly this email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u := new(model.User)
	err := r.DB.NewSelect().Model(u).Relation("Role").
		Where("u.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// FindByID returns the user with this id.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u := new(model.User)
	err := r.DB.NewSelect().Model(u).Relation("Role").
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// EmailTaken reports whether another user than exceptID owns email.
func (r *UserRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	return r.DB.NewSelect().Model((*model.User)(nil)).
		Where("email = ?", email).
		Where("id <> ?", exceptID).
		Exists(ctx)
}

// Create inserts u and fills in its id. A duplicate email yields
// ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := r.DB.NewInsert().Model(u).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// Update applies ch to the user and bumps updated_at. It returns
// ErrNotFound when no row matched.
func (r *UserRepo) Update(ctx context.Context, id int64, ch UserChanges) error {
	if ch.empty() {
		_, err := r.FindByID(ctx, id)
		return err
	}
	q := r.DB.NewUpdate().Model((*model.User)(nil)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if ch.Name != nil {
		q = q.Set("name = ?", *ch.Name)
	}
	if ch.Email != nil {
		q = q.Set("email = ?", *ch.Email)
	}
	if ch.PasswordHash != nil {
		q = q.Set("password = ?", *ch.PasswordHash)
	}
	if ch.RoleID != nil {
		q = q.Set("role_id = ?", *ch.RoleID)
	}
	if ch.IsActive != nil {
		q = q.Set("is_active = ?", *ch.IsActive)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user; refresh tokens go with it through the foreign
// key cascade.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.NewDelete().Model((*model.User)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of users matching p.Search on name or email.
func (r *UserRepo) List(ctx context.Context, p ListParams) (Page[model.User], error) {
	p = p.normalized()
	var users []model.User
	q := r.DB.NewSelect().Model(&users).Relation("Role")
	if p.Search != "" {
		like := p.likePattern()
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(u.name) LIKE ?", like).WhereOr("LOWER(u.email) LIKE ?", like)
		})
	}
	q = p.applyOrder(q, userSortColumns, "u.updated_at")
	total, err := q.Limit(p.PerPage).Offset(p.offset()).ScanAndCount(ctx)
	if err != nil {
		return Page[model.User]{}, err
	}
	return newPage(users, total, p), nil
}
