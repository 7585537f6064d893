package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/iliyamo/student-records/internal/model"
)

// StudentRepo stores students. NISN is unique.
type StudentRepo struct{ DB bun.IDB }

// NewStudentRepo returns a StudentRepo on db.
func NewStudentRepo(db bun.IDB) *StudentRepo { return &StudentRepo{DB: db} }

var studentSortColumns = map[string]string{
	"name":      "s.name",
	"nisn":      "s.nisn",
	"dob":       "s.dob",
	"createdAt": "s.created_at",
	"updatedAt": "s.updated_at",
}

// FindByID returns the student with this id or ErrNotFound.
func (r *StudentRepo) FindByID(ctx context.Context, id int64) (*model.Student, error) {
	s := new(model.Student)
	if err := r.DB.NewSelect().Model(s).Where("s.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Create inserts s. A duplicate NISN yields ErrConflict.
func (r *StudentRepo) Create(ctx context.Context, s *model.Student) error {
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if _, err := r.DB.NewInsert().Model(s).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Update writes every column of s except created_at.
func (r *StudentRepo) Update(ctx context.Context, s *model.Student) error {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.DB.NewUpdate().Model(s).ExcludeColumn("created_at").WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the student or returns ErrNotFound.
func (r *StudentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.NewDelete().Model((*model.Student)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of students matching p.Search on name or NISN.
func (r *StudentRepo) List(ctx context.Context, p ListParams) (Page[model.Student], error) {
	p = p.normalized()
	var students []model.Student
	q := r.DB.NewSelect().Model(&students)
	if p.Search != "" {
		like := p.likePattern()
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(s.name) LIKE ?", like).WhereOr("LOWER(s.nisn) LIKE ?", like)
		})
	}
	q = p.applyOrder(q, studentSortColumns, "s.updated_at")
	total, err := q.Limit(p.PerPage).Offset(p.offset()).ScanAndCount(ctx)
	if err != nil {
		return Page[model.Student]{}, err
	}
	return newPage(students, total, p), nil
}

// All returns every student ordered by id, for export.
func (r *StudentRepo) All(ctx context.Context) ([]model.Student, error) {
	var students []model.Student
	if err := r.DB.NewSelect().Model(&students).Order("s.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return students, nil
}
