package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/iliyamo/student-records/internal/model"
)

// AuditRepo appends rows to audit_log. Rows are never updated.
type AuditRepo struct{ DB bun.IDB }

// NewAuditRepo returns an AuditRepo on db.
func NewAuditRepo(db bun.IDB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert appends entry, stamping CreatedAt when unset, and fills in its id.
func (r *AuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.NewInsert().Model(entry).Exec(ctx)
	return err
}
