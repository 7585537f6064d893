package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/permission"
)

// Tables are created from the bun models so the same migration runs on
// Postgres and MySQL. Foreign keys are written without identifier quoting
// for the same reason.
var schema = []struct {
	model       any
	foreignKeys []string
}{
	{model: (*model.Role)(nil)},
	{model: (*model.User)(nil), foreignKeys: []string{"(role_id) REFERENCES roles (id)"}},
	{model: (*model.RefreshToken)(nil), foreignKeys: []string{"(user_id) REFERENCES users (id) ON DELETE CASCADE"}},
	{model: (*model.Student)(nil)},
	{model: (*model.AuditLog)(nil)},
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, t := range schema {
			q := db.NewCreateTable().Model(t.model).IfNotExists()
			for _, fk := range t.foreignKeys {
				q = q.ForeignKey(fk)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("create %T: %w", t.model, err)
			}
		}

		for _, name := range permission.RoleNames() {
			id, _ := permission.RoleID(name)
			exists, err := db.NewSelect().Model((*model.Role)(nil)).Where("id = ?", id).Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := db.NewInsert().Model(&model.Role{ID: id, Name: name}).Exec(ctx); err != nil {
				return fmt.Errorf("insert role %s: %w", name, err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for i := len(schema) - 1; i >= 0; i-- {
			if _, err := db.NewDropTable().Model(schema[i].model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
