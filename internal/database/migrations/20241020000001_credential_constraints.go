package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/iliyamo/student-records/internal/model"
)

// refreshOwnerIndex makes refresh_tokens.user_id unique; the token store
// upserts on it.
const refreshOwnerIndex = "refresh_tokens_user_id_key"

func init() {
	Migrations.MustRegister(tightenCredentials, loosenCredentials)
}

// tightenCredentials enforces one refresh token per user and, on MySQL,
// switches users.email to a binary collation so lookups stay
// case-sensitive like they are on Postgres. Existing refresh tokens are
// dropped; their holders log in again.
func tightenCredentials(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewDelete().Model((*model.RefreshToken)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("clear refresh tokens: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*model.RefreshToken)(nil)).
		Unique().
		Index(refreshOwnerIndex).
		Column("user_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create %s: %w", refreshOwnerIndex, err)
	}

	if db.Dialect().Name() == dialect.MySQL {
		if _, err := db.ExecContext(ctx,
			"ALTER TABLE users MODIFY email VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL"); err != nil {
			return fmt.Errorf("users.email collation: %w", err)
		}
	}
	return nil
}

func loosenCredentials(ctx context.Context, db *bun.DB) error {
	if db.Dialect().Name() == dialect.MySQL {
		if _, err := db.ExecContext(ctx, "ALTER TABLE users MODIFY email VARCHAR(255) NOT NULL"); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, "DROP INDEX "+refreshOwnerIndex+" ON refresh_tokens")
		return err
	}
	_, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+refreshOwnerIndex)
	return err
}
