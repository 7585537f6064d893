package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/utils"
)

// SeedAccount is a user created by the seed command when missing.
type SeedAccount struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// DefaultAccounts are the development accounts for each staff role.
func DefaultAccounts() []SeedAccount {
	return []SeedAccount{
		{Name: "Super Admin", Email: "admin@example.com", Password: "admin123", Role: permission.Admin},
		{Name: "John Teacher", Email: "teacher@example.com", Password: "teacher123", Role: permission.Teacher},
	}
}

// Seed inserts the accounts whose email is not taken yet. Existing users
// are left untouched, so seeding twice is a no-op.
func Seed(ctx context.Context, db *bun.DB, accounts []SeedAccount, cost int, log logrus.FieldLogger) error {
	for _, a := range accounts {
		roleID, ok := permission.RoleID(a.Role)
		if !ok {
			return fmt.Errorf("seed %s: unknown role %q", a.Email, a.Role)
		}
		exists, err := db.NewSelect().Model((*model.User)(nil)).Where("email = ?", a.Email).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			log.WithField("email", a.Email).Info("seed: user exists, skipping")
			continue
		}
		hash, err := utils.HashPassword(a.Password, cost)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		u := &model.User{
			Name:         a.Name,
			Email:        a.Email,
			PasswordHash: hash,
			RoleID:       roleID,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := db.NewInsert().Model(u).Exec(ctx); err != nil {
			return fmt.Errorf("seed %s: %w", a.Email, err)
		}
		log.WithFields(logrus.Fields{"email": a.Email, "role": a.Role}).Info("seed: user created")
	}
	return nil
}
