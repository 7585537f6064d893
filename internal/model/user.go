package model

import (
	"time"

	"github.com/uptrace/bun"
)

// User mirrors the `users` table. The password hash never leaves the
// process: it is excluded from JSON so a User can be returned to clients
// as-is once loaded with its Role.
//
// Fields:
//
//	ID           – primary key.
//	Name         – display name.
//	Email        – unique, compared case-sensitively.
//	PasswordHash – bcrypt hash (column `password`).
//	RoleID       – foreign key into `roles`.
//	Role         – the joined role row, populated by the repository.
//	IsActive     – deactivated users cannot log in.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Name         string    `bun:"name,notnull,type:varchar(100)" json:"name"`
	Email        string    `bun:"email,notnull,unique,type:varchar(255)" json:"email"`
	PasswordHash string    `bun:"password,notnull" json:"-"`
	RoleID       int64     `bun:"role_id,notnull" json:"-"`
	Role         *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
	IsActive     bool      `bun:"is_active,notnull,default:true" json:"isActive"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// RoleName returns the joined role name, or "" when the role was not loaded.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Role is a row in the `roles` table. Ids are fixed (see package
// permission) and inserted by the initial migration.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:role"`

	ID   int64  `bun:"id,pk" json:"id"`
	Name string `bun:"name,notnull,unique,type:varchar(50)" json:"name"`
}

// RefreshToken is an issued, not yet consumed refresh token. Only the
// SHA-256 digest of the token string is stored; lookups hash the presented
// value. A unique index on user_id keeps at most one row per user.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	TokenHash string    `bun:"token_hash,pk,type:varchar(64)"`
	UserID    int64     `bun:"user_id,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
