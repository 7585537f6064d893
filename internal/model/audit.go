package model

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLog records a state change. Before and After hold JSON snapshots of
// the affected entity and are nil for creations and deletions respectively.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID        int64          `bun:"id,pk,autoincrement" json:"id"`
	Entity    string         `bun:"entity,notnull,type:varchar(50)" json:"entity"`
	Action    string         `bun:"action,notnull,type:varchar(50)" json:"action"`
	UserID    *int64         `bun:"user_id" json:"userId"`
	Before    map[string]any `bun:"before,type:json" json:"before"`
	After     map[string]any `bun:"after,type:json" json:"after"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
