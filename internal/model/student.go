package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Student is a row in the `students` table. NISN is the national student
// number and is unique.
type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	NISN            string    `bun:"nisn,notnull,unique,type:varchar(30)" json:"nisn"`
	Name            string    `bun:"name,notnull,type:varchar(120)" json:"name"`
	DOB             time.Time `bun:"dob,notnull" json:"dob"`
	GuardianContact *string   `bun:"guardian_contact,type:varchar(120)" json:"guardianContact"`
	IsActive        bool      `bun:"is_active,notnull,default:true" json:"isActive"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
