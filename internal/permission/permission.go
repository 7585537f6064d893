// Package permission holds the static role and permission tables used by the
// authorization guard. Permissions are never stored per user: a request is
// allowed when the role carried by its access token grants every permission
// the route declares.
package permission

import "slices"

// Permission is a "<resource>:<action>" capability string.
type Permission string

const (
	UserCreate Permission = "user:create"
	UserRead   Permission = "user:read"
	UserUpdate Permission = "user:update"
	UserDelete Permission = "user:delete"

	ProfileRead   Permission = "profile:read"
	ProfileUpdate Permission = "profile:update"

	RoleCreate Permission = "role:create"
	RoleRead   Permission = "role:read"
	RoleUpdate Permission = "role:update"
	RoleDelete Permission = "role:delete"

	StudentCreate Permission = "student:create"
	StudentRead   Permission = "student:read"
	StudentUpdate Permission = "student:update"
	StudentDelete Permission = "student:delete"
)

// All lists every defined permission.
var All = []Permission{
	UserCreate, UserRead, UserUpdate, UserDelete,
	ProfileRead, ProfileUpdate,
	RoleCreate, RoleRead, RoleUpdate, RoleDelete,
	StudentCreate, StudentRead, StudentUpdate, StudentDelete,
}

// Role names as stored in the roles table and carried in access tokens.
const (
	Admin   = "admin"
	Teacher = "teacher"
	Student = "student"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = Teacher

var roleIDs = map[string]int64{
	Admin:   1,
	Teacher: 2,
	Student: 3,
}

// RoleID returns the fixed row id of a role name.
func RoleID(name string) (int64, bool) {
	id, ok := roleIDs[name]
	return id, ok
}

// RoleNames returns the known role names ordered by id.
func RoleNames() []string {
	return []string{Admin, Teacher, Student}
}

// Table maps a role name to the set of permissions it grants. It is built
// once and never changes afterwards, so it is safe to share between
// goroutines without locking.
type Table struct {
	grants map[string]map[Permission]struct{}
}

// NewTable copies grants into an immutable Table.
func NewTable(grants map[string][]Permission) *Table {
	t := &Table{grants: make(map[string]map[Permission]struct{}, len(grants))}
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		t.grants[role] = set
	}
	return t
}

// DefaultTable returns the application's role table.
func DefaultTable() *Table {
	return NewTable(map[string][]Permission{
		Admin:   All,
		Teacher: {UserRead, ProfileRead, ProfileUpdate, StudentRead},
		Student: {ProfileRead, ProfileUpdate},
	})
}

// Allows reports whether role holds every permission in required. An
// unknown role holds nothing; an empty requirement is always satisfied.
func (t *Table) Allows(role string, required ...Permission) bool {
	set := t.grants[role]
	for _, p := range required {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

// Permissions returns a sorted copy of the permissions granted to role.
func (t *Table) Permissions(role string) []Permission {
	out := make([]Permission, 0, len(t.grants[role]))
	for p := range t.grants[role] {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
