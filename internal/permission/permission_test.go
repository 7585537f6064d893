package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	for _, p := range All {
		assert.True(t, table.Allows(Admin, p), "admin should hold %s", p)
	}

	assert.True(t, table.Allows(Teacher, ProfileRead, ProfileUpdate))
	assert.True(t, table.Allows(Teacher, StudentRead))
	assert.False(t, table.Allows(Teacher, StudentCreate))
	assert.False(t, table.Allows(Teacher, StudentRead, StudentDelete), "all permissions are required")

	assert.True(t, table.Allows(Student, ProfileRead))
	assert.False(t, table.Allows(Student, UserRead))

	assert.False(t, table.Allows("ghost", ProfileRead))
	assert.True(t, table.Allows("ghost"), "no requirement means allowed")
}

func TestTableIsolatedFromInput(t *testing.T) {
	grants := map[string][]Permission{"custom": {ProfileRead}}
	table := NewTable(grants)

	grants["custom"][0] = UserDelete
	grants["custom"] = append(grants["custom"], RoleDelete)

	assert.True(t, table.Allows("custom", ProfileRead))
	assert.False(t, table.Allows("custom", UserDelete))

	perms := table.Permissions("custom")
	perms[0] = RoleDelete
	assert.Equal(t, []Permission{ProfileRead}, table.Permissions("custom"))
}

func TestRoleID(t *testing.T) {
	id, ok := RoleID(Teacher)
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	_, ok = RoleID("superuser")
	assert.False(t, ok)
}
