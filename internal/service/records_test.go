package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/repository"
	"github.com/iliyamo/student-records/internal/repository/memstore"
	"github.com/iliyamo/student-records/internal/utils"
)

func strPtr(s string) *string { return &s }

func TestUserServiceLifecycle(t *testing.T) {
	db := memstore.New()
	events := &recordedEvents{}
	svc := NewUserService(db.Users(), events, bcrypt.MinCost, quietLog())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, NewUser{Name: "X", Email: "x@x.io", Password: "secret1", Role: "janitor"})
	requireAppErr(t, err, http.StatusBadRequest, MsgInvalidRole)

	u, err := svc.Create(ctx, 1, NewUser{Name: "Stu", Email: "stu@x.io", Password: "secret1", Role: permission.Student})
	require.NoError(t, err)
	assert.Equal(t, permission.Student, u.RoleName())

	_, err = svc.Create(ctx, 1, NewUser{Name: "Dup", Email: "stu@x.io", Password: "secret1", Role: permission.Student})
	requireAppErr(t, err, http.StatusConflict, MsgEmailExists)

	other, err := svc.Create(ctx, 1, NewUser{Name: "Other", Email: "o@x.io", Password: "secret1", Role: permission.Teacher})
	require.NoError(t, err)

	_, err = svc.Update(ctx, 1, u.ID, UserPatch{Email: strPtr(other.Email)})
	requireAppErr(t, err, http.StatusConflict, MsgEmailExists)

	_, err = svc.Update(ctx, 1, u.ID, UserPatch{Role: strPtr("nobody")})
	requireAppErr(t, err, http.StatusBadRequest, MsgInvalidRole)

	inactive := false
	updated, err := svc.Update(ctx, 1, u.ID, UserPatch{
		Name:     strPtr("Student Renamed"),
		Role:     strPtr(permission.Teacher),
		Password: strPtr("newpass"),
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Student Renamed", updated.Name)
	assert.Equal(t, permission.Teacher, updated.RoleName())
	assert.False(t, updated.IsActive)
	assert.True(t, utils.VerifyPassword(updated.PasswordHash, "newpass"))

	page, err := svc.List(ctx, repository.ListParams{Search: "renamed"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, u.ID, page.Rows[0].ID)
	assert.Equal(t, 1, page.Meta.TotalRows)

	require.NoError(t, db.Tokens().Store(ctx, u.ID, "hash", time.Now().Add(time.Hour)))
	deleted, err := svc.Delete(ctx, 1, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, deleted.ID)
	assert.Zero(t, db.Tokens().CountForUser(u.ID))

	_, err = svc.Get(ctx, u.ID)
	requireAppErr(t, err, http.StatusNotFound, MsgUserNotFound)
	_, err = svc.Delete(ctx, 1, u.ID)
	requireAppErr(t, err, http.StatusNotFound, MsgUserNotFound)

	assert.Equal(t, []string{"user.create", "user.create", "user.update", "user.delete"}, events.actions())
}

func newStudent(nisn, name string) *model.Student {
	return &model.Student{
		NISN:     nisn,
		Name:     name,
		DOB:      time.Date(2010, 3, 14, 0, 0, 0, 0, time.UTC),
		IsActive: true,
	}
}

func TestStudentServiceLifecycle(t *testing.T) {
	db := memstore.New()
	svc := NewStudentService(db.Students(), nil, quietLog())
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, newStudent("001", "Ana"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, newStudent("001", "Clone"))
	requireAppErr(t, err, http.StatusConflict, MsgNISNExists)
	b, err := svc.Create(ctx, 1, newStudent("002", "Budi"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, 1, b.ID, StudentPatch{NISN: strPtr("001")})
	requireAppErr(t, err, http.StatusConflict, MsgNISNExists)

	got, err := svc.Update(ctx, 1, a.ID, StudentPatch{GuardianContact: strPtr("+62 811")})
	require.NoError(t, err)
	require.NotNil(t, got.GuardianContact)
	assert.Equal(t, "+62 811", *got.GuardianContact)
	assert.Equal(t, "Ana", got.Name)

	got, err = svc.Update(ctx, 1, a.ID, StudentPatch{GuardianContact: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, got.GuardianContact)

	_, err = svc.Update(ctx, 1, 404, StudentPatch{Name: strPtr("Nobody")})
	requireAppErr(t, err, http.StatusNotFound, MsgStudentNotFound)

	deleted, err := svc.Delete(ctx, 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budi", deleted.Name)
	_, err = svc.Get(ctx, b.ID)
	requireAppErr(t, err, http.StatusNotFound, MsgStudentNotFound)
}

func TestStudentExport(t *testing.T) {
	db := memstore.New()
	svc := NewStudentService(db.Students(), nil, quietLog())
	ctx := context.Background()

	st := newStudent("001", "Ana, Jr.")
	st.GuardianContact = strPtr("mum")
	_, err := svc.Create(ctx, 1, st)
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, newStudent("002", "Budi"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "nisn", "name", "dob", "guardianContact", "createdAt", "updatedAt"}, records[0])
	assert.Equal(t, []string{"1", "001", "Ana, Jr.", "2010-03-14", "mum"}, records[1][:5])
	assert.Equal(t, "", records[2][4])
	_, err = time.Parse(time.RFC3339, records[1][5])
	assert.NoError(t, err)
}
