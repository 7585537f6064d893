package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var userColumns = []string{
	"id", "name", "email", "password", "role_id", "is_active", "created_at", "updated_at",
	"role__id", "role__name",
}

func TestUserRepoFindByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM "users" AS "u" LEFT JOIN "roles" AS "role"`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(7, "Jane", "jane@example.com", "$2a$10$hash", 2, true, now, now, 2, "teacher"))

	u, err := repo.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)
	assert.Equal(t, "teacher", u.RoleName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`SELECT .* FROM "users" AS "u"`).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoUpdateNoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	name := "New Name"

	mock.ExpectExec(`UPDATE "users" AS "u" SET .*name = 'New Name'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), 5, UserChanges{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoDeleteByHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(`DELETE FROM "refresh_tokens" .*token_hash = 'abc'`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "refresh_tokens" .*token_hash = 'abc'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.DeleteByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.DeleteByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, removed, "second consumer must lose")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoDeleteByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(`DELETE FROM "refresh_tokens" .*user_id = 3`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteByUser(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoStoreReplacesUserToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectExec(`INSERT INTO "refresh_tokens" .*'h1'.* ON CONFLICT \(user_id\) DO UPDATE SET token_hash = EXCLUDED.token_hash`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Store(context.Background(), 3, "h1", time.Now().Add(time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoStoreReplacesUserTokenMySQL(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, mysqldialect.New())
	t.Cleanup(func() { _ = db.Close() })
	repo := NewTokenRepo(db)

	mock.ExpectExec("INSERT INTO `refresh_tokens` .*'h1'.* ON DUPLICATE KEY UPDATE token_hash = VALUES\\(token_hash\\)").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Store(context.Background(), 3, "h1", time.Now().Add(time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoFindNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTokenRepo(db)

	mock.ExpectQuery(`SELECT .* FROM "refresh_tokens" AS "rt"`).
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "user_id", "expires_at", "created_at"}))

	_, err := repo.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStudentRepoList(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false) // rows and count may run concurrently
	repo := NewStudentRepo(db)
	now := time.Now().UTC()
	cols := []string{"id", "nisn", "name", "dob", "guardian_contact", "is_active", "created_at", "updated_at"}

	mock.ExpectQuery(`SELECT .* FROM "students" AS "s" WHERE .*LOWER\(s.name\) LIKE '%ann%' OR LOWER\(s.nisn\) LIKE '%ann%'.* ORDER BY .*name.* ASC LIMIT 2 OFFSET 2`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "0003", "Anna", now, nil, true, now, now))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "students" AS "s"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	page, err := repo.List(context.Background(), ListParams{Page: 2, PerPage: 2, Search: " Ann ", Sort: "name"})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Anna", page.Rows[0].Name)
	assert.Nil(t, page.Rows[0].GuardianContact)
	assert.Equal(t, PageMeta{Page: 2, PerPage: 2, TotalRows: 3, TotalPage: 2}, page.Meta)
}

func TestListParamsNormalized(t *testing.T) {
	p := ListParams{Page: -1, PerPage: 1000}.normalized()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, maxPerPage, p.PerPage)

	p = ListParams{}.normalized()
	assert.Equal(t, defaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.offset())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, isUniqueViolation(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
