package utils

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/student-records/internal/apperr"
)

func newIssuer() *TokenIssuer {
	return NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
}

func TestSignAndVerifyAccess(t *testing.T) {
	iss := newIssuer()

	tok, err := iss.SignAccess(42, "a@example.com", "teacher")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := iss.VerifyAccess(tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "teacher", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	iss := newIssuer()

	a, err := iss.SignRefresh(1)
	require.NoError(t, err)
	b, err := iss.SignRefresh(1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.NotEqual(t, HashRefreshRaw(a.Raw), HashRefreshRaw(b.Raw))

	id, err := iss.VerifyRefresh(a.Raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	iss := newIssuer()

	access, err := iss.SignAccess(1, "a@example.com", "admin")
	require.NoError(t, err)
	refresh, err := iss.SignRefresh(1)
	require.NoError(t, err)

	_, err = iss.VerifyRefresh(access.Token)
	assertUnauthorized(t, err)
	_, err = iss.VerifyAccess(refresh.Raw)
	assertUnauthorized(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss := newIssuer()
	iss.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	refresh, err := iss.SignRefresh(1)
	require.NoError(t, err)
	access, err := iss.SignAccess(1, "a@example.com", "admin")
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.VerifyRefresh(refresh.Raw)
	assertUnauthorized(t, err)
	_, err = iss.VerifyAccess(access.Token)
	assertUnauthorized(t, err)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	iss := newIssuer()
	claims := jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = iss.VerifyRefresh(raw)
	assertUnauthorized(t, err)

	_, err = iss.VerifyRefresh("not-a-token")
	assertUnauthorized(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, VerifyPassword(hash, "secret1"))
	assert.False(t, VerifyPassword(hash, "secret2"))
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(16)
	require.NoError(t, err)
	b, err := RandomHex(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected classified error, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
}
