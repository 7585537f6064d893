package utils // package utils provides token issuing and hashing helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/student-records/internal/apperr"
)

// AccessToken is a signed access JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a signed refresh JWT along with its expiry. Only the
// SHA-256 of Raw is persisted (see HashRefreshRaw).
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// AccessClaims is the payload of an access token. Subject holds the user id
// in decimal.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *AccessClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenIssuer signs and verifies access and refresh tokens. The two kinds
// use different secrets, so one can never be accepted in place of the
// other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer returns an issuer signing with HS256.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// SignAccess issues an access token carrying the user's id, email and role.
func (t *TokenIssuer) SignAccess(userID int64, email, role string) (AccessToken, error) {
	now := t.now()
	exp := now.Add(t.accessTTL)
	claims := AccessClaims{
		Email:            email,
		Role:             role,
		RegisteredClaims: t.registered(userID, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// SignRefresh issues a refresh token for the user. Every token carries a
// random jti, so two tokens minted in the same second still differ.
func (t *TokenIssuer) SignRefresh(userID int64) (RefreshToken, error) {
	now := t.now()
	exp := now.Add(t.refreshTTL)
	claims := t.registered(userID, now, exp)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: signed, Exp: exp}, nil
}

// VerifyAccess checks signature and expiry of an access token.
func (t *TokenIssuer) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(raw, claims, t.accessSecret); err != nil {
		return nil, apperr.Unauthorized("Invalid token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperr.Unauthorized("Invalid token")
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry of a refresh token and returns
// the user id it was issued to.
func (t *TokenIssuer) VerifyRefresh(raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if err := t.parse(raw, claims, t.refreshSecret); err != nil {
		return 0, apperr.Unauthorized("Invalid refresh token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperr.Unauthorized("Invalid refresh token")
	}
	return id, nil
}

func (t *TokenIssuer) registered(userID int64, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (t *TokenIssuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return err
	}
	if !tok.Valid {
		return errors.New("token invalid")
	}
	return nil
}

// HashRefreshRaw returns the hex SHA-256 of a refresh token, the value
// stored in the refresh_tokens table.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomHex returns n bytes from crypto/rand, hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
