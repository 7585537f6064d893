package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/metrics"
	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/repository"
	"github.com/iliyamo/student-records/internal/utils"
)

// Client-visible messages.
const (
	MsgEmailExists        = "Email already exists"
	MsgInvalidCredentials = "Invalid credentials"
	MsgAccountDeactivated = "Account is deactivated"
	MsgInvalidRefresh     = "Invalid refresh token"
	MsgUserNotFound       = "User not found"
	MsgWrongPassword      = "Current password is incorrect"
	MsgCurrentPwdRequired = "Current password is required when setting a new password"
)

// TokenPair is an access token and a refresh token issued together.
type TokenPair struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"-"`
}

// AuthResult is returned by Register and Login. User never carries the
// password hash in its JSON form.
type AuthResult struct {
	User *model.User `json:"user"`
	TokenPair
}

// RegisterInput is the validated body of a registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate holds the optional profile changes; empty strings mean
// "leave unchanged".
type ProfileUpdate struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
}

// AuthService implements registration, login, token rotation and the
// caller's own profile.
type AuthService struct {
	users   UserStore
	tokens  TokenStore
	issuer  *utils.TokenIssuer
	log     logrus.FieldLogger
	metrics metrics.AuthRecorder
	audit   auditor
	cost    int

	dummyHash func() string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost sets the cost used for new password hashes.
func WithBcryptCost(cost int) AuthOption { return func(s *AuthService) { s.cost = cost } }

// WithEvents publishes audit events for every successful operation.
func WithEvents(p EventPublisher) AuthOption { return func(s *AuthService) { s.audit.events = p } }

// WithMetrics counts operation outcomes.
func WithMetrics(m metrics.AuthRecorder) AuthOption { return func(s *AuthService) { s.metrics = m } }

// NewAuthService returns an AuthService over the credential store. Without
// options it hashes at utils.DefaultBcryptCost and drops audit events and metrics.
func NewAuthService(users UserStore, tokens TokenStore, issuer *utils.TokenIssuer, log logrus.FieldLogger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:   users,
		tokens:  tokens,
		issuer:  issuer,
		log:     log,
		metrics: metrics.Nop,
		audit:   auditor{events: NopPublisher, log: log},
		cost:    utils.DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against when the email is unknown, so that a missing user
	// costs the same bcrypt work as a wrong password.
	s.dummyHash = sync.OnceValue(func() string {
		h, _ := utils.HashPassword("not-a-real-password", s.cost)
		return h
	})
	return s
}

// Register creates a teacher account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	res, err := s.register(ctx, in)
	return res, s.finish("register", "Registration failed", err)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	taken, err := s.users.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict(MsgEmailExists)
	}

	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	roleID, _ := permission.RoleID(permission.DefaultRole)
	u := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       roleID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperr.Conflict(MsgEmailExists)
		}
		return nil, err
	}

	created, err := s.users.FindByID(ctx, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.BadRequest("Failed to create user")
	}
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, created)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, "user", "register", created.ID, nil, created)
	return &AuthResult{User: created, TokenPair: pair}, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	res, err := s.login(ctx, email, password)
	return res, s.finish("login", "Login failed", err)
}

func (s *AuthService) login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword(s.dummyHash(), password)
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	if !u.IsActive {
		return nil, apperr.Unauthorized(MsgAccountDeactivated)
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, "auth", "login", u.ID, nil, nil)
	return &AuthResult{User: u, TokenPair: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed: a second use, or a token that was superseded by a later login,
// is rejected.
func (s *AuthService) Refresh(ctx context.Context, token string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, token)
	return pair, s.finish("refresh", "Failed to refresh token", err)
}

func (s *AuthService) refresh(ctx context.Context, token string) (*TokenPair, error) {
	userID, err := s.issuer.VerifyRefresh(token)
	if err != nil {
		return nil, err
	}

	hash := utils.HashRefreshRaw(token)
	row, err := s.tokens.Find(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized(MsgInvalidRefresh)
	}
	if err != nil {
		return nil, err
	}
	if row.UserID != userID || time.Now().After(row.ExpiresAt) {
		return nil, apperr.Unauthorized(MsgInvalidRefresh)
	}

	u, err := s.users.FindByID(ctx, row.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized(MsgUserNotFound)
	}
	if err != nil {
		return nil, err
	}

	consumed, err := s.tokens.DeleteByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// A concurrent refresh with the same token got there first.
		return nil, apperr.Unauthorized(MsgInvalidRefresh)
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, "auth", "refresh", u.ID, nil, nil)
	return &pair, nil
}

// Logout revokes every refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	err := s.tokens.DeleteByUser(ctx, userID)
	if err == nil {
		s.audit.record(ctx, "auth", "logout", userID, nil, nil)
	}
	return s.finish("logout", "Logout failed", err)
}

// GetProfile returns the caller's user record with its role.
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		err = apperr.Unauthorized(MsgUserNotFound)
	}
	if err != nil {
		return nil, s.finish("profile", "Failed to fetch profile", err)
	}
	return u, nil
}

// UpdateProfile applies the non-empty fields of in. Changing the password
// requires the current one.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (*model.User, error) {
	u, err := s.updateProfile(ctx, userID, in)
	return u, s.finish("profile_update", "Failed to update profile", err)
}

func (s *AuthService) updateProfile(ctx context.Context, userID int64, in ProfileUpdate) (*model.User, error) {
	before, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized(MsgUserNotFound)
	}
	if err != nil {
		return nil, err
	}

	var ch repository.UserChanges
	if in.Name != "" {
		ch.Name = &in.Name
	}
	if in.Email != "" && in.Email != before.Email {
		taken, err := s.users.EmailTaken(ctx, in.Email, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict(MsgEmailExists)
		}
		ch.Email = &in.Email
	}
	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, apperr.BadRequest(MsgCurrentPwdRequired)
		}
		if !utils.VerifyPassword(before.PasswordHash, in.CurrentPassword) {
			return nil, apperr.BadRequest(MsgWrongPassword)
		}
		hash, err := utils.HashPassword(in.NewPassword, s.cost)
		if err != nil {
			return nil, err
		}
		ch.PasswordHash = &hash
	}

	if err := s.users.Update(ctx, userID, ch); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, apperr.Conflict(MsgEmailExists)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.Unauthorized(MsgUserNotFound)
		}
		return nil, err
	}

	after, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, "user", "profile.update", userID, before, after)
	return after, nil
}

// issuePair signs an access token and a new refresh token concurrently.
// Storing the refresh token replaces whatever token the user still holds in
// one statement, so at most one is active at a time even under concurrent
// logins.
func (s *AuthService) issuePair(ctx context.Context, u *model.User) (TokenPair, error) {
	var (
		access  utils.AccessToken
		refresh utils.RefreshToken
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		access, err = s.issuer.SignAccess(u.ID, u.Email, u.RoleName())
		return err
	})
	g.Go(func() error {
		var err error
		refresh, err = s.issuer.SignRefresh(u.ID)
		if err != nil {
			return err
		}
		return s.tokens.Store(gctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp)
	})
	if err := g.Wait(); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:     access.Token,
		RefreshToken:    refresh.Raw,
		AccessExpiresAt: access.Exp,
	}, nil
}

// finish applies the error policy: classified errors pass through,
// anything else is logged and reported as fallback. It also counts the
// outcome.
func (s *AuthService) finish(op, fallback string, err error) error {
	if err == nil {
		s.metrics.RecordAuth(op, metrics.OutcomeSuccess)
		return nil
	}
	s.metrics.RecordAuth(op, metrics.OutcomeFailure)
	wrapped := apperr.Wrap(err, fallback)
	if apperr.IsUnexpected(wrapped) {
		s.log.WithError(err).WithField("operation", op).Error("auth operation failed")
	}
	return wrapped
}
