package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/student-records/internal/apperr"
	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/permission"
	"github.com/iliyamo/student-records/internal/repository"
	"github.com/iliyamo/student-records/internal/utils"
)

// MsgInvalidRole is returned for role names outside package permission.
const MsgInvalidRole = "Invalid role"

// NewUser is the admin create request.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UserPatch carries the fields an admin may change; nil leaves a field as is.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
	IsActive *bool
}

// UserService is the admin side of user management.
type UserService struct {
	users UserStore
	log   logrus.FieldLogger
	audit auditor
	cost  int
}

// NewUserService returns a UserService hashing passwords at cost.
func NewUserService(users UserStore, events EventPublisher, cost int, log logrus.FieldLogger) *UserService {
	if events == nil {
		events = NopPublisher
	}
	if cost == 0 {
		cost = utils.DefaultBcryptCost
	}
	return &UserService{users: users, log: log, audit: auditor{events: events, log: log}, cost: cost}
}

// Create inserts a user with the named role.
func (s *UserService) Create(ctx context.Context, actorID int64, in NewUser) (*model.User, error) {
	roleID, ok := permission.RoleID(in.Role)
	if !ok {
		return nil, apperr.BadRequest(MsgInvalidRole)
	}
	taken, err := s.users.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, s.fail("create", "Failed to create user", err)
	}
	if taken {
		return nil, apperr.Conflict(MsgEmailExists)
	}
	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, s.fail("create", "Failed to create user", err)
	}

	u := &model.User{Name: in.Name, Email: in.Email, PasswordHash: hash, RoleID: roleID, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperr.Conflict(MsgEmailExists)
		}
		return nil, s.fail("create", "Failed to create user", err)
	}
	created, err := s.users.FindByID(ctx, u.ID)
	if err != nil {
		return nil, s.fail("create", "Failed to create user", err)
	}
	s.audit.record(ctx, "user", "create", actorID, nil, created)
	return created, nil
}

// List returns one page of users with their roles.
func (s *UserService) List(ctx context.Context, p repository.ListParams) (repository.Page[model.User], error) {
	page, err := s.users.List(ctx, p)
	if err != nil {
		return page, s.fail("list", "Failed to fetch users", err)
	}
	return page, nil
}

// Get returns the user or NotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, s.fail("get", "Failed to fetch user", err)
	}
	return u, nil
}

// Update applies the non-nil fields of in. A new password is re-hashed.
func (s *UserService) Update(ctx context.Context, actorID, id int64, in UserPatch) (*model.User, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ch := repository.UserChanges{Name: in.Name, IsActive: in.IsActive}
	if in.Email != nil && *in.Email != before.Email {
		ch.Email = in.Email
	}
	if in.Role != nil {
		roleID, ok := permission.RoleID(*in.Role)
		if !ok {
			return nil, apperr.BadRequest(MsgInvalidRole)
		}
		ch.RoleID = &roleID
	}
	if in.Password != nil {
		hash, err := utils.HashPassword(*in.Password, s.cost)
		if err != nil {
			return nil, s.fail("update", "Failed to update user", err)
		}
		ch.PasswordHash = &hash
	}

	switch err := s.users.Update(ctx, id, ch); {
	case errors.Is(err, repository.ErrEmailExists):
		return nil, apperr.Conflict(MsgEmailExists)
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound(MsgUserNotFound)
	case err != nil:
		return nil, s.fail("update", "Failed to update user", err)
	}

	after, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, "user", "update", actorID, before, after)
	return after, nil
}

// Delete removes the user and returns the row as it was. The user's
// refresh tokens go with it.
func (s *UserService) Delete(ctx context.Context, actorID, id int64) (*model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch err := s.users.Delete(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound(MsgUserNotFound)
	case err != nil:
		return nil, s.fail("delete", "Failed to delete user", err)
	}
	s.audit.record(ctx, "user", "delete", actorID, u, nil)
	return u, nil
}

func (s *UserService) fail(op, fallback string, err error) error {
	wrapped := apperr.Wrap(err, fallback)
	if apperr.IsUnexpected(wrapped) {
		s.log.WithError(err).WithField("operation", "user."+op).Error("user operation failed")
	}
	return wrapped
}
