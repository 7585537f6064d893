// Package service implements authentication and the record operations on
// top of the stores. Every exported method returns either nil or an
// *apperr.Error whose message is safe to show to clients.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/student-records/internal/model"
	"github.com/iliyamo/student-records/internal/queue"
	"github.com/iliyamo/student-records/internal/repository"
)

// UserStore is the user half of the credential store.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, id int64, ch repository.UserChanges) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, p repository.ListParams) (repository.Page[model.User], error)
}

// TokenStore is the refresh token half of the credential store.
type TokenStore interface {
	// Store atomically makes tokenHash the user's only refresh token.
	Store(ctx context.Context, userID int64, tokenHash string, exp time.Time) error
	Find(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

// StudentStore persists student records.
type StudentStore interface {
	FindByID(ctx context.Context, id int64) (*model.Student, error)
	Create(ctx context.Context, s *model.Student) error
	Update(ctx context.Context, s *model.Student) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, p repository.ListParams) (repository.Page[model.Student], error)
	All(ctx context.Context) ([]model.Student, error)
}

// EventPublisher receives audit events. Failures never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuditEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.AuditEvent) error { return nil }

// NopPublisher drops every event.
var NopPublisher EventPublisher = nopPublisher{}

type auditor struct {
	events EventPublisher
	log    logrus.FieldLogger
}

func (a auditor) record(ctx context.Context, entity, action string, actorID int64, before, after any) {
	ev := queue.NewAuditEvent(entity, action, actorID)
	ev.Before = snapshot(before)
	ev.After = snapshot(after)
	if err := a.events.Publish(ctx, ev); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{"entity": entity, "action": action}).Warn("audit event not published")
	}
}

// snapshot renders v through its JSON form, so fields hidden from clients
// (such as password hashes) are hidden from the audit log too.
func snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
