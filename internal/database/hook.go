package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

// QueryHook logs every query at debug level and failed queries at warn.
// sql.ErrNoRows is an expected outcome of lookups and is not a failure.
type QueryHook struct {
	log logrus.FieldLogger
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook writing to log.
func NewQueryHook(log logrus.FieldLogger) *QueryHook {
	return &QueryHook{log: log}
}

// BeforeQuery is a no-op; timing comes from the event itself.
func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery logs the formatted query with its duration and error.
func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	entry := h.log.WithFields(logrus.Fields{
		"query":    event.Query,
		"duration": time.Since(event.StartTime).String(),
	})
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		entry.WithError(event.Err).Warn("query failed")
		return
	}
	entry.Debug("query")
}
