package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// QueryLogger is a bun.QueryHook writing executed queries to zap.
// Queries log at debug, slow queries at warn and failures at error.
type QueryLogger struct {
	logger *zap.Logger
	slow   time.Duration
}

var _ bun.QueryHook = (*QueryLogger)(nil)

func NewQueryLogger(logger *zap.Logger, slow time.Duration) *QueryLogger {
	return &QueryLogger{logger: logger.Named("db"), slow: slow}
}

func (h *QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Error("query failed", append(fields, zap.String("query", event.Query), zap.Error(event.Err))...)
	case h.slow > 0 && elapsed > h.slow:
		h.logger.Warn("slow query", append(fields, zap.String("query", event.Query))...)
	default:
		h.logger.Debug("query", append(fields, zap.String("query", event.Query))...)
	}
}
