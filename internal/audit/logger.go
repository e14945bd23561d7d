// Package audit provides the durable interaction log read and write paths.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/avilov/tutorlab/internal/domain"
	"github.com/avilov/tutorlab/internal/store"
)

// Logger wraps the repository's audit surface. Writes are best-effort:
// a failed audit append is reported to the operational log but never
// fails the user-facing request. The send path's paired rows are written
// atomically by store.RecordExchange instead; Log covers standalone
// events such as conversation clears.
type Logger struct {
	repo store.Repository
	log  *slog.Logger
}

// New creates an audit logger.
func New(repo store.Repository, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, log: logger}
}

// Log appends one audit row, swallowing failures.
func (l *Logger) Log(ctx context.Context, entry *domain.InteractionLog) {
	if err := l.repo.InsertInteractionLog(ctx, entry); err != nil {
		l.log.Warn("failed to write interaction log",
			"user_id", entry.UserID,
			"session_id", entry.SessionID,
			"event_type", entry.EventType,
			"error", err)
	}
}

// Query returns audit rows matching the filter. All supplied filters are
// applied as an AND-conjunction; results are capped at the filter limit,
// defaulting to store.DefaultLogQueryLimit.
func (l *Logger) Query(ctx context.Context, f store.LogFilter) ([]*domain.InteractionLog, error) {
	if f.Limit <= 0 {
		f.Limit = store.DefaultLogQueryLimit
	}
	return l.repo.QueryInteractionLogs(ctx, f)
}

// Stats aggregates the audit log over an optional date window. With no
// window it aggregates over all history.
func (l *Logger) Stats(ctx context.Context, start, end *time.Time) (*domain.InteractionStats, error) {
	return l.repo.InteractionStats(ctx, start, end)
}
