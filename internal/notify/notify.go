// Package notify delivers leave and substitute messages to staff.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

// ErrNoAddress means the recipient has nowhere to receive messages.
var ErrNoAddress = errors.New("recipient has no notification address")

// Notifier matches schedule.Notifier.
type Notifier interface {
	Notify(ctx context.Context, to models.User, subject, body string) error
}

// Log writes notifications to the log instead of delivering them. Used when
// no bot token is configured.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, to models.User, subject, body string) error {
	l.log.Info("notification",
		zap.Int64("user_id", to.ID),
		zap.String("username", to.Username),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
