package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/notify"
	"github.com/Spok95/timetable-substitutes/internal/observability"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

// Reminders tells substitutes about the sessions they cover tomorrow. Each
// leave is reminded once.
type Reminders struct {
	store    schedule.Store
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger
}

func NewReminders(store schedule.Store, notifier notify.Notifier, loc *time.Location, log *zap.Logger) *Reminders {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reminders{store: store, notifier: notifier, loc: loc, now: time.Now, log: log}
}

// Run is a Job.
func (r *Reminders) Run(ctx context.Context) error {
	tomorrow := models.DateOnly(r.now().In(r.loc)).AddDate(0, 0, 1)
	pending := false
	leaves, err := r.store.ListLeaves(ctx, schedule.LeaveFilter{Date: &tomorrow, ReminderSent: &pending})
	if err != nil {
		observability.CaptureErr(err)
		return fmt.Errorf("list pending reminders: %w", err)
	}

	done := make([]int64, 0, len(leaves))
	for _, l := range leaves {
		if l.SubstituteID == nil {
			continue
		}
		if err := r.remind(ctx, l); err != nil && !errors.Is(err, notify.ErrNoAddress) {
			r.log.Warn("substitute reminder failed", zap.Int64("leave_id", l.ID), zap.Error(err))
			continue
		}
		done = append(done, l.ID)
	}

	if len(done) > 0 {
		if err := r.store.MarkLeavesReminded(ctx, done); err != nil {
			observability.CaptureErr(err)
			return fmt.Errorf("mark reminded: %w", err)
		}
	}
	return nil
}

func (r *Reminders) remind(ctx context.Context, l models.LeaveRequest) error {
	sub, err := r.store.GetUser(ctx, *l.SubstituteID)
	if err != nil {
		return err
	}
	teacher, err := r.store.GetUser(ctx, l.TeacherID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Tomorrow (%s, session %d) you are substituting for %s.",
		l.Date.Format(models.DateLayout), l.Session, teacher.Username)
	if err := r.notifier.Notify(ctx, sub, "Substitute Reminder", body); err != nil {
		return err
	}
	remindersSent.Inc()
	return nil
}
