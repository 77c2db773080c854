package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/metrics"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/observability"
)

// Notifier delivers a message to a user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, to models.User, subject, body string) error
}

// Resolution is a committed leave with its substitute.
type Resolution struct {
	Leave      models.LeaveRequest `json:"leave"`
	Teacher    models.User         `json:"-"`
	Substitute models.User         `json:"-"`
	Day        models.Weekday      `json:"day"`
	// Warnings lists notifications that could not be delivered. The leave stays committed.
	Warnings []string `json:"warnings,omitempty"`
}

type Resolver struct {
	store    TxStore
	notifier Notifier
	log      *zap.Logger
}

func NewResolver(store TxStore, notifier Notifier, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, notifier: notifier, log: log}
}

// ResolveLeave books a substitute for teacherID at (date, session) and records
// the leave. On any error nothing is written.
func (r *Resolver) ResolveLeave(ctx context.Context, teacherID int64, date time.Time, session int) (*Resolution, error) {
	ctx = ctxutil.WithOp(ctx, "resolve_leave")
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidParameter)
	}
	if session < 1 {
		return nil, fmt.Errorf("%w: session must be a positive number", ErrInvalidParameter)
	}
	date = models.DateOnly(date)
	log := r.log.With(zap.Int64("teacher_id", teacherID), zap.String("date", dateKey(date)), zap.Int("session", session))

	var res *Resolution
	err := r.store.WithTx(ctx, func(tx Store) error {
		var err error
		res, err = r.resolve(ctx, tx, teacherID, date, session)
		return err
	})
	err = storeErr("resolve leave", err)
	metrics.LeaveResolutions.WithLabelValues(Outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, ErrStoreFailure) {
			log.Error("leave resolution failed", zap.Error(err))
			observability.CaptureOp("resolve leave", err)
		} else {
			log.Info("leave not resolved", zap.String("outcome", Outcome(err)))
		}
		return nil, err
	}
	log.Info("substitute assigned", zap.Int64("substitute_id", res.Substitute.ID))

	res.Warnings = r.notify(ctx, res)
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, tx Store, teacherID int64, date time.Time, session int) (*Resolution, error) {
	teacher, err := tx.GetUser(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	day := models.DayOf(date)

	own, err := tx.ListEntries(ctx, EntryFilter{
		TeacherIDs:   []int64{teacherID},
		Day:          day,
		Session:      session,
		TemplateOnly: true,
	})
	if err != nil {
		return nil, err
	}
	if len(own) == 0 || own[0].Status != models.Busy {
		return nil, ErrNotScheduled
	}

	dup, err := tx.ListLeaves(ctx, LeaveFilter{TeacherIDs: []int64{teacherID}, Date: &date, Session: session})
	if err != nil {
		return nil, err
	}
	if len(dup) > 0 {
		return nil, ErrDuplicateRequest
	}

	sub, err := findSubstitute(ctx, tx, teacher, day, date, session)
	if err != nil {
		return nil, err
	}

	leave := models.LeaveRequest{
		TeacherID:    teacherID,
		SubstituteID: &sub.ID,
		Date:         date,
		Session:      session,
	}
	if err := tx.InsertLeave(ctx, &leave); err != nil {
		return nil, err
	}
	if err := tx.UpsertDateEntry(ctx, models.TimetableEntry{
		TeacherID: sub.ID,
		Day:       day,
		Date:      &date,
		Session:   session,
		Status:    models.Busy,
	}); err != nil {
		return nil, err
	}
	return &Resolution{Leave: leave, Teacher: teacher, Substitute: sub, Day: day}, nil
}

// findSubstitute returns the lowest-id colleague of the same department who is
// effectively Free at (date, session) and not on leave then.
func findSubstitute(ctx context.Context, tx Store, teacher models.User, day models.Weekday, date time.Time, session int) (models.User, error) {
	pool, err := tx.ListUsers(ctx, UserFilter{
		Department: teacher.Department,
		Roles:      []models.Role{models.Teacher, models.HOD},
	})
	if err != nil {
		return models.User{}, err
	}
	candidates := pool[:0]
	for _, u := range pool {
		if u.ID != teacher.ID && u.Department == teacher.Department {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return models.User{}, ErrNoSubstituteAvailable
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	templates, err := tx.ListEntries(ctx, EntryFilter{TeacherIDs: ids, Day: day, Session: session, TemplateOnly: true})
	if err != nil {
		return models.User{}, err
	}
	overrides, err := tx.ListEntries(ctx, EntryFilter{TeacherIDs: ids, Date: &date, Session: session})
	if err != nil {
		return models.User{}, err
	}
	leaves, err := tx.ListLeaves(ctx, LeaveFilter{TeacherIDs: ids, Date: &date, Session: session})
	if err != nil {
		return models.User{}, err
	}
	ix := newSlotIndex(append(templates, overrides...), leaves)

	for _, c := range candidates {
		if !usable(ix, c.ID, day, date, session) {
			continue
		}
		ok, err := stillFree(ctx, tx, c.ID, day, date, session)
		if err != nil {
			return models.User{}, err
		}
		if ok {
			return c, nil
		}
	}
	return models.User{}, ErrNoSubstituteAvailable
}

func usable(ix *slotIndex, id int64, day models.Weekday, date time.Time, session int) bool {
	if _, onLeave := ix.leave(id, date, session); onLeave {
		return false
	}
	return ix.effective(id, day, date, session) == models.Free
}

// stillFree locks the candidate and re-reads their slot. A booking committed
// by another resolution after the first read is visible here, so the same
// colleague is never handed out twice for one (date, session).
func stillFree(ctx context.Context, tx Store, id int64, day models.Weekday, date time.Time, session int) (bool, error) {
	if err := tx.LockUser(ctx, id); err != nil {
		return false, err
	}
	ids := []int64{id}
	entries, err := tx.ListEntries(ctx, EntryFilter{TeacherIDs: ids, Session: session})
	if err != nil {
		return false, err
	}
	leaves, err := tx.ListLeaves(ctx, LeaveFilter{TeacherIDs: ids, Date: &date, Session: session})
	if err != nil {
		return false, err
	}
	return usable(newSlotIndex(entries, leaves), id, day, date, session), nil
}

func (r *Resolver) notify(ctx context.Context, res *Resolution) []string {
	if r.notifier == nil {
		return nil
	}
	var warnings []string
	when := fmt.Sprintf("%s, session %d", dateKey(res.Leave.Date), res.Leave.Session)

	head, err := r.departmentHead(ctx, res.Teacher)
	switch {
	case err != nil:
		warnings = append(warnings, "leave request submitted, but the HOD could not be looked up")
	case head != nil:
		body := fmt.Sprintf("%s %s requested leave on %s.", res.Teacher.Role, res.Teacher.Username, when)
		if err := r.notifier.Notify(ctx, *head, "New Leave Request", body); err != nil {
			warnings = append(warnings, "leave request submitted, but notification to HOD failed")
			r.notifyFailed(err, head.ID)
		}
	}

	body := fmt.Sprintf("You are substituting for %s on %s.", res.Teacher.Username, when)
	if err := r.notifier.Notify(ctx, res.Substitute, "Substitute Assignment", body); err != nil {
		warnings = append(warnings, "leave request submitted, but notification to substitute failed")
		r.notifyFailed(err, res.Substitute.ID)
	}
	return warnings
}

// departmentHead picks who approves teacher's leave: the department HOD, or
// another HOD when the requester is one.
func (r *Resolver) departmentHead(ctx context.Context, teacher models.User) (*models.User, error) {
	heads, err := r.store.ListUsers(ctx, UserFilter{Department: teacher.Department, Roles: []models.Role{models.HOD}})
	if err != nil {
		return nil, err
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].ID < heads[j].ID })
	for _, h := range heads {
		if h.ID != teacher.ID {
			return &h, nil
		}
	}
	return nil, nil
}

func (r *Resolver) notifyFailed(err error, userID int64) {
	metrics.NotificationFailures.Inc()
	r.log.Warn("notification failed", zap.Int64("user_id", userID), zap.Error(err))
}
