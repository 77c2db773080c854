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

// Slot addresses one session of a weekday.
type Slot struct {
	Day     models.Weekday `json:"day" validate:"required"`
	Session int            `json:"session" validate:"min=1"`
}

// SessionView is one row of a teacher's effective day.
type SessionView struct {
	Session    int           `json:"session"`
	Status     models.Status `json:"status"`
	Substitute string        `json:"substitute,omitempty"`
}

// Planner owns weekly templates and read models over them.
type Planner struct {
	store TxStore
	rnd   Rand
	log   *zap.Logger
}

func NewPlanner(store TxStore, rnd Rand, log *zap.Logger) *Planner {
	if rnd == nil {
		rnd = DefaultRand()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{store: store, rnd: rnd, log: log}
}

// Generate drafts a repaired template for teacherID. Nothing is persisted.
func (p *Planner) Generate(ctx context.Context, teacherID int64, dayCount, sessionCount int) (Grid, error) {
	ctx = ctxutil.WithOp(ctx, "generate_timetable")
	if err := ValidateDimensions(dayCount, sessionCount); err != nil {
		return Grid{}, err
	}
	if _, err := p.store.GetUser(ctx, teacherID); err != nil {
		return Grid{}, p.fail("generate timetable", err)
	}
	existing, err := p.store.ListEntries(ctx, EntryFilter{TeacherIDs: []int64{teacherID}, TemplateOnly: true})
	if err != nil {
		return Grid{}, p.fail("generate timetable", err)
	}

	draft, err := BuildGrid(teacherID, dayCount, sessionCount, existing, p.rnd)
	if err != nil {
		return Grid{}, err
	}
	metrics.GridsGenerated.Inc()
	return Grid{
		TeacherID: teacherID,
		Days:      append([]models.Weekday(nil), models.Week[:dayCount]...),
		Sessions:  sessionCount,
		Entries:   Repair(draft, p.rnd),
	}, nil
}

// Save replaces teacherID's template with a dayCount x sessionCount grid where
// the listed slots are Busy and every other slot is Free. Overrides and
// leaves are left alone.
func (p *Planner) Save(ctx context.Context, teacherID int64, dayCount, sessionCount int, busy []Slot) (Grid, error) {
	ctx = ctxutil.WithOp(ctx, "save_timetable")
	if err := ValidateDimensions(dayCount, sessionCount); err != nil {
		return Grid{}, err
	}
	days := models.Week[:dayCount]
	marked := make(map[Slot]bool, len(busy))
	for _, s := range busy {
		d, err := models.ParseWeekday(string(s.Day))
		if err != nil || d.Index() >= dayCount {
			return Grid{}, fmt.Errorf("%w: day %q is outside the timetable", ErrInvalidParameter, s.Day)
		}
		if s.Session < 1 || s.Session > sessionCount {
			return Grid{}, fmt.Errorf("%w: session %d is outside the timetable", ErrInvalidParameter, s.Session)
		}
		marked[Slot{Day: d, Session: s.Session}] = true
	}

	entries := make([]models.TimetableEntry, 0, dayCount*sessionCount)
	for _, d := range days {
		for s := 1; s <= sessionCount; s++ {
			status := models.Free
			if marked[Slot{Day: d, Session: s}] {
				status = models.Busy
			}
			entries = append(entries, models.TimetableEntry{TeacherID: teacherID, Day: d, Session: s, Status: status})
		}
	}

	err := p.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetUser(ctx, teacherID); err != nil {
			return err
		}
		if _, err := tx.DeleteEntries(ctx, EntryFilter{TeacherIDs: []int64{teacherID}, TemplateOnly: true}); err != nil {
			return err
		}
		return tx.InsertEntries(ctx, entries)
	})
	if err != nil {
		return Grid{}, p.fail("save timetable", err)
	}
	metrics.TemplatesSaved.Inc()
	p.log.Info("timetable saved", zap.Int64("teacher_id", teacherID), zap.Int("days", dayCount), zap.Int("sessions", sessionCount))
	return Grid{TeacherID: teacherID, Days: append([]models.Weekday(nil), days...), Sessions: sessionCount, Entries: entries}, nil
}

// Template returns the saved weekly template of teacherID.
func (p *Planner) Template(ctx context.Context, teacherID int64) (Grid, error) {
	if _, err := p.store.GetUser(ctx, teacherID); err != nil {
		return Grid{}, p.fail("load timetable", err)
	}
	entries, err := p.store.ListEntries(ctx, EntryFilter{TeacherIDs: []int64{teacherID}, TemplateOnly: true})
	if err != nil {
		return Grid{}, p.fail("load timetable", err)
	}
	g := Grid{TeacherID: teacherID, Entries: entries}
	seen := make(map[models.Weekday]bool)
	for _, e := range entries {
		if !seen[e.Day] {
			seen[e.Day] = true
			g.Days = append(g.Days, e.Day)
		}
		if e.Session > g.Sessions {
			g.Sessions = e.Session
		}
	}
	sort.Slice(g.Days, func(i, j int) bool { return g.Days[i].Index() < g.Days[j].Index() })
	return g, nil
}

// DayView lists teacherID's effective status for every session known on date.
func (p *Planner) DayView(ctx context.Context, teacherID int64, date time.Time) ([]SessionView, error) {
	date = models.DateOnly(date)
	day := models.DayOf(date)
	ids := []int64{teacherID}

	templates, err := p.store.ListEntries(ctx, EntryFilter{TeacherIDs: ids, Day: day, TemplateOnly: true})
	if err != nil {
		return nil, p.fail("day view", err)
	}
	overrides, err := p.store.ListEntries(ctx, EntryFilter{TeacherIDs: ids, Date: &date})
	if err != nil {
		return nil, p.fail("day view", err)
	}
	leaves, err := p.store.ListLeaves(ctx, LeaveFilter{TeacherIDs: ids, Date: &date})
	if err != nil {
		return nil, p.fail("day view", err)
	}
	ix := newSlotIndex(append(templates, overrides...), leaves)

	sessions := make(map[int]bool)
	for _, e := range templates {
		sessions[e.Session] = true
	}
	for _, e := range overrides {
		sessions[e.Session] = true
	}
	order := make([]int, 0, len(sessions))
	for s := range sessions {
		order = append(order, s)
	}
	sort.Ints(order)

	out := make([]SessionView, 0, len(order))
	for _, s := range order {
		v := SessionView{Session: s, Status: ix.effective(teacherID, day, date, s)}
		if l, ok := ix.leave(teacherID, date, s); ok && v.Status == models.OnLeave && l.SubstituteID != nil {
			sub, err := p.store.GetUser(ctx, *l.SubstituteID)
			if err != nil {
				p.log.Warn("substitute lookup failed",
					zap.Int64("teacher_id", teacherID),
					zap.Int64("substitute_id", *l.SubstituteID),
					zap.Int("session", s),
					zap.Error(err))
			} else {
				v.Substitute = sub.Username
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// LeaveEvents returns teacherID's leaves ordered by date and session.
func (p *Planner) LeaveEvents(ctx context.Context, teacherID int64) ([]models.LeaveRequest, error) {
	leaves, err := p.store.ListLeaves(ctx, LeaveFilter{TeacherIDs: []int64{teacherID}})
	if err != nil {
		return nil, p.fail("leave events", err)
	}
	sortLeaves(leaves)
	return leaves, nil
}

// LeaveReport lists every leave requested by members of department.
func (p *Planner) LeaveReport(ctx context.Context, department string) ([]models.LeaveReportRow, error) {
	leaves, err := p.store.ListLeaves(ctx, LeaveFilter{Department: department})
	if err != nil {
		return nil, p.fail("leave report", err)
	}
	sortLeaves(leaves)

	idSet := make(map[int64]bool)
	for _, l := range leaves {
		idSet[l.TeacherID] = true
		if l.SubstituteID != nil {
			idSet[*l.SubstituteID] = true
		}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	names := make(map[int64]string, len(ids))
	if len(ids) > 0 {
		users, err := p.store.ListUsers(ctx, UserFilter{IDs: ids})
		if err != nil {
			return nil, p.fail("leave report", err)
		}
		for _, u := range users {
			names[u.ID] = u.Username
		}
	}

	rows := make([]models.LeaveReportRow, 0, len(leaves))
	for _, l := range leaves {
		row := models.LeaveReportRow{
			LeaveID:         l.ID,
			TeacherID:       l.TeacherID,
			TeacherUsername: names[l.TeacherID],
			SubstituteID:    l.SubstituteID,
			Date:            l.Date,
			Session:         l.Session,
		}
		if l.SubstituteID != nil {
			row.SubstituteUsername = names[*l.SubstituteID]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Planner) fail(op string, err error) error {
	err = storeErr(op, err)
	if errors.Is(err, ErrStoreFailure) {
		p.log.Error(op+" failed", zap.Error(err))
		observability.CaptureOp(op, err)
	}
	return err
}

func sortLeaves(ls []models.LeaveRequest) {
	sort.Slice(ls, func(i, j int) bool {
		if !ls[i].Date.Equal(ls[j].Date) {
			return ls[i].Date.Before(ls[j].Date)
		}
		if ls[i].Session != ls[j].Session {
			return ls[i].Session < ls[j].Session
		}
		return ls[i].ID < ls[j].ID
	})
}
