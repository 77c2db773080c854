//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/db"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
	"github.com/Spok95/timetable-substitutes/internal/testutil/testdb"
)

var handle *testdb.DBHandle

func TestMain(m *testing.M) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		panic(err)
	}
	handle = h
	code := m.Run()
	h.Close()
	os.Exit(code)
}

func freshStore(t *testing.T) *db.Store {
	t.Helper()
	if err := handle.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	return db.NewStore(handle.DB)
}

func mustUser(t *testing.T, s *db.Store, name string, role models.Role, dept string) models.User {
	t.Helper()
	u := models.User{
		Username:     name,
		Email:        name + "@school.test",
		PasswordHash: "x",
		Role:         role,
		Department:   dept,
	}
	if err := s.InsertUser(context.Background(), &u); err != nil {
		t.Fatal(err)
	}
	return u
}

func mustTemplate(t *testing.T, s *db.Store, teacherID int64, day models.Weekday, session int, status models.Status) {
	t.Helper()
	err := s.InsertEntries(context.Background(), []models.TimetableEntry{{
		TeacherID: teacherID, Day: day, Session: session, Status: status,
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func monday(t *testing.T) time.Time {
	t.Helper()
	d, err := models.ParseDate("2024-06-03")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.User, string, string) error { return nil }

func TestUsers_UniqueAndFilters(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)

	hod := mustUser(t, s, "hod", models.HOD, "D")
	mustUser(t, s, "t1", models.Teacher, "D")
	mustUser(t, s, "t2", models.Teacher, "E")

	dup := models.User{Username: "hod", Email: "other@school.test", Role: models.Teacher, Department: "D"}
	if err := s.InsertUser(ctx, &dup); !errors.Is(err, schedule.ErrConflict) {
		t.Fatalf("duplicate username: got %v", err)
	}
	dup = models.User{Username: "other", Email: "HOD@school.test", Role: models.Teacher, Department: "D"}
	if err := s.InsertUser(ctx, &dup); !errors.Is(err, schedule.ErrConflict) {
		t.Fatalf("duplicate email: got %v", err)
	}

	got, err := s.ListUsers(ctx, schedule.UserFilter{Department: "D", Roles: []models.Role{models.Teacher}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Username != "t1" {
		t.Fatalf("filter: got %+v", got)
	}

	if _, err := s.GetUser(ctx, 999); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, hod.ID, "y"); err != nil {
		t.Fatal(err)
	}
	u, err := s.GetUser(ctx, hod.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.PasswordHash != "y" {
		t.Fatalf("password hash not updated: %q", u.PasswordHash)
	}
}

func TestEntries_TemplateAndOverride(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	u := mustUser(t, s, "t1", models.Teacher, "D")
	date := monday(t)

	mustTemplate(t, s, u.ID, models.Monday, 1, models.Busy)
	mustTemplate(t, s, u.ID, models.Monday, 2, models.Free)

	for _, status := range []models.Status{models.Free, models.Busy} {
		err := s.UpsertDateEntry(ctx, models.TimetableEntry{
			TeacherID: u.ID, Day: models.Monday, Date: &date, Session: 2, Status: status,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	overrides, err := s.ListEntries(ctx, schedule.EntryFilter{TeacherIDs: []int64{u.ID}, Date: &date})
	if err != nil {
		t.Fatal(err)
	}
	if len(overrides) != 1 || overrides[0].Status != models.Busy {
		t.Fatalf("override upsert: got %+v", overrides)
	}
	if !overrides[0].Date.Equal(date) {
		t.Fatalf("override date: got %v want %v", overrides[0].Date, date)
	}

	n, err := s.DeleteEntries(ctx, schedule.EntryFilter{TeacherIDs: []int64{u.ID}, TemplateOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("deleted %d template rows, want 2", n)
	}
	left, err := s.ListEntries(ctx, schedule.EntryFilter{TeacherIDs: []int64{u.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].Date == nil {
		t.Fatalf("template delete touched overrides: %+v", left)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx schedule.Store) error {
		u := models.User{Username: "ghost", Email: "ghost@school.test", Role: models.Teacher, Department: "D"}
		if err := tx.InsertUser(ctx, &u); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	users, err := s.ListUsers(ctx, schedule.UserFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Fatalf("rollback left %d users", len(users))
	}
}

func TestResolveLeave_Postgres(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	date := monday(t)

	hod := mustUser(t, s, "hod", models.HOD, "D")
	req := mustUser(t, s, "t1", models.Teacher, "D")
	sub := mustUser(t, s, "t2", models.Teacher, "D")
	mustTemplate(t, s, hod.ID, models.Monday, 3, models.Busy)
	mustTemplate(t, s, req.ID, models.Monday, 3, models.Busy)
	mustTemplate(t, s, sub.ID, models.Monday, 3, models.Free)

	r := schedule.NewResolver(s, nopNotifier{}, zap.NewNop())
	res, err := r.ResolveLeave(ctx, req.ID, date, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Leave.SubstituteID == nil || *res.Leave.SubstituteID != sub.ID {
		t.Fatalf("substitute: got %+v", res.Leave)
	}

	leaves, err := s.ListLeaves(ctx, schedule.LeaveFilter{Department: "D"})
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 1 || !leaves[0].Date.Equal(date) || leaves[0].Session != 3 {
		t.Fatalf("leaves: %+v", leaves)
	}
	overrides, err := s.ListEntries(ctx, schedule.EntryFilter{TeacherIDs: []int64{sub.ID}, Date: &date})
	if err != nil {
		t.Fatal(err)
	}
	if len(overrides) != 1 || overrides[0].Status != models.Busy {
		t.Fatalf("substitute override: %+v", overrides)
	}

	if _, err := r.ResolveLeave(ctx, req.ID, date, 3); !errors.Is(err, schedule.ErrDuplicateRequest) {
		t.Fatalf("repeat request: got %v", err)
	}
}

func TestResolveLeave_ParallelDuplicates(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	date := monday(t)

	req := mustUser(t, s, "t1", models.Teacher, "D")
	mustTemplate(t, s, req.ID, models.Monday, 1, models.Busy)
	for _, name := range []string{"t2", "t3", "t4"} {
		u := mustUser(t, s, name, models.Teacher, "D")
		mustTemplate(t, s, u.ID, models.Monday, 1, models.Free)
	}

	r := schedule.NewResolver(s, nopNotifier{}, zap.NewNop())
	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.ResolveLeave(ctx, req.ID, date, 1)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, schedule.ErrDuplicateRequest):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Fatalf("ok=%d dup=%d", ok, dup)
	}

	reminded := false
	pending, err := s.ListLeaves(ctx, schedule.LeaveFilter{ReminderSent: &reminded})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending leaves: %d", len(pending))
	}
	if err := s.MarkLeavesReminded(ctx, []int64{pending[0].ID}); err != nil {
		t.Fatal(err)
	}
	pending, err = s.ListLeaves(ctx, schedule.LeaveFilter{ReminderSent: &reminded})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("leave not marked reminded")
	}
}

func TestResolveLeave_DifferentRequestersShareOneSubstitute(t *testing.T) {
	ctx := context.Background()
	s := freshStore(t)
	date := monday(t)

	sub := mustUser(t, s, "sub", models.Teacher, "D")
	mustTemplate(t, s, sub.ID, models.Monday, 2, models.Free)
	var requesters []models.User
	for _, name := range []string{"r1", "r2", "r3", "r4"} {
		u := mustUser(t, s, name, models.Teacher, "D")
		mustTemplate(t, s, u.ID, models.Monday, 2, models.Busy)
		requesters = append(requesters, u)
	}

	r := schedule.NewResolver(s, nopNotifier{}, zap.NewNop())
	errs := make([]error, len(requesters))
	var wg sync.WaitGroup
	for i, u := range requesters {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = r.ResolveLeave(ctx, id, date, 2)
		}(i, u.ID)
	}
	wg.Wait()

	var ok, none int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, schedule.ErrNoSubstituteAvailable):
			none++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || none != len(requesters)-1 {
		t.Fatalf("ok=%d none=%d", ok, none)
	}
	subID := sub.ID
	booked, err := s.ListLeaves(ctx, schedule.LeaveFilter{SubstituteID: &subID, Date: &date})
	if err != nil {
		t.Fatal(err)
	}
	if len(booked) != 1 {
		t.Fatalf("substitute booked %d times", len(booked))
	}
}

func TestLockUser_Missing(t *testing.T) {
	s := freshStore(t)
	if err := s.LockUser(context.Background(), 42); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}
