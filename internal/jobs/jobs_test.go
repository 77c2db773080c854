package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/notify"
	"github.com/Spok95/timetable-substitutes/internal/testutil/memstore"
)

type recorder struct {
	to     []string
	bodies []string
	fail   map[string]error
}

func (r *recorder) Notify(_ context.Context, to models.User, _, body string) error {
	if err := r.fail[to.Username]; err != nil {
		return err
	}
	r.to = append(r.to, to.Username)
	r.bodies = append(r.bodies, body)
	return nil
}

func seed(t *testing.T, st *memstore.Store, name string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@school.test", Role: models.Teacher, Department: "D"}
	if err := st.InsertUser(context.Background(), &u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestReminders_Run(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	req := seed(t, st, "req")
	sub1 := seed(t, st, "sub1")
	sub2 := seed(t, st, "sub2")
	sub3 := seed(t, st, "sub3")

	tomorrow := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	later := tomorrow.AddDate(0, 0, 1)
	for _, l := range []models.LeaveRequest{
		{TeacherID: req.ID, SubstituteID: &sub1.ID, Date: tomorrow, Session: 1},
		{TeacherID: req.ID, SubstituteID: &sub2.ID, Date: tomorrow, Session: 2},
		{TeacherID: req.ID, SubstituteID: &sub3.ID, Date: tomorrow, Session: 3},
		{TeacherID: req.ID, SubstituteID: &sub1.ID, Date: later, Session: 1},
	} {
		l := l
		if err := st.InsertLeave(ctx, &l); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{fail: map[string]error{
		"sub2": errors.New("telegram: 502"),
		"sub3": notify.ErrNoAddress,
	}}
	r := NewReminders(st, rec, time.UTC, nil)
	r.now = func() time.Time { return time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC) }

	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rec.to) != 1 || rec.to[0] != "sub1" {
		t.Fatalf("reminded %v", rec.to)
	}
	if want := "Tomorrow (2024-06-04, session 1) you are substituting for req."; rec.bodies[0] != want {
		t.Fatalf("body %q", rec.bodies[0])
	}

	sent := map[int]bool{}
	for _, l := range st.Leaves() {
		if l.Date.Equal(tomorrow) {
			sent[l.Session] = l.ReminderSent
		} else if l.ReminderSent {
			t.Fatal("leave after tomorrow must not be reminded")
		}
	}
	if !sent[1] || sent[2] || !sent[3] {
		t.Fatalf("reminder flags: %v", sent)
	}

	// second run retries only the failed delivery
	rec.fail = nil
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(rec.to) != 2 || rec.to[1] != "sub2" {
		t.Fatalf("second run reminded %v", rec.to)
	}
}

func TestRunner_EveryRecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil)

	var calls atomic.Int32
	r.Every(5*time.Millisecond, "test", func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	r.Wait()
	if calls.Load() < 3 {
		t.Fatalf("job ran %d times", calls.Load())
	}
}
