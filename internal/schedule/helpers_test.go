package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/testutil/memstore"
)

// constRand always draws the same value (modulo n).
type constRand int

func (c constRand) IntN(n int) int { return int(c) % n }

// strictRand fails the test on any draw.
type strictRand struct{ t *testing.T }

func (r strictRand) IntN(int) int {
	r.t.Helper()
	r.t.Fatal("unexpected random draw")
	return 0
}

func mustUser(t *testing.T, st *memstore.Store, name string, role models.Role, dept string) models.User {
	t.Helper()
	u := models.User{
		Username:   name,
		Email:      name + "@school.test",
		Role:       role,
		Department: dept,
	}
	if err := st.InsertUser(context.Background(), &u); err != nil {
		t.Fatal(err)
	}
	return u
}

func mustTemplate(t *testing.T, st *memstore.Store, teacherID int64, day models.Weekday, session int, status models.Status) {
	t.Helper()
	err := st.InsertEntries(context.Background(), []models.TimetableEntry{{
		TeacherID: teacherID, Day: day, Session: session, Status: status,
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func mustOverride(t *testing.T, st *memstore.Store, teacherID int64, date time.Time, session int, status models.Status) {
	t.Helper()
	err := st.UpsertDateEntry(context.Background(), models.TimetableEntry{
		TeacherID: teacherID, Day: models.DayOf(date), Date: &date, Session: session, Status: status,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// snapshot renders the whole store so tests can assert "nothing changed".
func snapshot(st *memstore.Store) string {
	return fmt.Sprintf("%+v|%+v|%+v", st.Users(), st.Entries(), derefLeaves(st.Leaves()))
}

func derefLeaves(ls []models.LeaveRequest) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		sub := int64(0)
		if l.SubstituteID != nil {
			sub = *l.SubstituteID
		}
		out = append(out, fmt.Sprintf("%d:%d:%d:%s:%d", l.ID, l.TeacherID, sub, l.Date.Format(models.DateLayout), l.Session))
	}
	return out
}

type sentMessage struct {
	To      int64
	Subject string
	Body    string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[int64]bool
}

func (f *fakeNotifier) Notify(_ context.Context, to models.User, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to.ID] {
		return errors.New("telegram: 502 Bad Gateway")
	}
	f.sent = append(f.sent, sentMessage{To: to.ID, Subject: subject, Body: body})
	return nil
}

// maxBusyRun is the longest run of Busy sessions per day.
func maxBusyRun(entries []models.TimetableEntry) map[models.Weekday]int {
	byDay := map[models.Weekday]map[int]models.Status{}
	maxSession := map[models.Weekday]int{}
	for _, e := range entries {
		if byDay[e.Day] == nil {
			byDay[e.Day] = map[int]models.Status{}
		}
		byDay[e.Day][e.Session] = e.Status
		if e.Session > maxSession[e.Day] {
			maxSession[e.Day] = e.Session
		}
	}
	out := map[models.Weekday]int{}
	for d, sessions := range byDay {
		run := 0
		for s := 1; s <= maxSession[d]; s++ {
			if sessions[s] == models.Busy {
				run++
				if run > out[d] {
					out[d] = run
				}
			} else {
				run = 0
			}
		}
	}
	return out
}
