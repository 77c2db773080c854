package schedule

import (
	"testing"
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

func TestSlotIndex_EffectivePriority(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	sub := int64(3)
	ix := newSlotIndex([]models.TimetableEntry{
		{TeacherID: 1, Day: "Monday", Session: 1, Status: models.Busy},
		{TeacherID: 1, Day: "Monday", Date: &date, Session: 1, Status: models.Free},
		{TeacherID: 1, Day: "Monday", Session: 2, Status: models.Busy},
		{TeacherID: 1, Day: "Monday", Session: 3, Status: models.Free},
	}, []models.LeaveRequest{
		{TeacherID: 1, SubstituteID: &sub, Date: date, Session: 1},
		{TeacherID: 1, SubstituteID: &sub, Date: date, Session: 2},
	})

	cases := []struct {
		session int
		want    models.Status
	}{
		{1, models.Free},    // override beats leave and template
		{2, models.OnLeave}, // leave beats template
		{3, models.Free},    // template
		{4, models.Free},    // nothing recorded
	}
	for _, c := range cases {
		if got := ix.effective(1, "Monday", date, c.session); got != c.want {
			t.Fatalf("session %d: want %s, got %s", c.session, c.want, got)
		}
	}
	// a different date of the same weekday only sees the template
	next := date.AddDate(0, 0, 7)
	if got := ix.effective(1, "Monday", next, 1); got != models.Busy {
		t.Fatalf("next week: want Busy, got %s", got)
	}
}

func TestEffectiveStatus(t *testing.T) {
	busy := &models.TimetableEntry{Status: models.Busy}
	free := &models.TimetableEntry{Status: models.Free}
	leave := &models.LeaveRequest{}
	if EffectiveStatus(free, leave, busy) != models.Free {
		t.Fatal("override must win")
	}
	if EffectiveStatus(nil, leave, busy) != models.OnLeave {
		t.Fatal("leave must beat template")
	}
	if EffectiveStatus(nil, nil, busy) != models.Busy {
		t.Fatal("template fallback")
	}
	if EffectiveStatus(nil, nil, nil) != models.Free {
		t.Fatal("default Free")
	}
}
