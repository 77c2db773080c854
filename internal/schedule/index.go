package schedule

import (
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

type daySlot struct {
	teacherID int64
	day       models.Weekday
	session   int
}

type dateSlot struct {
	teacherID int64
	date      string
	session   int
}

// slotIndex answers "which entry sits at this slot" in O(1). It is built once
// per operation from whatever the store returned.
type slotIndex struct {
	templates map[daySlot]models.TimetableEntry
	overrides map[dateSlot]models.TimetableEntry
	leaves    map[dateSlot]models.LeaveRequest
}

func newSlotIndex(entries []models.TimetableEntry, leaves []models.LeaveRequest) *slotIndex {
	ix := &slotIndex{
		templates: make(map[daySlot]models.TimetableEntry, len(entries)),
		overrides: make(map[dateSlot]models.TimetableEntry),
		leaves:    make(map[dateSlot]models.LeaveRequest, len(leaves)),
	}
	for _, e := range entries {
		if e.IsTemplate() {
			ix.templates[daySlot{e.TeacherID, e.Day, e.Session}] = e
			continue
		}
		ix.overrides[dateSlot{e.TeacherID, dateKey(*e.Date), e.Session}] = e
	}
	for _, l := range leaves {
		ix.leaves[dateSlot{l.TeacherID, dateKey(l.Date), l.Session}] = l
	}
	return ix
}

func (ix *slotIndex) template(teacherID int64, day models.Weekday, session int) (models.TimetableEntry, bool) {
	e, ok := ix.templates[daySlot{teacherID, day, session}]
	return e, ok
}

func (ix *slotIndex) override(teacherID int64, date time.Time, session int) (models.TimetableEntry, bool) {
	e, ok := ix.overrides[dateSlot{teacherID, dateKey(date), session}]
	return e, ok
}

func (ix *slotIndex) leave(teacherID int64, date time.Time, session int) (models.LeaveRequest, bool) {
	l, ok := ix.leaves[dateSlot{teacherID, dateKey(date), session}]
	return l, ok
}

func dateKey(t time.Time) string { return t.Format(models.DateLayout) }
