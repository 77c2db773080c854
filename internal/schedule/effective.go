package schedule

import (
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

// effective resolves a teacher's status at (date, session) with priority
// override > leave > template > Free.
func (ix *slotIndex) effective(teacherID int64, day models.Weekday, date time.Time, session int) models.Status {
	if e, ok := ix.override(teacherID, date, session); ok {
		return e.Status
	}
	if _, ok := ix.leave(teacherID, date, session); ok {
		return models.OnLeave
	}
	if e, ok := ix.template(teacherID, day, session); ok {
		return e.Status
	}
	return models.Free
}

// EffectiveStatus applies the same priority to already fetched rows. Any of the
// arguments may be nil.
func EffectiveStatus(override *models.TimetableEntry, leave *models.LeaveRequest, template *models.TimetableEntry) models.Status {
	switch {
	case override != nil:
		return override.Status
	case leave != nil:
		return models.OnLeave
	case template != nil:
		return template.Status
	default:
		return models.Free
	}
}
