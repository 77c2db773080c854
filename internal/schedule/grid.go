package schedule

import (
	"fmt"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

const (
	MaxDays     = 7
	MaxSessions = 24
)

// Grid is a generated or edited weekly template for one teacher.
type Grid struct {
	TeacherID int64                   `json:"teacher_id"`
	Days      []models.Weekday        `json:"days"`
	Sessions  int                     `json:"sessions"`
	Entries   []models.TimetableEntry `json:"-"`
}

// Status returns the status at (day, session), Free when absent.
func (g Grid) Status(day models.Weekday, session int) models.Status {
	for _, e := range g.Entries {
		if e.Day == day && e.Session == session {
			return e.Status
		}
	}
	return models.Free
}

// Rows renders the grid day by day, sessions in ascending order.
func (g Grid) Rows() map[models.Weekday][]models.Status {
	out := make(map[models.Weekday][]models.Status, len(g.Days))
	for _, d := range g.Days {
		out[d] = make([]models.Status, g.Sessions)
		for i := range out[d] {
			out[d][i] = models.Free
		}
	}
	for _, e := range g.Entries {
		row, ok := out[e.Day]
		if !ok || e.Session < 1 || e.Session > len(row) {
			continue
		}
		row[e.Session-1] = e.Status
	}
	return out
}

func ValidateDimensions(dayCount, sessionCount int) error {
	if dayCount < 1 || dayCount > MaxDays {
		return fmt.Errorf("%w: number of days must be between 1 and %d", ErrInvalidParameter, MaxDays)
	}
	if sessionCount < 1 {
		return fmt.Errorf("%w: number of sessions must be at least 1", ErrInvalidParameter)
	}
	if sessionCount > MaxSessions {
		return fmt.Errorf("%w: number of sessions per day cannot exceed %d", ErrInvalidParameter, MaxSessions)
	}
	return nil
}

// BuildGrid drafts dayCount*sessionCount template entries for a teacher.
// Slots already present in existing (template rows of that teacher) keep their
// status; the rest are Busy or Free with equal probability.
func BuildGrid(teacherID int64, dayCount, sessionCount int, existing []models.TimetableEntry, rnd Rand) ([]models.TimetableEntry, error) {
	if err := ValidateDimensions(dayCount, sessionCount); err != nil {
		return nil, err
	}
	var own []models.TimetableEntry
	for _, e := range existing {
		if e.TeacherID == teacherID && e.IsTemplate() {
			own = append(own, e)
		}
	}
	ix := newSlotIndex(own, nil)

	out := make([]models.TimetableEntry, 0, dayCount*sessionCount)
	for _, day := range models.Week[:dayCount] {
		for session := 1; session <= sessionCount; session++ {
			var status models.Status
			if prev, ok := ix.template(teacherID, day, session); ok {
				status = prev.Status
			} else {
				status = randomStatus(rnd)
			}
			out = append(out, models.TimetableEntry{
				TeacherID: teacherID,
				Day:       day,
				Session:   session,
				Status:    status,
			})
		}
	}
	return out, nil
}

func randomStatus(rnd Rand) models.Status {
	if rnd.IntN(2) == 0 {
		return models.Busy
	}
	return models.Free
}
