package schedule

import (
	"fmt"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

// CanManageTimetable reports whether actor may generate or save target's
// template: HODs manage their own timetable and the Teachers of their department.
func CanManageTimetable(actor, target models.User) error {
	if actor.Role != models.HOD {
		return fmt.Errorf("%w: only HODs can create timetables", ErrForbidden)
	}
	if actor.ID == target.ID {
		return nil
	}
	return CanManageTeacher(actor, target)
}

// CanManageTeacher reports whether actor may administer target's account.
func CanManageTeacher(actor, target models.User) error {
	if actor.Role != models.HOD {
		return fmt.Errorf("%w: only HODs can manage teachers", ErrForbidden)
	}
	if target.Role != models.Teacher {
		return fmt.Errorf("%w: target is not a teacher", ErrForbidden)
	}
	if target.Department != actor.Department {
		return fmt.Errorf("%w: teacher belongs to another department", ErrForbidden)
	}
	return nil
}
