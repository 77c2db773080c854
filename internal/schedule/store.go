package schedule

import (
	"context"
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
)

type UserFilter struct {
	IDs        []int64
	Department string
	Roles      []models.Role
	Username   string
	Email      string
}

// EntryFilter matches timetable entries. Zero fields match anything.
// TemplateOnly selects rows with a null date; Date selects overrides on that day.
type EntryFilter struct {
	TeacherIDs   []int64
	Day          models.Weekday
	Session      int
	TemplateOnly bool
	Date         *time.Time
}

type LeaveFilter struct {
	TeacherIDs   []int64
	SubstituteID *int64
	Date         *time.Time
	Session      int
	Department   string
	ReminderSent *bool
}

// Store is the record store seen from inside a unit of work.
type Store interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	InsertUser(ctx context.Context, u *models.User) error
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
	// LockUser holds a row lock on the user until the transaction ends, so
	// concurrent bookings of the same colleague queue up.
	LockUser(ctx context.Context, id int64) error

	ListEntries(ctx context.Context, f EntryFilter) ([]models.TimetableEntry, error)
	InsertEntries(ctx context.Context, entries []models.TimetableEntry) error
	// UpsertDateEntry creates or overwrites the override at (teacher, date, session).
	UpsertDateEntry(ctx context.Context, e models.TimetableEntry) error
	DeleteEntries(ctx context.Context, f EntryFilter) (int64, error)

	ListLeaves(ctx context.Context, f LeaveFilter) ([]models.LeaveRequest, error)
	// InsertLeave returns ErrDuplicateRequest when (teacher, date, session) exists.
	InsertLeave(ctx context.Context, l *models.LeaveRequest) error
	DeleteLeaves(ctx context.Context, f LeaveFilter) (int64, error)
	MarkLeavesReminded(ctx context.Context, ids []int64) error
}

// TxStore runs fn in a transaction: committed when fn returns nil, rolled back
// otherwise. A failed commit leaves no partial writes.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
