package models

import "time"

type LeaveRequest struct {
	ID           int64     `db:"id"`
	TeacherID    int64     `db:"teacher_id"`
	SubstituteID *int64    `db:"substitute_id"`
	Date         time.Time `db:"date"`
	Session      int       `db:"session"`
	ReminderSent bool      `db:"reminder_sent"`
	CreatedAt    time.Time `db:"created_at"`
}

// LeaveReportRow is a leave joined with requester and substitute names.
type LeaveReportRow struct {
	LeaveID            int64
	TeacherID          int64
	TeacherUsername    string
	SubstituteID       *int64
	SubstituteUsername string
	Date               time.Time
	Session            int
}
