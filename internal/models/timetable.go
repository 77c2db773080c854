package models

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	Busy    Status = "Busy"
	Free    Status = "Free"
	OnLeave Status = "On Leave"
)

// Weekday is the label stored in timetable_entries.day, e.g. "Monday".
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Week is the canonical Monday-first order used by the timetable generator.
var Week = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DayOf returns the weekday label of a calendar date.
func DayOf(date time.Time) Weekday {
	return Weekday(date.Weekday().String())
}

// ParseWeekday accepts any case ("monday", "MONDAY").
func ParseWeekday(s string) (Weekday, error) {
	for _, d := range Week {
		if strings.EqualFold(string(d), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", s)
}

// Index is the position of the day in Week, -1 if unknown.
func (d Weekday) Index() int {
	for i, w := range Week {
		if w == d {
			return i
		}
	}
	return -1
}

// TimetableEntry is either a weekly template row (Date == nil) or a
// date-specific override.
type TimetableEntry struct {
	ID           int64      `db:"id"`
	TeacherID    int64      `db:"teacher_id"`
	Day          Weekday    `db:"day"`
	Date         *time.Time `db:"date"`
	Session      int        `db:"session"`
	Status       Status     `db:"status"`
	SubstituteID *int64     `db:"substitute_id"`
}

func (e TimetableEntry) IsTemplate() bool { return e.Date == nil }

const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// DateOnly drops the clock part so dates compare by calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
