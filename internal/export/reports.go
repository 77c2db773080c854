package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

// LeaveReportExcel lists a department's leaves, one row per leave.
func LeaveReportExcel(department string, rows []models.LeaveReportRow) (*excelize.File, error) {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		sub := r.SubstituteUsername
		if sub == "" {
			sub = "-"
		}
		data = append(data, []string{
			r.Date.Format(models.DateLayout),
			string(models.DayOf(r.Date)),
			strconv.Itoa(r.Session),
			r.TeacherUsername,
			sub,
		})
	}
	return NewWorkbook([]SheetSpec{{
		Title:  sheetTitle("Leaves " + department),
		Header: []string{"Date", "Day", "Session", "Teacher", "Substitute"},
		Rows:   data,
	}})
}

// TimetableExcel renders a weekly template with weekdays as rows and
// sessions as columns.
func TimetableExcel(username string, g schedule.Grid) (*excelize.File, error) {
	header := make([]string, 0, g.Sessions+1)
	header = append(header, "Day")
	for s := 1; s <= g.Sessions; s++ {
		header = append(header, fmt.Sprintf("Session %d", s))
	}
	data := make([][]string, 0, len(g.Days))
	for _, d := range g.Days {
		row := make([]string, 0, g.Sessions+1)
		row = append(row, string(d))
		for s := 1; s <= g.Sessions; s++ {
			row = append(row, string(g.Status(d, s)))
		}
		data = append(data, row)
	}
	return NewWorkbook([]SheetSpec{{
		Title:  sheetTitle("Timetable " + username),
		Header: header,
		Rows:   data,
	}})
}

func LeaveReportFilename(department string) string {
	return sanitizeFileName(fmt.Sprintf("leave report %s.xlsx", department))
}

func TimetableFilename(username string) string {
	return sanitizeFileName(fmt.Sprintf("timetable %s.xlsx", username))
}

// sheetTitle trims to Excel's 31 character limit and drops forbidden runes.
func sheetTitle(s string) string {
	s = invalidFileRe.ReplaceAllString(s, " ")
	s = sanitizeFileName(s)
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}
