package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

func cell(t *testing.T, f *excelize.File, sheet, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestLeaveReportExcel(t *testing.T) {
	sub := int64(3)
	rows := []models.LeaveReportRow{
		{LeaveID: 1, TeacherID: 2, TeacherUsername: "alice", SubstituteID: &sub, SubstituteUsername: "bob",
			Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Session: 3},
		{LeaveID: 2, TeacherID: 2, TeacherUsername: "alice",
			Date: time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), Session: 1},
	}
	f, err := LeaveReportExcel("Math", rows)
	if err != nil {
		t.Fatal(err)
	}
	sheet := f.GetSheetName(0)
	if sheet != "Leaves Math" {
		t.Fatalf("sheet %q", sheet)
	}

	tests := map[string]string{
		"A1": "Date", "E1": "Substitute",
		"A2": "2024-06-03", "B2": "Monday", "C2": "3", "D2": "alice", "E2": "bob",
		"B3": "Tuesday", "E3": "-",
	}
	for axis, want := range tests {
		if got := cell(t, f, sheet, axis); got != want {
			t.Errorf("%s = %q, want %q", axis, got, want)
		}
	}

	b, err := Bytes(f)
	if err != nil {
		t.Fatal(err)
	}
	back, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, back, sheet, "D2"); got != "alice" {
		t.Fatalf("round trip D2 = %q", got)
	}
}

func TestTimetableExcel(t *testing.T) {
	g := schedule.Grid{
		TeacherID: 1,
		Days:      []models.Weekday{models.Monday, models.Tuesday},
		Sessions:  2,
		Entries: []models.TimetableEntry{
			{TeacherID: 1, Day: models.Monday, Session: 1, Status: models.Busy},
			{TeacherID: 1, Day: models.Tuesday, Session: 2, Status: models.Busy},
		},
	}
	f, err := TimetableExcel("alice", g)
	if err != nil {
		t.Fatal(err)
	}
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Day", "Session 1", "Session 2"},
		{"Monday", "Busy", "Free"},
		{"Tuesday", "Free", "Busy"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows: %v", rows)
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestNames(t *testing.T) {
	if got := columnName(27); got != "AA" {
		t.Errorf("columnName(27) = %q", got)
	}
	if got := TimetableFilename("a/b:c"); got != "timetable a_b_c.xlsx" {
		t.Errorf("filename %q", got)
	}
	long := sheetTitle("Timetable a-very-long-username-for-a-teacher")
	if len([]rune(long)) != 31 {
		t.Errorf("sheet title %q not truncated", long)
	}
}
