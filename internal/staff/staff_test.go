package staff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
	"github.com/Spok95/timetable-substitutes/internal/staff"
	"github.com/Spok95/timetable-substitutes/internal/testutil/memstore"
)

func account(name string) staff.Account {
	return staff.Account{
		Username:   name,
		Email:      name + "@school.test",
		Password:   "correct-horse",
		Department: "Math",
	}
}

func setup(t *testing.T) (*memstore.Store, *staff.Service, models.User) {
	t.Helper()
	st := memstore.New()
	svc := staff.NewService(st, nil)
	hod, err := svc.RegisterHOD(context.Background(), account("hod"))
	if err != nil {
		t.Fatal(err)
	}
	return st, svc, hod
}

func TestRegisterHOD(t *testing.T) {
	ctx := context.Background()
	_, svc, hod := setup(t)

	if hod.Role != models.HOD || hod.Department != "Math" {
		t.Fatalf("unexpected hod: %+v", hod)
	}
	if hod.PasswordHash == "correct-horse" || !staff.CheckPassword(hod, "correct-horse") {
		t.Fatal("password must be stored hashed")
	}

	tests := []struct {
		name string
		in   staff.Account
		want error
	}{
		{"duplicate username", staff.Account{Username: "hod", Email: "x@school.test", Password: "correct-horse", Department: "Math"}, schedule.ErrConflict},
		{"duplicate email", staff.Account{Username: "other", Email: "HOD@school.test", Password: "correct-horse", Department: "Math"}, schedule.ErrConflict},
		{"no department", staff.Account{Username: "nodept", Email: "n@school.test", Password: "correct-horse"}, schedule.ErrInvalidParameter},
		{"bad email", staff.Account{Username: "bad", Email: "not-an-email", Password: "correct-horse", Department: "Math"}, schedule.ErrInvalidParameter},
		{"short password", staff.Account{Username: "short", Email: "s@school.test", Password: "123", Department: "Math"}, schedule.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RegisterHOD(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAddTeacher_ForcesDepartment(t *testing.T) {
	ctx := context.Background()
	_, svc, hod := setup(t)

	in := account("alice")
	in.Department = "History"
	u, err := svc.AddTeacher(ctx, hod.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.Teacher || u.Department != "Math" {
		t.Fatalf("unexpected teacher: %+v", u)
	}

	if _, err := svc.AddTeacher(ctx, u.ID, account("bob")); !errors.Is(err, schedule.ErrForbidden) {
		t.Fatalf("teacher adding teacher: got %v", err)
	}

	list, err := svc.ListTeachers(ctx, hod.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != u.ID {
		t.Fatalf("list: %+v", list)
	}
}

func TestRemoveTeacher_Cascades(t *testing.T) {
	ctx := context.Background()
	st, svc, hod := setup(t)

	alice, err := svc.AddTeacher(ctx, hod.ID, account("alice"))
	if err != nil {
		t.Fatal(err)
	}
	bob, err := svc.AddTeacher(ctx, hod.ID, account("bob"))
	if err != nil {
		t.Fatal(err)
	}
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if err := st.InsertEntries(ctx, []models.TimetableEntry{
		{TeacherID: alice.ID, Day: models.Monday, Session: 1, Status: models.Busy},
		{TeacherID: bob.ID, Day: models.Monday, Session: 1, Status: models.Free},
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertLeave(ctx, &models.LeaveRequest{TeacherID: bob.ID, SubstituteID: &alice.ID, Date: date, Session: 2}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertLeave(ctx, &models.LeaveRequest{TeacherID: alice.ID, SubstituteID: &bob.ID, Date: date, Session: 1}); err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveTeacher(ctx, hod.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetUser(ctx, alice.ID); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("alice still present: %v", err)
	}
	for _, e := range st.Entries() {
		if e.TeacherID == alice.ID {
			t.Fatalf("entry left behind: %+v", e)
		}
	}
	if n := len(st.Leaves()); n != 0 {
		t.Fatalf("%d leaves left behind", n)
	}
	if len(st.Entries()) != 1 {
		t.Fatalf("bob's template must stay: %+v", st.Entries())
	}
}

func TestRemoveTeacher_Forbidden(t *testing.T) {
	ctx := context.Background()
	_, svc, hod := setup(t)

	other, err := svc.RegisterHOD(ctx, staff.Account{Username: "hod2", Email: "hod2@school.test", Password: "correct-horse", Department: "History"})
	if err != nil {
		t.Fatal(err)
	}
	alice, err := svc.AddTeacher(ctx, hod.ID, account("alice"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		actor  int64
		target int64
		want   error
	}{
		{"other department", other.ID, alice.ID, schedule.ErrForbidden},
		{"teacher actor", alice.ID, alice.ID, schedule.ErrForbidden},
		{"hod target", hod.ID, other.ID, schedule.ErrForbidden},
		{"unknown target", hod.ID, 999, schedule.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.RemoveTeacher(ctx, tt.actor, tt.target); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	st, svc, hod := setup(t)
	alice, err := svc.AddTeacher(ctx, hod.ID, account("alice"))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ResetPassword(ctx, hod.ID, alice.ID, "short"); !errors.Is(err, schedule.ErrInvalidParameter) {
		t.Fatalf("short password: got %v", err)
	}
	if err := svc.ResetPassword(ctx, hod.ID, alice.ID, "new-password-1"); err != nil {
		t.Fatal(err)
	}
	u, err := st.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !staff.CheckPassword(u, "new-password-1") || staff.CheckPassword(u, "correct-horse") {
		t.Fatal("password was not replaced")
	}
}

func TestStoreFailureIsWrapped(t *testing.T) {
	st, svc, _ := setup(t)
	st.FailCommit = errors.New("disk full")

	_, err := svc.RegisterHOD(context.Background(), staff.Account{Username: "x", Email: "x@school.test", Password: "correct-horse", Department: "Art"})
	if !errors.Is(err, schedule.ErrStoreFailure) {
		t.Fatalf("got %v", err)
	}
}
