package app

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/export"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/observability"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
	"github.com/Spok95/timetable-substitutes/internal/staff"
)

// Staff

type userResponse struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: string(u.Role), Department: u.Department}
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleRegisterHOD(w http.ResponseWriter, r *http.Request) {
	var req staff.Account
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.Staff.RegisterHOD(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleAddTeacher(w http.ResponseWriter, r *http.Request) {
	var req staff.Account
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.Staff.AddTeacher(r.Context(), actorID(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Staff.ListTeachers(r.Context(), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveTeacher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Staff.RemoveTeacher(r.Context(), actorID(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.Staff.ResetPassword(r.Context(), actorID(r), id, req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Timetables

type generateRequest struct {
	Days     int `json:"days" validate:"omitempty,min=1,max=7"`
	Sessions int `json:"sessions" validate:"omitempty,min=1,max=24"`
}

type saveRequest struct {
	Days     int             `json:"days" validate:"min=1,max=7"`
	Sessions int             `json:"sessions" validate:"min=1,max=24"`
	Busy     []schedule.Slot `json:"busy" validate:"dive"`
}

type gridResponse struct {
	TeacherID int64                              `json:"teacher_id"`
	Days      []models.Weekday                   `json:"days"`
	Sessions  int                                `json:"sessions"`
	Rows      map[models.Weekday][]models.Status `json:"rows"`
}

func toGridResponse(g schedule.Grid) gridResponse {
	return gridResponse{TeacherID: g.TeacherID, Days: g.Days, Sessions: g.Sessions, Rows: g.Rows()}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	target, ok := s.timetableTarget(w, r, schedule.CanManageTimetable)
	if !ok {
		return
	}
	var req generateRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if req.Days == 0 {
		req.Days = s.DefaultDays
	}
	if req.Sessions == 0 {
		req.Sessions = s.DefaultSessions
	}
	g, err := s.Planner.Generate(r.Context(), target.ID, req.Days, req.Sessions)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGridResponse(g))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	target, ok := s.timetableTarget(w, r, schedule.CanManageTimetable)
	if !ok {
		return
	}
	var req saveRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.Planner.Save(r.Context(), target.ID, req.Days, req.Sessions, req.Busy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGridResponse(g))
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	target, ok := s.timetableTarget(w, r, canView)
	if !ok {
		return
	}
	g, err := s.Planner.Template(r.Context(), target.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGridResponse(g))
}

type dayViewResponse struct {
	TeacherID int64                  `json:"teacher_id"`
	Date      string                 `json:"date"`
	Day       models.Weekday         `json:"day"`
	Sessions  []schedule.SessionView `json:"sessions"`
}

func (s *Server) handleDayView(w http.ResponseWriter, r *http.Request) {
	target, ok := s.timetableTarget(w, r, canView)
	if !ok {
		return
	}
	date, err := models.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "date must be YYYY-MM-DD")
		return
	}
	view, err := s.Planner.DayView(r.Context(), target.ID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dayViewResponse{
		TeacherID: target.ID,
		Date:      date.Format(models.DateLayout),
		Day:       models.DayOf(date),
		Sessions:  view,
	})
}

func (s *Server) handleExportTimetable(w http.ResponseWriter, r *http.Request) {
	target, ok := s.timetableTarget(w, r, canView)
	if !ok {
		return
	}
	g, err := s.Planner.Template(r.Context(), target.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	f, err := export.TimetableExcel(target.Username, g)
	if err != nil {
		s.exportFailed(w, err)
		return
	}
	s.writeWorkbook(w, f, export.TimetableFilename(target.Username))
}

// Leaves

type leaveRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Session int    `json:"session" validate:"min=1"`
}

type leaveResponse struct {
	ID           int64          `json:"id"`
	TeacherID    int64          `json:"teacher_id"`
	SubstituteID *int64         `json:"substitute_id,omitempty"`
	Substitute   string         `json:"substitute,omitempty"`
	Date         string         `json:"date"`
	Day          models.Weekday `json:"day"`
	Session      int            `json:"session"`
	Warnings     []string       `json:"warnings,omitempty"`
}

func toLeaveResponse(l models.LeaveRequest) leaveResponse {
	return leaveResponse{
		ID:           l.ID,
		TeacherID:    l.TeacherID,
		SubstituteID: l.SubstituteID,
		Date:         l.Date.Format(models.DateLayout),
		Day:          models.DayOf(l.Date),
		Session:      l.Session,
	}
}

func (s *Server) handleRequestLeave(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "date must be YYYY-MM-DD")
		return
	}

	actor := actorID(r)
	unlock := s.leaves.Lock(actor)
	res, err := s.Resolver.ResolveLeave(r.Context(), actor, date, req.Session)
	unlock()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := toLeaveResponse(res.Leave)
	resp.Substitute = res.Substitute.Username
	resp.Warnings = res.Warnings
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListLeaves(w http.ResponseWriter, r *http.Request) {
	leaves, err := s.Planner.LeaveEvents(r.Context(), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]leaveResponse, 0, len(leaves))
	for _, l := range leaves {
		resp = append(resp, toLeaveResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

type reportRow struct {
	LeaveID    int64  `json:"leave_id"`
	Teacher    string `json:"teacher"`
	Substitute string `json:"substitute,omitempty"`
	Date       string `json:"date"`
	Session    int    `json:"session"`
}

func (s *Server) handleLeaveReport(w http.ResponseWriter, r *http.Request) {
	actor, err := s.Store.GetUser(r.Context(), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if actor.Role != models.HOD {
		writeError(w, http.StatusForbidden, "forbidden", "only HODs can view leave reports")
		return
	}
	rows, err := s.Planner.LeaveReport(r.Context(), actor.Department)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		f, err := export.LeaveReportExcel(actor.Department, rows)
		if err != nil {
			s.exportFailed(w, err)
			return
		}
		s.writeWorkbook(w, f, export.LeaveReportFilename(actor.Department))
		return
	}

	resp := make([]reportRow, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, reportRow{
			LeaveID:    row.LeaveID,
			Teacher:    row.TeacherUsername,
			Substitute: row.SubstituteUsername,
			Date:       row.Date.Format(models.DateLayout),
			Session:    row.Session,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// helpers

func actorID(r *http.Request) int64 {
	id, _ := ctxutil.UserID(r.Context())
	return id
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return false
	}
	return true
}

// canView lets users read their own timetable and HODs read their teachers'.
func canView(actor, target models.User) error {
	if actor.ID == target.ID {
		return nil
	}
	return schedule.CanManageTeacher(actor, target)
}

// timetableTarget loads the actor and the {id} user and applies allow.
func (s *Server) timetableTarget(w http.ResponseWriter, r *http.Request, allow func(actor, target models.User) error) (models.User, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return models.User{}, false
	}
	ctx := r.Context()
	actor, err := s.Store.GetUser(ctx, actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return models.User{}, false
	}
	target, err := s.Store.GetUser(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return models.User{}, false
	}
	if err := allow(actor, target); err != nil {
		writeDomainError(w, err)
		return models.User{}, false
	}
	return target, true
}

func (s *Server) writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	defer func() { _ = f.Close() }()
	b, err := export.Bytes(f)
	if err != nil {
		s.exportFailed(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) exportFailed(w http.ResponseWriter, err error) {
	s.Log.Error("export failed", zap.Error(err))
	observability.CaptureErr(err)
	writeError(w, http.StatusInternalServerError, "export_failed", "")
}

func capturePanic(rec any) {
	observability.CaptureErr(fmt.Errorf("panic: %v", rec))
}

