// Package app exposes timetables, leaves and staff management over HTTP.
package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/logging"
	"github.com/Spok95/timetable-substitutes/internal/metrics"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
	"github.com/Spok95/timetable-substitutes/internal/staff"
)

// UserHeader carries the authenticated user id set by the auth proxy.
const UserHeader = "X-User-ID"

// Pinger checks the backing database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Store           schedule.Store
	Planner         *schedule.Planner
	Resolver        *schedule.Resolver
	Staff           *staff.Service
	DB              Pinger
	Log             *zap.Logger
	DefaultDays     int
	DefaultSessions int
}

type Server struct {
	Deps
	leaves   *KeyLimiter
	validate *validator.Validate
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.DefaultDays == 0 {
		d.DefaultDays = 5
	}
	if d.DefaultSessions == 0 {
		d.DefaultSessions = 5
	}
	return &Server{Deps: d, leaves: NewKeyLimiter(), validate: validator.New()}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, s.recoverer, s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/hods", s.handleRegisterHOD)

		r.Group(func(r chi.Router) {
			r.Use(s.requireActor)

			r.Get("/teachers", s.handleListTeachers)
			r.Post("/teachers", s.handleAddTeacher)
			r.Delete("/teachers/{id}", s.handleRemoveTeacher)
			r.Put("/teachers/{id}/password", s.handleResetPassword)

			r.Post("/timetables/{id}/generate", s.handleGenerate)
			r.Put("/timetables/{id}", s.handleSave)
			r.Get("/timetables/{id}", s.handleTemplate)
			r.Get("/timetables/{id}/day", s.handleDayView)
			r.Get("/timetables/{id}/export", s.handleExportTimetable)

			r.Get("/leaves", s.handleListLeaves)
			r.Post("/leaves", s.handleRequestLeave)
			r.Get("/reports/leaves", s.handleLeaveReport)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		_, _ = w.Write([]byte("ok"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	t0 := time.Now()
	if err := s.DB.Ping(ctx); err != nil {
		http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	metrics.ObserveDBPing(time.Since(t0))
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid "+UserHeader)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctxutil.WithUserID(r.Context(), id)))
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		if status >= http.StatusInternalServerError {
			metrics.HandlerErrors.Inc()
		}
		logging.FromContext(r.Context(), s.Log).Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.Log.Error("handler panicked", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				capturePanic(rec)
				writeError(w, http.StatusInternalServerError, "internal", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
