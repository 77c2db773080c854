// Package memstore is an in-memory schedule.TxStore. Transactions run on a
// copy of the state which replaces the live state only when fn succeeds and
// the commit is not failed on purpose; one transaction runs at a time.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

type state struct {
	nextID  int64
	users   map[int64]models.User
	entries map[int64]models.TimetableEntry
	leaves  map[int64]models.LeaveRequest
}

func (s *state) clone() *state {
	c := &state{
		nextID:  s.nextID,
		users:   make(map[int64]models.User, len(s.users)),
		entries: make(map[int64]models.TimetableEntry, len(s.entries)),
		leaves:  make(map[int64]models.LeaveRequest, len(s.leaves)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.leaves {
		c.leaves[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
	// FailCommit, when set, is returned by the next WithTx instead of committing.
	FailCommit error
}

func New() *Store {
	return &Store{st: &state{
		users:   map[int64]models.User{},
		entries: map[int64]models.TimetableEntry{},
		leaves:  map[int64]models.LeaveRequest{},
	}}
}

var _ schedule.TxStore = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&view{st: work}); err != nil {
		return err
	}
	if s.FailCommit != nil {
		err := s.FailCommit
		s.FailCommit = nil
		return fmt.Errorf("commit: %w", err)
	}
	s.st = work
	return nil
}

func (s *Store) live() (*view, func()) {
	s.mu.Lock()
	return &view{st: s.st}, s.mu.Unlock
}

// Users, Entries and Leaves return copies sorted by id.
func (s *Store) Users() []models.User {
	v, done := s.live()
	defer done()
	return sortedValues(v.st.users, func(u models.User) int64 { return u.ID })
}

func (s *Store) Entries() []models.TimetableEntry {
	v, done := s.live()
	defer done()
	return sortedValues(v.st.entries, func(e models.TimetableEntry) int64 { return e.ID })
}

func (s *Store) Leaves() []models.LeaveRequest {
	v, done := s.live()
	defer done()
	return sortedValues(v.st.leaves, func(l models.LeaveRequest) int64 { return l.ID })
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	v, done := s.live()
	defer done()
	return v.GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context, f schedule.UserFilter) ([]models.User, error) {
	v, done := s.live()
	defer done()
	return v.ListUsers(ctx, f)
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	v, done := s.live()
	defer done()
	return v.InsertUser(ctx, u)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	v, done := s.live()
	defer done()
	return v.UpdatePasswordHash(ctx, userID, hash)
}

func (s *Store) LockUser(ctx context.Context, id int64) error {
	v, unlock := s.live()
	defer unlock()
	return v.LockUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	v, done := s.live()
	defer done()
	return v.DeleteUser(ctx, id)
}

func (s *Store) ListEntries(ctx context.Context, f schedule.EntryFilter) ([]models.TimetableEntry, error) {
	v, done := s.live()
	defer done()
	return v.ListEntries(ctx, f)
}

func (s *Store) InsertEntries(ctx context.Context, entries []models.TimetableEntry) error {
	v, done := s.live()
	defer done()
	return v.InsertEntries(ctx, entries)
}

func (s *Store) UpsertDateEntry(ctx context.Context, e models.TimetableEntry) error {
	v, done := s.live()
	defer done()
	return v.UpsertDateEntry(ctx, e)
}

func (s *Store) DeleteEntries(ctx context.Context, f schedule.EntryFilter) (int64, error) {
	v, done := s.live()
	defer done()
	return v.DeleteEntries(ctx, f)
}

func (s *Store) ListLeaves(ctx context.Context, f schedule.LeaveFilter) ([]models.LeaveRequest, error) {
	v, done := s.live()
	defer done()
	return v.ListLeaves(ctx, f)
}

func (s *Store) InsertLeave(ctx context.Context, l *models.LeaveRequest) error {
	v, done := s.live()
	defer done()
	return v.InsertLeave(ctx, l)
}

func (s *Store) DeleteLeaves(ctx context.Context, f schedule.LeaveFilter) (int64, error) {
	v, done := s.live()
	defer done()
	return v.DeleteLeaves(ctx, f)
}

func (s *Store) MarkLeavesReminded(ctx context.Context, ids []int64) error {
	v, done := s.live()
	defer done()
	return v.MarkLeavesReminded(ctx, ids)
}

// view implements schedule.Store over one state without locking.
type view struct {
	st *state
}

func (v *view) id() int64 {
	v.st.nextID++
	return v.st.nextID
}

func (v *view) GetUser(_ context.Context, id int64) (models.User, error) {
	u, ok := v.st.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", id, schedule.ErrNotFound)
	}
	return u, nil
}

func (v *view) ListUsers(_ context.Context, f schedule.UserFilter) ([]models.User, error) {
	var out []models.User
	for _, u := range sortedValues(v.st.users, func(u models.User) int64 { return u.ID }) {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, u.ID) {
			continue
		}
		if f.Department != "" && u.Department != f.Department {
			continue
		}
		if len(f.Roles) > 0 && !slices.Contains(f.Roles, u.Role) {
			continue
		}
		if f.Username != "" && u.Username != f.Username {
			continue
		}
		if f.Email != "" && !strings.EqualFold(u.Email, f.Email) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (v *view) InsertUser(_ context.Context, u *models.User) error {
	for _, o := range v.st.users {
		if o.Username == u.Username {
			return fmt.Errorf("username %q: %w", u.Username, schedule.ErrConflict)
		}
		if strings.EqualFold(o.Email, u.Email) {
			return fmt.Errorf("email %q: %w", u.Email, schedule.ErrConflict)
		}
	}
	u.ID = v.id()
	v.st.users[u.ID] = *u
	return nil
}

func (v *view) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	u, ok := v.st.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, schedule.ErrNotFound)
	}
	u.PasswordHash = hash
	v.st.users[userID] = u
	return nil
}

// LockUser only checks existence; WithTx already runs one transaction at a time.
func (v *view) LockUser(_ context.Context, id int64) error {
	if _, ok := v.st.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, schedule.ErrNotFound)
	}
	return nil
}

func (v *view) DeleteUser(_ context.Context, id int64) error {
	if _, ok := v.st.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, schedule.ErrNotFound)
	}
	delete(v.st.users, id)
	return nil
}

func matchEntry(e models.TimetableEntry, f schedule.EntryFilter) bool {
	if len(f.TeacherIDs) > 0 && !slices.Contains(f.TeacherIDs, e.TeacherID) {
		return false
	}
	if f.Day != "" && e.Day != f.Day {
		return false
	}
	if f.Session != 0 && e.Session != f.Session {
		return false
	}
	if f.TemplateOnly && !e.IsTemplate() {
		return false
	}
	if f.Date != nil && (e.Date == nil || !sameDay(*e.Date, *f.Date)) {
		return false
	}
	return true
}

func (v *view) ListEntries(_ context.Context, f schedule.EntryFilter) ([]models.TimetableEntry, error) {
	var out []models.TimetableEntry
	for _, e := range sortedValues(v.st.entries, func(e models.TimetableEntry) int64 { return e.ID }) {
		if matchEntry(e, f) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (v *view) InsertEntries(_ context.Context, entries []models.TimetableEntry) error {
	for _, e := range entries {
		for _, o := range v.st.entries {
			if o.TeacherID != e.TeacherID || o.Session != e.Session {
				continue
			}
			if e.IsTemplate() && o.IsTemplate() && o.Day == e.Day {
				return fmt.Errorf("template %d/%s/%d already exists", e.TeacherID, e.Day, e.Session)
			}
			if !e.IsTemplate() && !o.IsTemplate() && sameDay(*o.Date, *e.Date) {
				return fmt.Errorf("override %d/%s/%d already exists", e.TeacherID, e.Date.Format(models.DateLayout), e.Session)
			}
		}
		e.ID = v.id()
		v.st.entries[e.ID] = e
	}
	return nil
}

func (v *view) UpsertDateEntry(_ context.Context, e models.TimetableEntry) error {
	if e.Date == nil {
		return fmt.Errorf("override without date: %w", schedule.ErrInvalidParameter)
	}
	for id, o := range v.st.entries {
		if o.TeacherID == e.TeacherID && o.Session == e.Session && o.Date != nil && sameDay(*o.Date, *e.Date) {
			o.Status = e.Status
			v.st.entries[id] = o
			return nil
		}
	}
	e.ID = v.id()
	v.st.entries[e.ID] = e
	return nil
}

func (v *view) DeleteEntries(_ context.Context, f schedule.EntryFilter) (int64, error) {
	var n int64
	for id, e := range v.st.entries {
		if matchEntry(e, f) {
			delete(v.st.entries, id)
			n++
		}
	}
	return n, nil
}

func (v *view) matchLeave(l models.LeaveRequest, f schedule.LeaveFilter) bool {
	if len(f.TeacherIDs) > 0 && !slices.Contains(f.TeacherIDs, l.TeacherID) {
		return false
	}
	if f.SubstituteID != nil && (l.SubstituteID == nil || *l.SubstituteID != *f.SubstituteID) {
		return false
	}
	if f.Date != nil && !sameDay(l.Date, *f.Date) {
		return false
	}
	if f.Session != 0 && l.Session != f.Session {
		return false
	}
	if f.ReminderSent != nil && l.ReminderSent != *f.ReminderSent {
		return false
	}
	if f.Department != "" {
		u, ok := v.st.users[l.TeacherID]
		if !ok || u.Department != f.Department {
			return false
		}
	}
	return true
}

func (v *view) ListLeaves(_ context.Context, f schedule.LeaveFilter) ([]models.LeaveRequest, error) {
	var out []models.LeaveRequest
	for _, l := range sortedValues(v.st.leaves, func(l models.LeaveRequest) int64 { return l.ID }) {
		if v.matchLeave(l, f) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (v *view) InsertLeave(_ context.Context, l *models.LeaveRequest) error {
	for _, o := range v.st.leaves {
		if o.TeacherID == l.TeacherID && o.Session == l.Session && sameDay(o.Date, l.Date) {
			return schedule.ErrDuplicateRequest
		}
	}
	l.ID = v.id()
	v.st.leaves[l.ID] = *l
	return nil
}

func (v *view) DeleteLeaves(_ context.Context, f schedule.LeaveFilter) (int64, error) {
	var n int64
	for id, l := range v.st.leaves {
		if v.matchLeave(l, f) {
			delete(v.st.leaves, id)
			n++
		}
	}
	return n, nil
}

func (v *view) MarkLeavesReminded(_ context.Context, ids []int64) error {
	for _, id := range ids {
		if l, ok := v.st.leaves[id]; ok {
			l.ReminderSent = true
			v.st.leaves[id] = l
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Format(models.DateLayout) == b.Format(models.DateLayout)
}

func sortedValues[T any](m map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
