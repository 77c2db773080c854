package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

func leaveWhere(f schedule.LeaveFilter) *where {
	w := &where{}
	if len(f.TeacherIDs) > 0 {
		w.add("teacher_id = ANY($%d)", pq.Array(f.TeacherIDs))
	}
	if f.SubstituteID != nil {
		w.add("substitute_id = $%d", *f.SubstituteID)
	}
	if f.Date != nil {
		w.add("date = $%d", models.DateOnly(*f.Date))
	}
	if f.Session != 0 {
		w.add("session = $%d", f.Session)
	}
	if f.Department != "" {
		w.add("teacher_id IN (SELECT id FROM users WHERE department = $%d)", f.Department)
	}
	if f.ReminderSent != nil {
		w.add("reminder_sent = $%d", *f.ReminderSent)
	}
	return w
}

func (s *Store) ListLeaves(ctx context.Context, f schedule.LeaveFilter) ([]models.LeaveRequest, error) {
	w := leaveWhere(f)
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, teacher_id, substitute_id, date, session, reminder_sent, created_at
		FROM leave_requests`+w.String()+`
		ORDER BY date, session, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeaveRequest
	for rows.Next() {
		var (
			l   models.LeaveRequest
			sub sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.TeacherID, &sub, &l.Date, &l.Session, &l.ReminderSent, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Date = models.DateOnly(l.Date)
		if sub.Valid {
			l.SubstituteID = &sub.Int64
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) InsertLeave(ctx context.Context, l *models.LeaveRequest) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO leave_requests (teacher_id, substitute_id, date, session)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		l.TeacherID, l.SubstituteID, models.DateOnly(l.Date), l.Session,
	).Scan(&l.ID, &l.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("leave %d/%s/%d: %w",
			l.TeacherID, l.Date.Format(models.DateLayout), l.Session, schedule.ErrDuplicateRequest)
	}
	return err
}

func (s *Store) DeleteLeaves(ctx context.Context, f schedule.LeaveFilter) (int64, error) {
	w := leaveWhere(f)
	res, err := s.exec(ctx, `DELETE FROM leave_requests`+w.String(), w.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) MarkLeavesReminded(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.exec(ctx, `UPDATE leave_requests SET reminder_sent = true WHERE id = ANY($1)`, pq.Array(ids))
	return err
}
