package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

func entryWhere(f schedule.EntryFilter) *where {
	w := &where{}
	if len(f.TeacherIDs) > 0 {
		w.add("teacher_id = ANY($%d)", pq.Array(f.TeacherIDs))
	}
	if f.Day != "" {
		w.add("day = $%d", string(f.Day))
	}
	if f.Session != 0 {
		w.add("session = $%d", f.Session)
	}
	if f.TemplateOnly {
		w.raw("date IS NULL")
	}
	if f.Date != nil {
		w.add("date = $%d", models.DateOnly(*f.Date))
	}
	return w
}

func (s *Store) ListEntries(ctx context.Context, f schedule.EntryFilter) ([]models.TimetableEntry, error) {
	w := entryWhere(f)
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, teacher_id, day, date, session, status, substitute_id
		FROM timetable_entries`+w.String()+`
		ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TimetableEntry
	for rows.Next() {
		var (
			e    models.TimetableEntry
			date sql.NullTime
			sub  sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.TeacherID, &e.Day, &date, &e.Session, &e.Status, &sub); err != nil {
			return nil, err
		}
		if date.Valid {
			d := models.DateOnly(date.Time)
			e.Date = &d
		}
		if sub.Valid {
			e.SubstituteID = &sub.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertEntries writes the rows with a single prepared statement; the caller
// owns the transaction.
func (s *Store) InsertEntries(ctx context.Context, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	stmt, err := s.q.PrepareContext(ctx, `
		INSERT INTO timetable_entries (teacher_id, day, date, session, status, substitute_id)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.TeacherID, string(e.Day), nullDate(e.Date), e.Session, string(e.Status), e.SubstituteID); err != nil {
			return fmt.Errorf("insert %s/%d: %w", e.Day, e.Session, err)
		}
	}
	return nil
}

func (s *Store) UpsertDateEntry(ctx context.Context, e models.TimetableEntry) error {
	if e.Date == nil {
		return fmt.Errorf("override without date: %w", schedule.ErrInvalidParameter)
	}
	_, err := s.exec(ctx, `
		INSERT INTO timetable_entries (teacher_id, day, date, session, status, substitute_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (teacher_id, date, session) WHERE date IS NOT NULL
		DO UPDATE SET status = EXCLUDED.status`,
		e.TeacherID, string(e.Day), models.DateOnly(*e.Date), e.Session, string(e.Status), e.SubstituteID)
	return err
}

func (s *Store) DeleteEntries(ctx context.Context, f schedule.EntryFilter) (int64, error) {
	w := entryWhere(f)
	res, err := s.exec(ctx, `DELETE FROM timetable_entries`+w.String(), w.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullDate(d *time.Time) any {
	if d == nil {
		return nil
	}
	return models.DateOnly(*d)
}
