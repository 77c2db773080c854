package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

const userColumns = `id, username, email, password_hash, role, department, telegram_chat_id`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var (
		u    models.User
		chat sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Department, &chat); err != nil {
		return models.User{}, err
	}
	if chat.Valid {
		u.TelegramChatID = &chat.Int64
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	u, err := scanUser(s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %d: %w", id, schedule.ErrNotFound)
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, f schedule.UserFilter) ([]models.User, error) {
	var w where
	if len(f.IDs) > 0 {
		w.add("id = ANY($%d)", pq.Array(f.IDs))
	}
	if f.Department != "" {
		w.add("department = $%d", f.Department)
	}
	if len(f.Roles) > 0 {
		roles := make([]string, len(f.Roles))
		for i, r := range f.Roles {
			roles[i] = string(r)
		}
		w.add("role = ANY($%d)", pq.Array(roles))
	}
	if f.Username != "" {
		w.add("username = $%d", f.Username)
	}
	if f.Email != "" {
		w.add("lower(email) = lower($%d)", f.Email)
	}

	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, department, telegram_chat_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.Department, u.TelegramChatID,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", u.Username, schedule.ErrConflict)
	}
	return err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := s.exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", userID, schedule.ErrNotFound)
	}
	return nil
}

// LockUser takes FOR NO KEY UPDATE so leave inserts referencing the user
// (which take KEY SHARE) are not blocked.
func (s *Store) LockUser(ctx context.Context, id int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var got int64
	err := s.q.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR NO KEY UPDATE`, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d: %w", id, schedule.ErrNotFound)
	}
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, schedule.ErrNotFound)
	}
	return nil
}
