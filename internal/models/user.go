package models

type Role string

const (
	HOD     Role = "HOD"
	Teacher Role = "Teacher"
)

func (r Role) Valid() bool {
	return r == HOD || r == Teacher
}

type User struct {
	ID             int64  `db:"id"`
	Username       string `db:"username"`
	Email          string `db:"email"`
	PasswordHash   string `db:"password_hash"`
	Role           Role   `db:"role"`
	Department     string `db:"department"`
	TelegramChatID *int64 `db:"telegram_chat_id"`
}
