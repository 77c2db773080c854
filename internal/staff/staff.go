// Package staff manages department accounts: HOD registration and the
// teachers an HOD administers.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/observability"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

// Account is the input for a new user.
type Account struct {
	Username       string `json:"username" validate:"required,min=3,max=64"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	Department     string `json:"department" validate:"omitempty,max=128"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}

type Service struct {
	store    schedule.TxStore
	validate *validator.Validate
	log      *zap.Logger
	cost     int
}

func NewService(store schedule.TxStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, validate: validator.New(), log: log, cost: bcrypt.DefaultCost}
}

// RegisterHOD creates the head of department. The department is required.
func (s *Service) RegisterHOD(ctx context.Context, in Account) (models.User, error) {
	ctx = ctxutil.WithOp(ctx, "register_hod")
	if strings.TrimSpace(in.Department) == "" {
		return models.User{}, fmt.Errorf("%w: department is required", schedule.ErrInvalidParameter)
	}
	u, err := s.create(ctx, in, models.HOD, in.Department)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("hod registered", zap.Int64("user_id", u.ID), zap.String("department", u.Department))
	return u, nil
}

// AddTeacher creates a Teacher in the actor's department; in.Department is ignored.
func (s *Service) AddTeacher(ctx context.Context, actorID int64, in Account) (models.User, error) {
	ctx = ctxutil.WithOp(ctx, "add_teacher")
	actor, err := s.hod(ctx, actorID)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.create(ctx, in, models.Teacher, actor.Department)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("teacher added", zap.Int64("actor_id", actorID), zap.Int64("user_id", u.ID))
	return u, nil
}

// RemoveTeacher deletes the teacher together with their timetable rows and
// every leave they requested or cover, in one transaction.
func (s *Service) RemoveTeacher(ctx context.Context, actorID, teacherID int64) error {
	ctx = ctxutil.WithOp(ctx, "remove_teacher")
	err := s.store.WithTx(ctx, func(tx schedule.Store) error {
		if err := s.authorize(ctx, tx, actorID, teacherID); err != nil {
			return err
		}
		ids := []int64{teacherID}
		if _, err := tx.DeleteEntries(ctx, schedule.EntryFilter{TeacherIDs: ids}); err != nil {
			return err
		}
		if _, err := tx.DeleteLeaves(ctx, schedule.LeaveFilter{TeacherIDs: ids}); err != nil {
			return err
		}
		if _, err := tx.DeleteLeaves(ctx, schedule.LeaveFilter{SubstituteID: &teacherID}); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, teacherID)
	})
	if err != nil {
		return s.fail("remove teacher", err)
	}
	s.log.Info("teacher removed", zap.Int64("actor_id", actorID), zap.Int64("user_id", teacherID))
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, actorID, teacherID int64, password string) error {
	ctx = ctxutil.WithOp(ctx, "reset_password")
	if err := s.validate.Var(password, "required,min=8,max=72"); err != nil {
		return fmt.Errorf("%w: password: %v", schedule.ErrInvalidParameter, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.store.WithTx(ctx, func(tx schedule.Store) error {
		if err := s.authorize(ctx, tx, actorID, teacherID); err != nil {
			return err
		}
		return tx.UpdatePasswordHash(ctx, teacherID, string(hash))
	})
	if err != nil {
		return s.fail("reset password", err)
	}
	return nil
}

// ListTeachers returns the Teachers of the actor's department ordered by id.
func (s *Service) ListTeachers(ctx context.Context, actorID int64) ([]models.User, error) {
	actor, err := s.hod(ctx, actorID)
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, schedule.UserFilter{
		Department: actor.Department,
		Roles:      []models.Role{models.Teacher},
	})
	if err != nil {
		return nil, s.fail("list teachers", err)
	}
	return users, nil
}

// CheckPassword reports whether password matches the stored hash of u.
func CheckPassword(u models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *Service) create(ctx context.Context, in Account, role models.Role, department string) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", schedule.ErrInvalidParameter, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   string(hash),
		Role:           role,
		Department:     department,
		TelegramChatID: in.TelegramChatID,
	}
	err = s.store.WithTx(ctx, func(tx schedule.Store) error {
		taken, err := tx.ListUsers(ctx, schedule.UserFilter{Username: u.Username})
		if err != nil {
			return err
		}
		if len(taken) == 0 {
			taken, err = tx.ListUsers(ctx, schedule.UserFilter{Email: u.Email})
			if err != nil {
				return err
			}
		}
		if len(taken) > 0 {
			return fmt.Errorf("%w: username or email already registered", schedule.ErrConflict)
		}
		return tx.InsertUser(ctx, &u)
	})
	if err != nil {
		return models.User{}, s.fail("create user", err)
	}
	return u, nil
}

func (s *Service) hod(ctx context.Context, actorID int64) (models.User, error) {
	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return models.User{}, s.fail("load actor", err)
	}
	if actor.Role != models.HOD {
		return models.User{}, fmt.Errorf("%w: only HODs can manage teachers", schedule.ErrForbidden)
	}
	return actor, nil
}

func (s *Service) authorize(ctx context.Context, tx schedule.Store, actorID, teacherID int64) error {
	actor, err := tx.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	target, err := tx.GetUser(ctx, teacherID)
	if err != nil {
		return err
	}
	return schedule.CanManageTeacher(actor, target)
}

func (s *Service) fail(op string, err error) error {
	if schedule.Outcome(err) != "store_failure" {
		return err
	}
	if !errors.Is(err, schedule.ErrStoreFailure) {
		err = &schedule.StoreError{Op: op, Err: err}
	}
	s.log.Error(op+" failed", zap.Error(err))
	observability.CaptureOp(op, err)
	return err
}
