package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskflow/internal/authz"
	"taskflow/internal/lifecycle"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

const minPasswordLen = 6

type CreateUserInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	MobileNo string `json:"mobileNo"`
	Role     string `json:"role" binding:"required"`
}

// UpdateUserInput carries PATCH semantics: nil means unchanged.
type UpdateUserInput struct {
	Email          *string            `json:"email"`
	MobileNo       *string            `json:"mobileNo"`
	Password       *string            `json:"password"`
	Role           *string            `json:"role"`
	Status         *models.UserStatus `json:"status"`
	NotifyTelegram *bool              `json:"notifyTelegram"`
}

type UserService interface {
	Create(ctx context.Context, in CreateUserInput) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Update(ctx context.Context, id int64, in UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, actorID, id int64) error
	// Authenticate checks credentials and refuses inactive accounts.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// EnsureAdmin creates the admin account when no user with that name exists.
	EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, bool, error)
}

type userService struct {
	store  repositories.Store
	auth   AuthService
	clock  Clock
	logger *zap.Logger
}

func NewUserService(store repositories.Store, auth AuthService, clock Clock, logger *zap.Logger) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &userService{store: store, auth: auth, clock: clock, logger: logger}
}

var ErrInvalidCredentials = models.ValidationError("credentials", "invalid username or password")

func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return "", models.ValidationError("email", "email is not valid")
	}
	return strings.ToLower(email), nil
}

func validatePassword(pw string) error {
	if len(strings.TrimSpace(pw)) < minPasswordLen {
		return models.ValidationError("password", "password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, models.ValidationError("username", "username is required")
	}
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !authz.IsKnown(in.Role) {
		return nil, models.ValidationError("role", "invalid role selected")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.StorageError("hash password", err)
	}

	now := s.clock()
	user := &models.User{
		Username:       username,
		Email:          email,
		MobileNo:       strings.TrimSpace(in.MobileNo),
		PasswordHash:   hash,
		Role:           in.Role,
		Status:         models.UserActive,
		NotifyTelegram: true,
		AssignedTasks:  []int64{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("[user][create][ok]", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.store.Users().FindByID(ctx, id)
}

func (s *userService) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Users().List(ctx, limit, offset)
}

func (s *userService) Update(ctx context.Context, id int64, in UpdateUserInput) (*models.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		if user.Email, err = validateEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.MobileNo != nil {
		user.MobileNo = strings.TrimSpace(*in.MobileNo)
	}
	if in.Role != nil {
		if !authz.IsKnown(*in.Role) {
			return nil, models.ValidationError("role", "invalid role selected")
		}
		user.Role = *in.Role
	}
	if in.Status != nil {
		if *in.Status != models.UserActive && *in.Status != models.UserInactive {
			return nil, models.ValidationError("status", "invalid status %q", *in.Status)
		}
		user.Status = *in.Status
	}
	if in.NotifyTelegram != nil {
		user.NotifyTelegram = *in.NotifyTelegram
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		if user.PasswordHash, err = s.auth.HashPassword(*in.Password); err != nil {
			return nil, models.StorageError("hash password", err)
		}
	}
	user.UpdatedAt = s.clock()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("[user][update][ok]", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return models.ConflictError("you cannot delete your own account")
	}
	released := 0
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		if _, err := tx.Users().FindByID(ctx, id); err != nil {
			return err
		}
		assigned, err := tx.Tasks().ListByAssignee(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock()
		for _, a := range assigned {
			task, err := tx.Tasks().FindByIDForUpdate(ctx, a.ID)
			if err != nil {
				return err
			}
			if !lifecycle.Unassign(task, id, actorID, now) {
				continue
			}
			task.UpdatedAt = now
			if err := tx.Tasks().Update(ctx, task); err != nil {
				return err
			}
			released++
		}
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		s.logger.Warn("[user][delete][err]", zap.Int64("user_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("[user][delete][ok]", zap.Int64("user_id", id), zap.Int64("actor_id", actorID), zap.Int("unassigned", released))
	return nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.Users().FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.IsKind(err, models.KindNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, models.ForbiddenError("account is inactive")
	}
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, bool, error) {
	existing, err := s.store.Users().FindByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		return existing, false, nil
	}
	if !models.IsKind(err, models.KindNotFound) {
		return nil, false, err
	}
	if strings.TrimSpace(email) == "" {
		email = strings.TrimSpace(username) + "@localhost.localdomain"
	}
	user, err := s.Create(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     authz.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
