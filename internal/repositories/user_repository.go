package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"taskflow/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int, error)

	// ListActiveByRole returns the role pool used for notifications.
	ListActiveByRole(ctx context.Context, role string) ([]models.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.User, error)

	// back-references (user_tasks)
	AddAssignedTask(ctx context.Context, userID, taskID int64) error
	RemoveAssignedTask(ctx context.Context, userID, taskID int64) error

	// Telegram helpers
	UpdateTelegramLink(ctx context.Context, userID, chatID int64, enable bool) error
	FindByChatID(ctx context.Context, chatID int64) (*models.User, error)
}

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `u.id, u.username, u.email, u.mobile_no, u.password_hash, u.role, u.status,
       COALESCE(u.telegram_chat_id, 0), u.notify_telegram,
       COALESCE((SELECT array_agg(ut.task_id ORDER BY ut.created_at) FROM user_tasks ut WHERE ut.user_id = u.id), '{}'),
       u.created_at, u.updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.MobileNo, &u.PasswordHash, &u.Role, &u.Status,
		&u.TelegramChatID, &u.NotifyTelegram, pq.Array(&u.AssignedTasks),
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if u.AssignedTasks == nil {
		u.AssignedTasks = []int64{}
	}
	return u, nil
}

func (r *userRepository) queryUsers(ctx context.Context, op, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StorageError(op, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, models.StorageError(op, err)
		}
		users = append(users, *u)
	}
	return users, models.StorageError(op, rows.Err())
}

func (r *userRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundError("user")
		}
		return nil, models.StorageError("find user", err)
	}
	return u, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (
			username, email, mobile_no, password_hash, role, status,
			telegram_chat_id, notify_telegram, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, q,
		user.Username, user.Email, user.MobileNo, user.PasswordHash, user.Role, user.Status,
		nullableID(user.TelegramChatID), user.NotifyTelegram, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return translate("create user", err)
	}
	if user.AssignedTasks == nil {
		user.AssignedTasks = []int64{}
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "u.id = $1", id)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "u.username = $1", username)
}

func (r *userRepository) FindByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return r.findOne(ctx, "u.telegram_chat_id = $1", chatID)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	const q = `
		UPDATE users SET
			username=$1, email=$2, mobile_no=$3, password_hash=$4, role=$5, status=$6,
			telegram_chat_id=$7, notify_telegram=$8, updated_at=$9
		WHERE id=$10`
	res, err := r.db.ExecContext(ctx, q,
		user.Username, user.Email, user.MobileNo, user.PasswordHash, user.Role, user.Status,
		nullableID(user.TelegramChatID), user.NotifyTelegram, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return translate("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundError("user")
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return models.StorageError("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundError("user")
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u ORDER BY u.created_at DESC, u.id DESC LIMIT $1 OFFSET $2`
	return r.queryUsers(ctx, "list users", q, limit, offset)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, models.StorageError("count users", err)
}

func (r *userRepository) ListActiveByRole(ctx context.Context, role string) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.role = $1 AND u.status = 'active' ORDER BY u.id`
	return r.queryUsers(ctx, "list users by role", q, role)
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.id = ANY($1) ORDER BY u.id`
	return r.queryUsers(ctx, "list users by id", q, pq.Array(ids))
}

func (r *userRepository) AddAssignedTask(ctx context.Context, userID, taskID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_tasks (user_id, task_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, taskID)
	return translate("add assigned task", err)
}

func (r *userRepository) RemoveAssignedTask(ctx context.Context, userID, taskID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_tasks WHERE user_id=$1 AND task_id=$2`, userID, taskID)
	return models.StorageError("remove assigned task", err)
}

func (r *userRepository) UpdateTelegramLink(ctx context.Context, userID, chatID int64, enable bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET telegram_chat_id=$1, notify_telegram=$2, updated_at=NOW() WHERE id=$3`,
		nullableID(chatID), enable, userID)
	if err != nil {
		return translate("update telegram link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundError("user")
	}
	return nil
}
