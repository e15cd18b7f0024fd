package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskflow/internal/models"
)

// TelegramLink is a one-time code a user sends to the bot to bind a chat.
type TelegramLink struct {
	ID        int64
	UserID    int64
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

type TelegramLinkRepository interface {
	Create(ctx context.Context, userID int64, code string, expiresAt time.Time) (*TelegramLink, error)
	// Consume marks an unused, unexpired code as used and returns it.
	Consume(ctx context.Context, code string, now time.Time) (*TelegramLink, error)
}

type telegramLinkRepository struct{ db DBTX }

func NewTelegramLinkRepository(db DBTX) TelegramLinkRepository {
	return &telegramLinkRepository{db: db}
}

func (r *telegramLinkRepository) Create(ctx context.Context, userID int64, code string, expiresAt time.Time) (*TelegramLink, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO telegram_links (user_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, code, expires_at, used, created_at
	`, userID, code, expiresAt)

	var l TelegramLink
	if err := row.Scan(&l.ID, &l.UserID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt); err != nil {
		return nil, translate("create telegram link", err)
	}
	return &l, nil
}

func (r *telegramLinkRepository) Consume(ctx context.Context, code string, now time.Time) (*TelegramLink, error) {
	var l TelegramLink
	err := r.db.QueryRowContext(ctx, `
		UPDATE telegram_links SET used = TRUE
		WHERE code = $1 AND used = FALSE AND expires_at > $2
		RETURNING id, user_id, code, expires_at, used, created_at
	`, code, now).Scan(&l.ID, &l.UserID, &l.Code, &l.ExpiresAt, &l.Used, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundError("link code")
		}
		return nil, models.StorageError("consume telegram link", err)
	}
	return &l, nil
}
