package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"taskflow/internal/models"
)

// ErrStaleWrite is returned by conditional updates that matched no row.
var ErrStaleWrite = errors.New("stale write: row changed since it was read")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories over one connection and opens units of work.
type Store interface {
	Tasks() TaskRepository
	Users() UserRepository
	TelegramLinks() TelegramLinkRepository
	// WithTx runs fn against repositories bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type sqlStore struct {
	db *sql.DB
	q  DBTX
}

func NewStore(db *sql.DB) Store {
	return &sqlStore{db: db, q: db}
}

func (s *sqlStore) Tasks() TaskRepository { return &taskRepository{db: s.q} }
func (s *sqlStore) Users() UserRepository { return &userRepository{db: s.q} }
func (s *sqlStore) TelegramLinks() TelegramLinkRepository {
	return &telegramLinkRepository{db: s.q}
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StorageError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlStore{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return models.StorageError("commit transaction", err)
	}
	return nil
}

const uniqueViolation = "23505"

// translate maps driver errors onto the typed error kinds.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.ConflictError(fmt.Sprintf("%s already exists", constraintSubject(pqErr.Constraint)))
	}
	return models.StorageError(op, err)
}

func constraintSubject(constraint string) string {
	switch constraint {
	case "users_username_key":
		return "username"
	case "users_email_key":
		return "email"
	case "idx_users_telegram_chat_id":
		return "telegram chat link"
	case "user_tasks_pkey":
		return "assignment"
	}
	return "record"
}
