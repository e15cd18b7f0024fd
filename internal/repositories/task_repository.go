package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"taskflow/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	// UpdateIfAssignment writes task only while the stored assignment status
	// still equals expected; otherwise it returns ErrStaleWrite.
	UpdateIfAssignment(ctx context.Context, task *models.Task, expected models.AssignmentStatus) error
	Delete(ctx context.Context, id int64) error

	ListPendingCandidates(ctx context.Context, user *models.User) ([]models.Task, error)
	ListByAssignee(ctx context.Context, userID int64) ([]models.Task, error)
	ListAcceptedBy(ctx context.Context, userID int64) ([]models.Task, error)

	ListDueForReminder(ctx context.Context, now time.Time, limit int) ([]models.Task, error)
	SetNotified(ctx context.Context, id int64, lastNotified time.Time, next *time.Time) error

	Stats(ctx context.Context, assigneeID *int64) (models.TaskStats, error)
	StatsByAssignee(ctx context.Context) ([]models.AssigneeStats, error)
}

type taskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `t.id, t.title, t.description, t.priority, COALESCE(t.assigned_role, ''), t.assigned_to,
       t.status, t.assignment_status, t.fields, t.notification, t.last_notified, t.next_notification,
       t.history, COALESCE(t.created_by, 0), t.created_at, t.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t                             models.Task
		fields, notification, history []byte
	)
	if err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.AssignedRole, pq.Array(&t.AssignedTo),
		&t.Status, &t.AssignmentStatus, &fields, &notification, &t.LastNotified, &t.NextNotification,
		&history, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if t.AssignedTo == nil {
		t.AssignedTo = []int64{}
	}
	if err := unmarshalColumn(fields, &t.Fields); err != nil {
		return nil, fmt.Errorf("task %d fields: %w", t.ID, err)
	}
	if err := unmarshalColumn(notification, &t.NotificationFrequency); err != nil {
		return nil, fmt.Errorf("task %d notification: %w", t.ID, err)
	}
	if err := unmarshalColumn(history, &t.History); err != nil {
		return nil, fmt.Errorf("task %d history: %w", t.ID, err)
	}
	return &t, nil
}

func unmarshalColumn(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (r *taskRepository) queryTasks(ctx context.Context, op, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StorageError(op, err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, models.StorageError(op, err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, models.StorageError(op, rows.Err())
}

type taskDocuments struct {
	fields, notification, history []byte
}

func encodeDocuments(task *models.Task) (taskDocuments, error) {
	var (
		d   taskDocuments
		err error
	)
	fields := task.Fields
	if fields == nil {
		fields = []models.Field{}
	}
	if d.fields, err = json.Marshal(fields); err != nil {
		return d, err
	}
	if d.notification, err = json.Marshal(task.NotificationFrequency); err != nil {
		return d, err
	}
	history := task.History
	if history == nil {
		history = []models.HistoryEntry{}
	}
	d.history, err = json.Marshal(history)
	return d, err
}

func nullableRole(role string) any {
	if role == "" {
		return nil
	}
	return role
}

func assignedIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	docs, err := encodeDocuments(task)
	if err != nil {
		return models.StorageError("encode task", err)
	}
	const q = `
		INSERT INTO tasks (
			title, description, priority, assigned_role, assigned_to, status, assignment_status,
			fields, notification, last_notified, next_notification, history, created_by, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`
	err = r.db.QueryRowContext(ctx, q,
		task.Title, task.Description, task.Priority, nullableRole(task.AssignedRole), pq.Array(assignedIDs(task.AssignedTo)),
		task.Status, task.AssignmentStatus, docs.fields, docs.notification, task.LastNotified, task.NextNotification,
		docs.history, nullableID(task.CreatedBy), task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	return translate("create task", err)
}

func (r *taskRepository) findOne(ctx context.Context, query string, id int64) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NotFoundError("task")
		}
		return nil, models.StorageError("find task", err)
	}
	return t, nil
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	return r.findOne(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id)
}

func (r *taskRepository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Task, error) {
	return r.findOne(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1 FOR UPDATE`, id)
}

func (r *taskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks t`

	conditions := []string{}
	args := []any{}
	argID := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("t.priority = $%d", argID))
		args = append(args, *filter.Priority)
		argID++
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("t.assigned_role = $%d", argID))
		args = append(args, *filter.Role)
		argID++
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(t.assigned_to)", argID))
		args = append(args, *filter.AssigneeID)
		argID++
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("(t.title ILIKE $%d OR t.description ILIKE $%d)", argID, argID))
		args = append(args, "%"+q+"%")
		argID++
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	baseQuery += " ORDER BY t.created_at DESC, t.id DESC"

	if filter.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		baseQuery += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	return r.queryTasks(ctx, "list tasks", baseQuery, args...)
}

const updateTaskSQL = `
		UPDATE tasks SET
			title=$1, description=$2, priority=$3, assigned_role=$4, assigned_to=$5,
			status=$6, assignment_status=$7, fields=$8, notification=$9,
			last_notified=$10, next_notification=$11, history=$12, updated_at=$13
		WHERE id=$14`

func (r *taskRepository) update(ctx context.Context, task *models.Task, extra string, extraArgs ...any) (int64, error) {
	docs, err := encodeDocuments(task)
	if err != nil {
		return 0, models.StorageError("encode task", err)
	}
	args := []any{
		task.Title, task.Description, task.Priority, nullableRole(task.AssignedRole), pq.Array(assignedIDs(task.AssignedTo)),
		task.Status, task.AssignmentStatus, docs.fields, docs.notification,
		task.LastNotified, task.NextNotification, docs.history, task.UpdatedAt, task.ID,
	}
	res, err := r.db.ExecContext(ctx, updateTaskSQL+extra, append(args, extraArgs...)...)
	if err != nil {
		return 0, translate("update task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.StorageError("update task", err)
	}
	return n, nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	n, err := r.update(ctx, task, "")
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NotFoundError("task")
	}
	return nil
}

func (r *taskRepository) UpdateIfAssignment(ctx context.Context, task *models.Task, expected models.AssignmentStatus) error {
	n, err := r.update(ctx, task, " AND assignment_status=$15", expected)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return models.StorageError("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NotFoundError("task")
	}
	return nil
}

func (r *taskRepository) ListPendingCandidates(ctx context.Context, user *models.User) ([]models.Task, error) {
	q := `
SELECT ` + taskColumns + `
FROM tasks t
WHERE t.assignment_status = 'pending'
  AND NOT EXISTS (SELECT 1 FROM user_tasks ut WHERE ut.task_id = t.id AND ut.user_id = $1)
  AND ($1 = ANY(t.assigned_to) OR (t.assigned_role = $2 AND cardinality(t.assigned_to) = 0))
ORDER BY t.created_at DESC, t.id DESC`
	return r.queryTasks(ctx, "list pending tasks", q, user.ID, user.Role)
}

func (r *taskRepository) ListByAssignee(ctx context.Context, userID int64) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks t WHERE $1 = ANY(t.assigned_to) ORDER BY t.created_at DESC, t.id DESC`
	return r.queryTasks(ctx, "list tasks by assignee", q, userID)
}

func (r *taskRepository) ListAcceptedBy(ctx context.Context, userID int64) ([]models.Task, error) {
	q := `
SELECT ` + taskColumns + `
FROM tasks t
JOIN user_tasks ut ON ut.task_id = t.id
WHERE ut.user_id = $1
ORDER BY ut.created_at DESC, t.id DESC`
	return r.queryTasks(ctx, "list accepted tasks", q, userID)
}

func (r *taskRepository) ListDueForReminder(ctx context.Context, now time.Time, limit int) ([]models.Task, error) {
	q := `
SELECT ` + taskColumns + `
FROM tasks t
WHERE t.next_notification IS NOT NULL
  AND t.next_notification <= $1
  AND (t.last_notified IS NULL OR t.last_notified < t.next_notification)
  AND t.status <> 'completed'
ORDER BY t.next_notification ASC
LIMIT $2`
	return r.queryTasks(ctx, "list due reminders", q, now, limit)
}

func (r *taskRepository) SetNotified(ctx context.Context, id int64, lastNotified time.Time, next *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET last_notified=$1, next_notification=$2, updated_at=$1 WHERE id=$3`,
		lastNotified, next, id)
	return models.StorageError("mark task notified", err)
}

const statsColumns = `COUNT(t.id),
       COUNT(t.id) FILTER (WHERE t.status = 'pending'),
       COUNT(t.id) FILTER (WHERE t.status = 'in-progress'),
       COUNT(t.id) FILTER (WHERE t.status = 'completed')`

func (r *taskRepository) Stats(ctx context.Context, assigneeID *int64) (models.TaskStats, error) {
	q := `SELECT ` + statsColumns + ` FROM tasks t`
	args := []any{}
	if assigneeID != nil {
		q += ` WHERE $1 = ANY(t.assigned_to)`
		args = append(args, *assigneeID)
	}
	var s models.TaskStats
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&s.Total, &s.Pending, &s.InProgress, &s.Completed)
	return s, models.StorageError("task stats", err)
}

func (r *taskRepository) StatsByAssignee(ctx context.Context) ([]models.AssigneeStats, error) {
	q := `
SELECT u.id, u.username, ` + statsColumns + `
FROM users u
LEFT JOIN tasks t ON u.id = ANY(t.assigned_to)
WHERE u.role <> 'admin'
GROUP BY u.id, u.username
ORDER BY u.username`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, models.StorageError("assignee stats", err)
	}
	defer rows.Close()

	out := []models.AssigneeStats{}
	for rows.Next() {
		var s models.AssigneeStats
		if err := rows.Scan(&s.UserID, &s.Username, &s.Total, &s.Pending, &s.InProgress, &s.Completed); err != nil {
			return nil, models.StorageError("assignee stats", err)
		}
		out = append(out, s)
	}
	return out, models.StorageError("assignee stats", rows.Err())
}
