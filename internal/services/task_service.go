package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"taskflow/internal/authz"
	"taskflow/internal/events"
	"taskflow/internal/lifecycle"
	"taskflow/internal/models"
	"taskflow/internal/notify"
	"taskflow/internal/repositories"
)

// CreateTaskInput is the admin's task definition.
type CreateTaskInput struct {
	Title                 string                        `json:"title" binding:"required"`
	Description           string                        `json:"description" binding:"required"`
	Priority              models.TaskPriority           `json:"priority"`
	AssignType            lifecycle.AssignType          `json:"assignType" binding:"required"`
	AssignedRole          string                        `json:"assignedRole"`
	AssignedTo            []int64                       `json:"assignedTo"`
	Fields                []models.FieldInput           `json:"fields"`
	NotificationFrequency *models.NotificationFrequency `json:"notificationFrequency"`
}

// UpdateTaskInput carries PATCH semantics: nil means unchanged.
type UpdateTaskInput struct {
	Title                 *string                       `json:"title"`
	Description           *string                       `json:"description"`
	Priority              *models.TaskPriority          `json:"priority"`
	Status                *models.TaskStatus            `json:"status"`
	AssignType            *lifecycle.AssignType         `json:"assignType"`
	AssignedRole          *string                       `json:"assignedRole"`
	AssignedTo            []int64                       `json:"assignedTo"`
	Fields                *[]models.FieldInput          `json:"fields"`
	NotificationFrequency *models.NotificationFrequency `json:"notificationFrequency"`
}

// TaskService defines the admin-facing task operations and task queries.
type TaskService interface {
	Create(ctx context.Context, actorID int64, in CreateTaskInput) (*models.Task, error)
	GetByID(ctx context.Context, actorID, id int64) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, actorID, id int64, in UpdateTaskInput) (*models.Task, error)
	Delete(ctx context.Context, actorID, id int64) error

	MyTasks(ctx context.Context, userID int64) ([]models.Task, error)
	AcceptedTasks(ctx context.Context, userID int64) ([]models.Task, error)

	Stats(ctx context.Context, assigneeID *int64) (models.TaskStats, error)
	StatsByAssignee(ctx context.Context) ([]models.AssigneeStats, error)
}

type taskService struct {
	Deps
}

func NewTaskService(deps Deps) TaskService {
	deps.fill()
	return &taskService{Deps: deps}
}

func validateText(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", models.ValidationError(field, "%s is required", field)
	}
	return v, nil
}

// checkAssignees verifies every id refers to an existing non-admin user.
func checkAssignees(ctx context.Context, users repositories.UserRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(found))
	for _, u := range found {
		known[u.ID] = !authz.IsAdmin(u.Role)
	}
	for _, id := range ids {
		if !known[id] {
			return models.ValidationError("assignedTo", "assigned user %d not found", id)
		}
	}
	return nil
}

func (s *taskService) Create(ctx context.Context, actorID int64, in CreateTaskInput) (*models.Task, error) {
	now := s.Clock()

	title, err := validateText("title", in.Title)
	if err != nil {
		return nil, err
	}
	description, err := validateText("description", in.Description)
	if err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, models.ValidationError("priority", "invalid priority %q", priority)
	}

	task := &models.Task{
		Title:            title,
		Description:      description,
		Priority:         priority,
		AssignedTo:       []int64{},
		Status:           models.StatusPending,
		AssignmentStatus: models.AssignmentPending,
		History:          []models.HistoryEntry{},
		CreatedBy:        actorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := lifecycle.ApplyAssignment(task, lifecycle.Assignment{
		Type:    in.AssignType,
		Role:    in.AssignedRole,
		UserIDs: in.AssignedTo,
	}); err != nil {
		return nil, err
	}
	if err := checkAssignees(ctx, s.Store.Users(), task.AssignedTo); err != nil {
		return nil, err
	}

	fields, err := lifecycle.ValidateFields(in.Fields, true)
	if err != nil {
		return nil, err
	}
	task.Fields = fields

	var freq models.NotificationFrequency
	if in.NotificationFrequency != nil {
		freq = *in.NotificationFrequency
	}
	if err := lifecycle.Reschedule(task, freq, now); err != nil {
		return nil, err
	}
	lifecycle.Record(task, lifecycle.ActionCreated, actorID, now)

	if err := s.Store.Tasks().Create(ctx, task); err != nil {
		s.Logger.Error("[task][create][err]", zap.Error(err))
		return nil, err
	}
	s.Logger.Info("[task][create][ok]",
		zap.Int64("task_id", task.ID),
		zap.String("assigned_role", task.AssignedRole),
		zap.Int64s("assigned_to", task.AssignedTo))

	s.publish(ctx, events.TaskCreated, task.ID, actorID, "", string(task.Status))
	s.Notifier.NotifyTask(ctx, task, notify.AssignedMessage(task))
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, actorID, id int64) (*models.Task, error) {
	actor, err := loadActiveUser(ctx, s.Store.Users(), actorID)
	if err != nil {
		return nil, err
	}
	task, err := s.Store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanView(task, actor) {
		return nil, models.ForbiddenError("you do not have access to this task")
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, models.ValidationError("status", "invalid status %q", *filter.Status)
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, models.ValidationError("priority", "invalid priority %q", *filter.Priority)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, models.ValidationError("limit", "limit and offset must not be negative")
	}
	return s.Store.Tasks().FindAll(ctx, filter)
}

func (s *taskService) Update(ctx context.Context, actorID, id int64, in UpdateTaskInput) (*models.Task, error) {
	var (
		out           *models.Task
		reassigned    bool
		statusFrom    models.TaskStatus
		statusChanged bool
	)
	err := s.Store.WithTx(ctx, func(tx repositories.Store) error {
		now := s.Clock()
		task, err := tx.Tasks().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		var acceptor int64
		if task.AssignmentStatus == models.AssignmentAccepted && len(task.AssignedTo) == 1 {
			acceptor = task.AssignedTo[0]
		}

		if in.Title != nil {
			if task.Title, err = validateText("title", *in.Title); err != nil {
				return err
			}
		}
		if in.Description != nil {
			if task.Description, err = validateText("description", *in.Description); err != nil {
				return err
			}
		}
		if in.Priority != nil {
			if !in.Priority.Valid() {
				return models.ValidationError("priority", "invalid priority %q", *in.Priority)
			}
			task.Priority = *in.Priority
		}

		if a, ok := requestedAssignment(task, in); ok {
			changed, err := lifecycle.ApplyAssignment(task, a)
			if err != nil {
				return err
			}
			if changed {
				if err := checkAssignees(ctx, tx.Users(), task.AssignedTo); err != nil {
					return err
				}
				lifecycle.Record(task, lifecycle.ActionReassign, actorID, now)
				if acceptor != 0 {
					if err := tx.Users().RemoveAssignedTask(ctx, acceptor, task.ID); err != nil {
						return err
					}
				}
				reassigned = true
			}
		}

		if in.Status != nil {
			statusFrom = task.Status
			if err := lifecycle.UpdateStatus(task, *in.Status, actorID, now, s.Policy); err != nil {
				return err
			}
			statusChanged = statusFrom != task.Status
		}
		if in.Fields != nil {
			fields, err := lifecycle.ValidateFields(*in.Fields, true)
			if err != nil {
				return err
			}
			task.Fields = fields
		}
		if in.NotificationFrequency != nil {
			if err := lifecycle.Reschedule(task, *in.NotificationFrequency, now); err != nil {
				return err
			}
			task.LastNotified = nil
		}

		task.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		s.Logger.Warn("[task][update][err]", zap.Int64("task_id", id), zap.Error(err))
		return nil, err
	}
	s.Logger.Info("[task][update][ok]", zap.Int64("task_id", id), zap.Bool("reassigned", reassigned))

	s.publish(ctx, events.TaskUpdated, out.ID, actorID, "", "")
	if statusChanged {
		s.publish(ctx, events.TaskStatusChanged, out.ID, actorID, string(statusFrom), string(out.Status))
	}
	if reassigned {
		s.Notifier.NotifyTask(ctx, out, notify.AssignedMessage(out))
	}
	return out, nil
}

// requestedAssignment builds the assignment a PATCH asks for, if any. A bare
// assignedRole or assignedTo implies the assignment type.
func requestedAssignment(task *models.Task, in UpdateTaskInput) (lifecycle.Assignment, bool) {
	var typ lifecycle.AssignType
	switch {
	case in.AssignType != nil:
		typ = *in.AssignType
	case in.AssignedRole != nil:
		typ = lifecycle.AssignRole
	case in.AssignedTo != nil:
		typ = lifecycle.AssignUser
	default:
		return lifecycle.Assignment{}, false
	}
	a := lifecycle.Assignment{Type: typ, UserIDs: in.AssignedTo}
	if in.AssignedRole != nil {
		a.Role = *in.AssignedRole
	}
	// An unchanged type with no target keeps the current one.
	if cur := lifecycle.CurrentAssignment(task); cur.Type == typ {
		if typ == lifecycle.AssignRole && in.AssignedRole == nil {
			a.Role = cur.Role
		}
		if typ == lifecycle.AssignUser && in.AssignedTo == nil {
			a.UserIDs = cur.UserIDs
		}
	}
	return a, true
}

func (s *taskService) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.Store.Tasks().Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("[task][delete][ok]", zap.Int64("task_id", id), zap.Int64("actor_id", actorID))
	s.publish(ctx, events.TaskDeleted, id, actorID, "", "")
	return nil
}

func (s *taskService) MyTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	return s.Store.Tasks().ListByAssignee(ctx, userID)
}

func (s *taskService) AcceptedTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	if _, err := s.Store.Users().FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.Store.Tasks().ListAcceptedBy(ctx, userID)
}

func (s *taskService) Stats(ctx context.Context, assigneeID *int64) (models.TaskStats, error) {
	return s.Store.Tasks().Stats(ctx, assigneeID)
}

func (s *taskService) StatsByAssignee(ctx context.Context) ([]models.AssigneeStats, error) {
	return s.Store.Tasks().StatsByAssignee(ctx)
}
