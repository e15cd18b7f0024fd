package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"taskflow/internal/authz"
	"taskflow/internal/events"
	"taskflow/internal/lifecycle"
	"taskflow/internal/models"
	"taskflow/internal/repositories"
)

// SubmitInput carries the assignee's field values. Status defaults to completed;
// in-progress saves a draft.
type SubmitInput struct {
	Fields []models.FieldInput `json:"fields"`
	Status models.TaskStatus   `json:"status"`
}

// AssignmentService runs the accept/reject/submit workflow for assignees.
type AssignmentService interface {
	Accept(ctx context.Context, userID, taskID int64) (*models.Task, error)
	Reject(ctx context.Context, userID, taskID int64) (*models.Task, error)
	PendingFor(ctx context.Context, userID int64) ([]models.Task, error)
	Submit(ctx context.Context, userID, taskID int64, in SubmitInput) (*models.Task, error)
	ChangeStatus(ctx context.Context, userID, taskID int64, to models.TaskStatus) (*models.Task, error)
}

type assignmentService struct {
	Deps
}

func NewAssignmentService(deps Deps) AssignmentService {
	deps.fill()
	return &assignmentService{Deps: deps}
}

// Accept claims the task and records the back-reference in one transaction.
// The task write only succeeds while the stored assignment is still pending.
func (s *assignmentService) Accept(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	var out *models.Task
	err := s.Store.WithTx(ctx, func(tx repositories.Store) error {
		now := s.Clock()
		user, err := loadActiveUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}
		task, err := tx.Tasks().FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if err := lifecycle.Accept(task, user, now); err != nil {
			return err
		}
		task.UpdatedAt = now
		if err := tx.Tasks().UpdateIfAssignment(ctx, task, models.AssignmentPending); err != nil {
			if errors.Is(err, repositories.ErrStaleWrite) {
				return models.ConflictError(models.MsgTaskUnavailable)
			}
			return err
		}
		if err := tx.Users().AddAssignedTask(ctx, user.ID, task.ID); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		s.Logger.Info("[task][accept][refused]",
			zap.Int64("task_id", taskID), zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.Logger.Info("[task][accept][ok]", zap.Int64("task_id", taskID), zap.Int64("user_id", userID))
	s.publish(ctx, events.TaskAccepted, taskID, userID, string(models.AssignmentPending), string(models.AssignmentAccepted))
	return out, nil
}

func (s *assignmentService) Reject(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	var (
		out  *models.Task
		from models.AssignmentStatus
	)
	err := s.Store.WithTx(ctx, func(tx repositories.Store) error {
		now := s.Clock()
		user, err := loadActiveUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}
		task, err := tx.Tasks().FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		from = task.AssignmentStatus
		released, err := lifecycle.Reject(task, user, now)
		if err != nil {
			return err
		}
		task.UpdatedAt = now
		if err := tx.Tasks().UpdateIfAssignment(ctx, task, from); err != nil {
			if errors.Is(err, repositories.ErrStaleWrite) {
				return models.ConflictError(models.MsgTaskUnavailable)
			}
			return err
		}
		if released {
			if err := tx.Users().RemoveAssignedTask(ctx, user.ID, task.ID); err != nil {
				return err
			}
		}
		out = task
		return nil
	})
	if err != nil {
		s.Logger.Info("[task][reject][refused]",
			zap.Int64("task_id", taskID), zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.Logger.Info("[task][reject][ok]", zap.Int64("task_id", taskID), zap.Int64("user_id", userID))
	s.publish(ctx, events.TaskRejected, taskID, userID, string(from), string(out.AssignmentStatus))
	return out, nil
}

// PendingFor lists tasks awaiting userID's decision, newest first.
func (s *assignmentService) PendingFor(ctx context.Context, userID int64) ([]models.Task, error) {
	user, err := s.Store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.Store.Tasks().ListPendingCandidates(ctx, user)
	if err != nil {
		return nil, err
	}
	return lifecycle.PendingFor(user, candidates), nil
}

// Submit fills the task's fields as the acceptor and moves the work status.
func (s *assignmentService) Submit(ctx context.Context, userID, taskID int64, in SubmitInput) (*models.Task, error) {
	target := in.Status
	if target == "" {
		target = models.StatusCompleted
	}
	if target != models.StatusCompleted && target != models.StatusInProgress {
		return nil, models.ValidationError("status", "submission status must be in-progress or completed")
	}

	var (
		out  *models.Task
		from models.TaskStatus
	)
	err := s.Store.WithTx(ctx, func(tx repositories.Store) error {
		now := s.Clock()
		user, err := loadActiveUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}
		task, err := tx.Tasks().FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if !lifecycle.IsAcceptor(task, user.ID) {
			return models.ForbiddenError("only the user who accepted the task can submit it")
		}
		if task.Status == models.StatusCompleted && !s.Policy.AllowReopen {
			return models.ConflictError(lifecycle.MsgCompletedTerminal)
		}
		from = task.Status

		merge := lifecycle.MergeSubmission
		if target == models.StatusInProgress {
			merge = lifecycle.MergeDraft
		}
		merged, err := merge(task.Fields, in.Fields)
		if err != nil {
			return err
		}
		task.Fields = merged

		if err := lifecycle.UpdateStatus(task, target, user.ID, now, s.Policy); err != nil {
			return err
		}
		lifecycle.Record(task, lifecycle.ActionSubmitted, user.ID, now)
		task.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		s.Logger.Info("[task][submit][refused]",
			zap.Int64("task_id", taskID), zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	s.Logger.Info("[task][submit][ok]", zap.Int64("task_id", taskID), zap.Int64("user_id", userID))
	s.publish(ctx, events.TaskSubmitted, taskID, userID, string(from), string(out.Status))
	return out, nil
}

// ChangeStatus lets an admin or the acceptor move the work status.
func (s *assignmentService) ChangeStatus(ctx context.Context, userID, taskID int64, to models.TaskStatus) (*models.Task, error) {
	var (
		out  *models.Task
		from models.TaskStatus
	)
	err := s.Store.WithTx(ctx, func(tx repositories.Store) error {
		now := s.Clock()
		user, err := loadActiveUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}
		task, err := tx.Tasks().FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if !authz.IsAdmin(user.Role) && !lifecycle.IsAcceptor(task, user.ID) {
			return models.ForbiddenError("only an admin or the user who accepted the task can change its status")
		}
		from = task.Status
		if err := lifecycle.UpdateStatus(task, to, user.ID, now, s.Policy); err != nil {
			return err
		}
		if from == task.Status {
			out = task
			return nil
		}
		task.UpdatedAt = now
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != out.Status {
		s.Logger.Info("[task][status][ok]",
			zap.Int64("task_id", taskID),
			zap.String("from", string(from)),
			zap.String("to", string(out.Status)))
		s.publish(ctx, events.TaskStatusChanged, taskID, userID, string(from), string(out.Status))
	}
	return out, nil
}
