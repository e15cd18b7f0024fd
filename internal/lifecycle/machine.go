package lifecycle

import (
	"fmt"
	"time"

	"taskflow/internal/authz"
	"taskflow/internal/models"
)

// History actions.
const (
	ActionCreated   = "created"
	ActionAccepted  = "accepted"
	ActionRejected  = "rejected"
	ActionSubmitted = "submitted"
	ActionReassign  = "reassigned"
	ActionUnassign  = "unassigned"
)

// MsgCompletedTerminal is returned for any change to a completed task while
// reopening is disabled.
const MsgCompletedTerminal = "completed task cannot be reopened"

// Policy holds the product decisions the state machine defers to.
type Policy struct {
	// AllowReopen lets a completed task move back to pending or in-progress.
	AllowReopen bool
}

// IsEligible reports whether user may claim the task: named directly, or
// part of the role pool while nobody is named.
func IsEligible(task *models.Task, user *models.User) bool {
	if task.IsAssignedTo(user.ID) {
		return true
	}
	return len(task.AssignedTo) == 0 && task.AssignedRole != "" && task.AssignedRole == user.Role
}

// IsAcceptor reports whether userID holds the accepted assignment.
func IsAcceptor(task *models.Task, userID int64) bool {
	return task.AssignmentStatus == models.AssignmentAccepted && task.IsAssignedTo(userID)
}

// Accept claims a pending task for user. On failure the task is untouched.
func Accept(task *models.Task, user *models.User, now time.Time) error {
	if task.AssignmentStatus != models.AssignmentPending {
		return models.ConflictError(models.MsgTaskUnavailable)
	}
	if !IsEligible(task, user) {
		return models.ForbiddenError("task is not assigned to you")
	}

	task.AssignedTo = []int64{user.ID}
	task.AssignmentStatus = models.AssignmentAccepted
	task.Status = models.StatusInProgress
	appendHistory(task, ActionAccepted, user.ID, now)
	return nil
}

// Reject declines an offered task, or releases one the user had accepted.
// It reports whether the user was the acceptor, so the caller can drop the
// back-reference in the same unit of work.
func Reject(task *models.Task, user *models.User, now time.Time) (released bool, err error) {
	switch task.AssignmentStatus {
	case models.AssignmentAccepted:
		if !task.IsAssignedTo(user.ID) {
			return false, models.ConflictError(models.MsgTaskUnavailable)
		}
		released = true
	default:
		if !IsEligible(task, user) {
			return false, models.ForbiddenError("task is not assigned to you")
		}
	}

	task.AssignmentStatus = models.AssignmentPending
	if len(task.AssignedTo) == 1 && task.AssignedTo[0] == user.ID {
		task.AssignedTo = []int64{}
	}
	if released && task.Status == models.StatusInProgress {
		task.Status = models.StatusPending
	}
	appendHistory(task, ActionRejected, user.ID, now)
	return released, nil
}

// UpdateStatus moves the work status and records the transition.
func UpdateStatus(task *models.Task, to models.TaskStatus, userID int64, now time.Time, policy Policy) error {
	if !to.Valid() {
		return models.ValidationError("status", "invalid status %q", to)
	}
	if to == task.Status {
		return nil
	}
	if task.Status == models.StatusCompleted && !policy.AllowReopen {
		return models.ConflictError(MsgCompletedTerminal)
	}
	// An accepted assignment implies work has started; Reject is the way back.
	if to == models.StatusPending && task.AssignmentStatus == models.AssignmentAccepted {
		return models.ConflictError("accepted task must be released before it returns to pending")
	}
	appendHistory(task, fmt.Sprintf("status changed from %s to %s", task.Status, to), userID, now)
	task.Status = to
	return nil
}

// CanView reports whether a caller may read the task.
func CanView(task *models.Task, user *models.User) bool {
	if authz.IsAdmin(user.Role) {
		return true
	}
	return task.IsAssignedTo(user.ID) || IsEligible(task, user) || user.HasAssignedTask(task.ID)
}

// Record appends an arbitrary audit entry.
func Record(task *models.Task, action string, userID int64, now time.Time) {
	appendHistory(task, action, userID, now)
}

func appendHistory(task *models.Task, action string, userID int64, now time.Time) {
	task.History = append(task.History, models.HistoryEntry{
		Action:      action,
		PerformedBy: userID,
		Timestamp:   now,
	})
}
