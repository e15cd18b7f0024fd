package lifecycle

import (
	"strings"
	"time"

	"taskflow/internal/authz"
	"taskflow/internal/models"
)

type AssignType string

const (
	AssignRole AssignType = "role"
	AssignUser AssignType = "user"
)

// Assignment is a requested assignment target.
type Assignment struct {
	Type    AssignType
	Role    string
	UserIDs []int64
}

// ApplyAssignment sets the task's target and clears the other one. When the
// target changes, assignmentStatus goes back to pending; status is untouched.
// It reports whether the target changed.
func ApplyAssignment(task *models.Task, a Assignment) (bool, error) {
	var (
		role  string
		users []int64
	)
	switch a.Type {
	case AssignRole:
		role = strings.TrimSpace(a.Role)
		if role == "" {
			return false, models.ValidationError("assignedRole", "assigned role is required when assignment type is role")
		}
		if !authz.IsAssignable(role) {
			return false, models.ValidationError("assignedRole", "invalid role selected")
		}
		users = []int64{}
	case AssignUser:
		users = dedupe(a.UserIDs)
		if len(users) == 0 {
			return false, models.ValidationError("assignedTo", "assigned user is required when assignment type is user")
		}
	default:
		return false, models.ValidationError("assignType", "assignment type must be role or user")
	}

	changed := task.AssignedRole != role || !sameIDs(task.AssignedTo, users)
	task.AssignedRole = role
	task.AssignedTo = users
	if changed {
		task.AssignmentStatus = models.AssignmentPending
	}
	return changed, nil
}

// CurrentAssignment describes the task's active target.
func CurrentAssignment(task *models.Task) Assignment {
	if len(task.AssignedTo) > 0 {
		return Assignment{Type: AssignUser, UserIDs: append([]int64(nil), task.AssignedTo...)}
	}
	if task.AssignedRole != "" {
		return Assignment{Type: AssignRole, Role: task.AssignedRole}
	}
	return Assignment{}
}

// Unassign drops userID from the named assignees. If that user held the
// accepted assignment it goes back to pending, like a release. It reports
// whether the task changed.
func Unassign(task *models.Task, userID, actorID int64, now time.Time) bool {
	if !task.IsAssignedTo(userID) {
		return false
	}
	if IsAcceptor(task, userID) {
		task.AssignmentStatus = models.AssignmentPending
		if task.Status == models.StatusInProgress {
			task.Status = models.StatusPending
		}
	}
	rest := make([]int64, 0, len(task.AssignedTo))
	for _, id := range task.AssignedTo {
		if id != userID {
			rest = append(rest, id)
		}
	}
	task.AssignedTo = rest
	appendHistory(task, ActionUnassign, actorID, now)
	return true
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
