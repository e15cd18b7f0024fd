package lifecycle

import "taskflow/internal/models"

// IsPendingFor reports whether task awaits user's accept/reject decision.
// Role tasks already claimed by anyone are excluded.
func IsPendingFor(task *models.Task, user *models.User) bool {
	if task.AssignmentStatus != models.AssignmentPending {
		return false
	}
	if user.HasAssignedTask(task.ID) {
		return false
	}
	return IsEligible(task, user)
}

// PendingFor filters tasks down to the ones pending for user, keeping order.
func PendingFor(user *models.User, tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if IsPendingFor(&tasks[i], user) {
			out = append(out, tasks[i])
		}
	}
	return out
}
