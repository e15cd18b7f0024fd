package models

import "time"

// TaskStatus tracks work progress.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// AssignmentStatus tracks who owns a task, independent of TaskStatus.
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentRejected:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type NotificationType string

const (
	NotifyOnce      NotificationType = "once"
	NotifyRecurring NotificationType = "recurring"
)

type NotificationInterval string

const (
	IntervalDaily  NotificationInterval = "daily"
	IntervalCustom NotificationInterval = "custom"
)

type CustomInterval struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

type NotificationFrequency struct {
	Type           NotificationType     `json:"type"`
	Interval       NotificationInterval `json:"interval"`
	CustomInterval CustomInterval       `json:"customInterval"`
	StartTime      time.Time            `json:"startTime"`
	EndTime        time.Time            `json:"endTime"`
}

type HistoryEntry struct {
	Action      string    `json:"action"`
	PerformedBy int64     `json:"performedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

// Task is the central entity. AssignedRole and AssignedTo are the two
// assignment targets; at most one of them is active.
type Task struct {
	ID                    int64                 `json:"id"`
	Title                 string                `json:"title"`
	Description           string                `json:"description"`
	Priority              TaskPriority          `json:"priority"`
	AssignedRole          string                `json:"assignedRole,omitempty"`
	AssignedTo            []int64               `json:"assignedTo"`
	Status                TaskStatus            `json:"status"`
	AssignmentStatus      AssignmentStatus      `json:"assignmentStatus"`
	Fields                []Field               `json:"fields"`
	NotificationFrequency NotificationFrequency `json:"notificationFrequency"`
	LastNotified          *time.Time            `json:"lastNotified,omitempty"`
	NextNotification      *time.Time            `json:"nextNotification,omitempty"`
	History               []HistoryEntry        `json:"history"`
	CreatedBy             int64                 `json:"createdBy"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// IsAssignedTo reports whether userID is in the user-based target.
func (t *Task) IsAssignedTo(userID int64) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing slices.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.AssignedTo = append([]int64(nil), t.AssignedTo...)
	cp.Fields = append([]Field(nil), t.Fields...)
	cp.History = append([]HistoryEntry(nil), t.History...)
	if t.LastNotified != nil {
		v := *t.LastNotified
		cp.LastNotified = &v
	}
	if t.NextNotification != nil {
		v := *t.NextNotification
		cp.NextNotification = &v
	}
	return &cp
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	Status     *TaskStatus
	Priority   *TaskPriority
	Role       *string
	AssigneeID *int64
	Query      string
	Limit      int
	Offset     int
}

// TaskStats counts tasks by work status.
type TaskStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// AssigneeStats is TaskStats for one user in assignedTo.
type AssigneeStats struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	TaskStats
}
