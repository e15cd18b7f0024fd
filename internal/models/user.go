package models

import "time"

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	MobileNo       string     `json:"mobileNo"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	Status         UserStatus `json:"status"`
	TelegramChatID int64      `json:"telegramChatId,omitempty"`
	NotifyTelegram bool       `json:"notifyTelegram"`
	AssignedTasks  []int64    `json:"assignedTasks"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (u *User) HasAssignedTask(taskID int64) bool {
	for _, id := range u.AssignedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserActive
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
