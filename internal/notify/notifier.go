// Package notify delivers task messages to users over Telegram and e-mail.
package notify

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"taskflow/internal/models"
)

type Message struct {
	Subject string
	// Text may contain the HTML subset Telegram accepts.
	Text string
}

// Sender is one delivery channel.
type Sender interface {
	Name() string
	CanReach(user *models.User) bool
	Send(ctx context.Context, user *models.User, msg Message) error
}

// RecipientSource resolves the users a task is offered to.
type RecipientSource interface {
	ListByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	ListActiveByRole(ctx context.Context, role string) ([]models.User, error)
}

type TaskNotifier interface {
	NotifyTask(ctx context.Context, task *models.Task, msg Message) int
}

type Notifier struct {
	users   RecipientSource
	senders []Sender
	log     *zap.Logger
}

func NewNotifier(users RecipientSource, log *zap.Logger, senders ...Sender) *Notifier {
	active := make([]Sender, 0, len(senders))
	for _, s := range senders {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Notifier{users: users, senders: active, log: log}
}

// Recipients are the named assignees, or the active members of the role pool.
func (n *Notifier) Recipients(ctx context.Context, task *models.Task) ([]models.User, error) {
	if len(task.AssignedTo) > 0 {
		return n.users.ListByIDs(ctx, task.AssignedTo)
	}
	if task.AssignedRole != "" {
		return n.users.ListActiveByRole(ctx, task.AssignedRole)
	}
	return nil, nil
}

// NotifyTask sends msg to every recipient of task over every channel that
// can reach them and returns the number of deliveries. Failures are logged.
func (n *Notifier) NotifyTask(ctx context.Context, task *models.Task, msg Message) int {
	if len(n.senders) == 0 {
		return 0
	}
	users, err := n.Recipients(ctx, task)
	if err != nil {
		n.log.Warn("[notify][recipients][err]", zap.Int64("task_id", task.ID), zap.Error(err))
		return 0
	}
	sent := 0
	for i := range users {
		u := &users[i]
		if !u.IsActive() {
			continue
		}
		for _, s := range n.senders {
			if !s.CanReach(u) {
				continue
			}
			if err := s.Send(ctx, u, msg); err != nil {
				n.log.Warn("[notify][send][err]",
					zap.String("channel", s.Name()),
					zap.Int64("task_id", task.ID),
					zap.Int64("user_id", u.ID),
					zap.Error(err))
				continue
			}
			sent++
		}
	}
	n.log.Debug("[notify][task][ok]", zap.Int64("task_id", task.ID), zap.Int("deliveries", sent))
	return sent
}

// NopNotifier is used when no channel is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyTask(context.Context, *models.Task, Message) int { return 0 }

func AssignedMessage(task *models.Task) Message {
	return Message{
		Subject: fmt.Sprintf("New task: %s", task.Title),
		Text: fmt.Sprintf("<b>New task #%d</b>\n%s\nPriority: %s\n\n%s",
			task.ID, html.EscapeString(task.Title), task.Priority, html.EscapeString(task.Description)),
	}
}

func ReminderMessage(task *models.Task) Message {
	return Message{
		Subject: fmt.Sprintf("Reminder: %s", task.Title),
		Text: fmt.Sprintf("<b>Reminder</b> for task #%d\n%s\nStatus: %s",
			task.ID, html.EscapeString(task.Title), task.Status),
	}
}
