// Package worker runs background jobs.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskflow/internal/lifecycle"
	"taskflow/internal/models"
	"taskflow/internal/notify"
	"taskflow/internal/repositories"
)

// ReminderStore is the part of the task repository the reminder loop needs.
type ReminderStore interface {
	ListDueForReminder(ctx context.Context, now time.Time, limit int) ([]models.Task, error)
	SetNotified(ctx context.Context, id int64, lastNotified time.Time, next *time.Time) error
}

var _ ReminderStore = repositories.TaskRepository(nil)

// Reminder dispatches due task reminders on a fixed interval.
type Reminder struct {
	tasks    ReminderStore
	notifier notify.TaskNotifier
	interval time.Duration
	batch    int
	now      func() time.Time
	log      *zap.Logger
}

func NewReminder(tasks ReminderStore, notifier notify.TaskNotifier, interval time.Duration, batch int, log *zap.Logger) *Reminder {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reminder{
		tasks:    tasks,
		notifier: notifier,
		interval: interval,
		batch:    batch,
		now:      time.Now,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, ticking every interval.
func (r *Reminder) Run(ctx context.Context) {
	r.log.Info("[reminder][start]", zap.Duration("interval", r.interval))
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("[reminder][stop]")
			return
		case <-t.C:
			if _, err := r.Tick(ctx); err != nil {
				r.log.Warn("[reminder][tick][err]", zap.Error(err))
			}
		}
	}
}

// Tick processes one batch of due tasks and returns how many reminders were sent.
func (r *Reminder) Tick(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.tasks.ListDueForReminder(ctx, now, r.batch)
	if err != nil {
		return 0, err
	}

	fired := 0
	for i := range due {
		task := &due[i]
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}

		end := task.NotificationFrequency.EndTime
		if !end.IsZero() && now.After(end) {
			if err := r.tasks.SetNotified(ctx, task.ID, now, nil); err != nil {
				r.log.Warn("[reminder][expire][err]", zap.Int64("task_id", task.ID), zap.Error(err))
			}
			continue
		}

		r.notifier.NotifyTask(ctx, task, notify.ReminderMessage(task))
		lifecycle.MarkNotified(task, now)

		next := task.NextNotification
		if next != nil && !end.IsZero() && next.After(end) {
			next = nil
		}
		if err := r.tasks.SetNotified(ctx, task.ID, now, next); err != nil {
			r.log.Warn("[reminder][mark][err]", zap.Int64("task_id", task.ID), zap.Error(err))
			continue
		}
		fired++
	}
	if fired > 0 {
		r.log.Info("[reminder][tick][ok]", zap.Int("sent", fired))
	}
	return fired, nil
}
