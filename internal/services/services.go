package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskflow/internal/events"
	"taskflow/internal/lifecycle"
	"taskflow/internal/models"
	"taskflow/internal/notify"
	"taskflow/internal/repositories"
)

// Clock returns the current time. Tests pass a fixed clock.
type Clock func() time.Time

// Deps are the collaborators shared by the task services.
type Deps struct {
	Store    repositories.Store
	Events   events.Publisher
	Notifier notify.TaskNotifier
	Policy   lifecycle.Policy
	Clock    Clock
	Logger   *zap.Logger
}

func (d *Deps) fill() {
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.NopNotifier{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

// publish sends a lifecycle event after commit. Failures are logged only.
func (d *Deps) publish(ctx context.Context, typ events.Type, taskID, userID int64, from, to string) {
	err := d.Events.Publish(ctx, events.Event{
		Type:       typ,
		TaskID:     taskID,
		UserID:     userID,
		From:       from,
		To:         to,
		OccurredAt: d.Clock(),
	})
	if err != nil {
		d.Logger.Warn("[events][publish][err]",
			zap.String("type", string(typ)),
			zap.Int64("task_id", taskID),
			zap.Error(err))
	}
}

// loadActiveUser returns the caller, refusing deactivated accounts.
func loadActiveUser(ctx context.Context, users repositories.UserRepository, id int64) (*models.User, error) {
	u, err := users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, models.ForbiddenError("account is inactive")
	}
	return u, nil
}
