// Package events publishes task lifecycle events to RabbitMQ.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	TaskCreated       Type = "task.created"
	TaskUpdated       Type = "task.updated"
	TaskDeleted       Type = "task.deleted"
	TaskAccepted      Type = "task.accepted"
	TaskRejected      Type = "task.rejected"
	TaskStatusChanged Type = "task.status_changed"
	TaskSubmitted     Type = "task.submitted"
)

// Event is the JSON body of a published message.
type Event struct {
	Type       Type      `json:"type"`
	TaskID     int64     `json:"task_id"`
	UserID     int64     `json:"user_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

type fanout []Publisher

// Fanout publishes every event to each of pubs in order. All publishers are
// tried; their errors are joined.
func Fanout(pubs ...Publisher) Publisher {
	return fanout(pubs)
}

func (f fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
