package services

import (
	"context"
	"sync"
	"time"

	"taskflow/internal/events"
	"taskflow/internal/lifecycle"
	"taskflow/internal/models"
	"taskflow/internal/notify"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []int64
	texts []string
}

func (n *recordingNotifier) NotifyTask(_ context.Context, task *models.Task, msg notify.Message) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, task.ID)
	n.texts = append(n.texts, msg.Subject)
	return 1
}

type fixture struct {
	store    *memStore
	pub      *recordingPublisher
	notifier *recordingNotifier
	now      time.Time
	tasks    TaskService
	assign   AssignmentService

	admin, sales1, sales2, buyer int64
}

var testNow = time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		pub:      &recordingPublisher{},
		notifier: &recordingNotifier{},
		now:      testNow,
	}
	deps := Deps{
		Store:    f.store,
		Events:   f.pub,
		Notifier: f.notifier,
		Policy:   lifecycle.Policy{},
		Clock:    func() time.Time { return f.now },
	}
	f.tasks = NewTaskService(deps)
	f.assign = NewAssignmentService(deps)

	f.admin = f.store.seedUser(models.User{Username: "admin", Email: "admin@example.com", Role: "admin"})
	f.sales1 = f.store.seedUser(models.User{Username: "sam", Email: "sam@example.com", Role: "salesman"})
	f.sales2 = f.store.seedUser(models.User{Username: "sue", Email: "sue@example.com", Role: "salesman"})
	f.buyer = f.store.seedUser(models.User{Username: "pat", Email: "pat@example.com", Role: "purchaseman"})
	return f
}

// advance moves the fixed clock forward.
func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func roleTask(title string) CreateTaskInput {
	return CreateTaskInput{
		Title:        title,
		Description:  title + " description",
		AssignType:   lifecycle.AssignRole,
		AssignedRole: "salesman",
	}
}

func userTask(title string, ids ...int64) CreateTaskInput {
	return CreateTaskInput{
		Title:       title,
		Description: title + " description",
		AssignType:  lifecycle.AssignUser,
		AssignedTo:  ids,
	}
}

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}
