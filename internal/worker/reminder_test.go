package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
	"taskflow/internal/notify"
)

type marked struct {
	last time.Time
	next *time.Time
}

type fakeTasks struct {
	mu     sync.Mutex
	due    []models.Task
	err    error
	marked map[int64]marked
}

func (f *fakeTasks) ListDueForReminder(_ context.Context, _ time.Time, limit int) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := append([]models.Task(nil), f.due...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTasks) SetNotified(_ context.Context, id int64, last time.Time, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marked == nil {
		f.marked = map[int64]marked{}
	}
	f.marked[id] = marked{last: last, next: next}
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	tasks []int64
}

func (n *countingNotifier) NotifyTask(_ context.Context, task *models.Task, msg notify.Message) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task.ID)
	return 1
}

func TestReminderTick(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 30, 0, time.UTC)
	start := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	recurring := models.Task{ID: 1, NotificationFrequency: models.NotificationFrequency{
		Type:           models.NotifyRecurring,
		Interval:       models.IntervalCustom,
		CustomInterval: models.CustomInterval{Hours: 2},
		StartTime:      start,
		EndTime:        start.AddDate(0, 0, 7),
	}}
	once := models.Task{ID: 2, NextNotification: &start, NotificationFrequency: models.NotificationFrequency{
		Type:      models.NotifyOnce,
		StartTime: start,
		EndTime:   start.Add(8 * time.Hour),
	}}
	expired := models.Task{ID: 3, NotificationFrequency: models.NotificationFrequency{
		Type:    models.NotifyRecurring,
		EndTime: now.Add(-time.Hour),
	}}

	store := &fakeTasks{due: []models.Task{recurring, once, expired}}
	notifier := &countingNotifier{}
	r := NewReminder(store, notifier, time.Minute, 10, nil)
	r.now = func() time.Time { return now }

	sent, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, notifier.tasks)

	require.Contains(t, store.marked, int64(1))
	require.NotNil(t, store.marked[1].next)
	assert.Equal(t, now.Add(2*time.Hour), *store.marked[1].next)
	assert.Equal(t, now, store.marked[1].last)

	require.Contains(t, store.marked, int64(2))
	assert.Equal(t, now, store.marked[2].last)

	require.Contains(t, store.marked, int64(3))
	assert.Nil(t, store.marked[3].next, "expired schedule is cleared")
}

func TestReminderStopsAtEndTime(t *testing.T) {
	now := time.Date(2024, 3, 6, 16, 0, 0, 0, time.UTC)
	task := models.Task{ID: 7, NotificationFrequency: models.NotificationFrequency{
		Type:           models.NotifyRecurring,
		Interval:       models.IntervalCustom,
		CustomInterval: models.CustomInterval{Hours: 2},
		EndTime:        time.Date(2024, 3, 6, 17, 0, 0, 0, time.UTC),
	}}
	store := &fakeTasks{due: []models.Task{task}}
	r := NewReminder(store, &countingNotifier{}, time.Minute, 10, nil)
	r.now = func() time.Time { return now }

	sent, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Nil(t, store.marked[7].next, "next run would fall after the window")
}

func TestReminderTickListError(t *testing.T) {
	store := &fakeTasks{err: errors.New("db down")}
	r := NewReminder(store, &countingNotifier{}, time.Minute, 10, nil)

	_, err := r.Tick(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestReminderRunStopsOnCancel(t *testing.T) {
	r := NewReminder(&fakeTasks{}, &countingNotifier{}, 5*time.Millisecond, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reminder did not stop")
	}
}
