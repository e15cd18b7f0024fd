package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/models"
)

func TestCalculateNextNotification(t *testing.T) {
	loc := time.UTC
	start := time.Date(2024, 3, 1, 8, 30, 0, 0, loc)
	daily9 := models.NotificationFrequency{
		Type:           models.NotifyRecurring,
		Interval:       models.IntervalDaily,
		CustomInterval: models.CustomInterval{Hours: 9},
	}

	tests := []struct {
		name string
		freq models.NotificationFrequency
		now  time.Time
		want time.Time
	}{
		{
			name: "once returns start time",
			freq: models.NotificationFrequency{Type: models.NotifyOnce, StartTime: start},
			now:  time.Date(2024, 3, 5, 12, 0, 0, 0, loc),
			want: start,
		},
		{
			name: "daily after slot rolls to tomorrow",
			freq: daily9,
			now:  time.Date(2024, 3, 5, 14, 0, 0, 0, loc),
			want: time.Date(2024, 3, 6, 9, 0, 0, 0, loc),
		},
		{
			name: "daily before slot stays today",
			freq: daily9,
			now:  time.Date(2024, 3, 5, 6, 0, 0, 0, loc),
			want: time.Date(2024, 3, 5, 9, 0, 0, 0, loc),
		},
		{
			name: "daily exactly at slot rolls forward",
			freq: daily9,
			now:  time.Date(2024, 3, 5, 9, 0, 0, 0, loc),
			want: time.Date(2024, 3, 6, 9, 0, 0, 0, loc),
		},
		{
			name: "daily across month end",
			freq: daily9,
			now:  time.Date(2024, 2, 29, 23, 0, 0, 0, loc),
			want: time.Date(2024, 3, 1, 9, 0, 0, 0, loc),
		},
		{
			name: "custom is a pure offset",
			freq: models.NotificationFrequency{
				Type:           models.NotifyRecurring,
				Interval:       models.IntervalCustom,
				CustomInterval: models.CustomInterval{Hours: 2, Minutes: 30},
			},
			now:  time.Date(2024, 3, 5, 22, 45, 0, 0, loc),
			want: time.Date(2024, 3, 6, 1, 15, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNextNotification(tt.freq, tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNormalizeFrequency(t *testing.T) {
	now := time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		got, err := NormalizeFrequency(models.NotificationFrequency{}, now)
		require.NoError(t, err)
		assert.Equal(t, models.NotifyOnce, got.Type)
		assert.Equal(t, models.IntervalDaily, got.Interval)
		assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), got.StartTime)
		assert.Equal(t, time.Date(2024, 3, 5, 17, 0, 0, 0, time.UTC), got.EndTime)
	})

	t.Run("late start gets a week long window", func(t *testing.T) {
		start := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
		got, err := NormalizeFrequency(models.NotificationFrequency{StartTime: start}, now)
		require.NoError(t, err)
		assert.Equal(t, start.AddDate(0, 0, 7), got.EndTime)
	})

	invalid := []models.NotificationFrequency{
		{Type: "hourly"},
		{Interval: "weekly"},
		{CustomInterval: models.CustomInterval{Hours: 24}},
		{CustomInterval: models.CustomInterval{Minutes: 60}},
		{CustomInterval: models.CustomInterval{Hours: -1}},
		{StartTime: now.Add(2 * time.Hour), EndTime: now},
	}
	for _, freq := range invalid {
		_, err := NormalizeFrequency(freq, now)
		assert.True(t, models.IsKind(err, models.KindValidation), "%+v", freq)
	}
}

func TestRescheduleAndMarkNotified(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	task := &models.Task{}

	err := Reschedule(task, models.NotificationFrequency{
		Type:           models.NotifyRecurring,
		Interval:       models.IntervalDaily,
		CustomInterval: models.CustomInterval{Hours: 9},
	}, now)
	require.NoError(t, err)
	require.NotNil(t, task.NextNotification)
	assert.Equal(t, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), *task.NextNotification)

	fired := time.Date(2024, 3, 6, 9, 0, 30, 0, time.UTC)
	MarkNotified(task, fired)
	require.NotNil(t, task.LastNotified)
	assert.Equal(t, fired, *task.LastNotified)
	assert.Equal(t, time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC), *task.NextNotification)

	once := &models.Task{}
	require.NoError(t, Reschedule(once, models.NotificationFrequency{}, now))
	next := *once.NextNotification
	MarkNotified(once, fired)
	assert.Equal(t, next, *once.NextNotification, "one-shot schedule is not advanced")
}
