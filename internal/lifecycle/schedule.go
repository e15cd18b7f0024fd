package lifecycle

import (
	"time"

	"taskflow/internal/models"
)

// Default notification window used when a task is created without one.
const (
	defaultStartHour = 9
	defaultEndHour   = 17
)

// CalculateNextNotification returns the next time a reminder is due.
//
//   - once: the configured start time.
//   - recurring daily: today at hours:minutes in now's location, or tomorrow if
//     that is not strictly after now.
//   - recurring custom: now plus the interval.
func CalculateNextNotification(freq models.NotificationFrequency, now time.Time) time.Time {
	if freq.Type != models.NotifyRecurring {
		return freq.StartTime
	}

	if freq.Interval == models.IntervalCustom {
		return now.Add(time.Duration(freq.CustomInterval.Hours)*time.Hour +
			time.Duration(freq.CustomInterval.Minutes)*time.Minute)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(),
		freq.CustomInterval.Hours, freq.CustomInterval.Minutes, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NormalizeFrequency fills defaults and validates ranges and enum values.
func NormalizeFrequency(freq models.NotificationFrequency, now time.Time) (models.NotificationFrequency, error) {
	if freq.Type == "" {
		freq.Type = models.NotifyOnce
	}
	if freq.Interval == "" {
		freq.Interval = models.IntervalDaily
	}
	switch freq.Type {
	case models.NotifyOnce, models.NotifyRecurring:
	default:
		return freq, models.ValidationError("notificationFrequency.type", "invalid notification type %q", freq.Type)
	}
	switch freq.Interval {
	case models.IntervalDaily, models.IntervalCustom:
	default:
		return freq, models.ValidationError("notificationFrequency.interval", "invalid notification interval %q", freq.Interval)
	}
	if h := freq.CustomInterval.Hours; h < 0 || h > 23 {
		return freq, models.ValidationError("notificationFrequency.customInterval.hours", "hours must be between 0 and 23")
	}
	if m := freq.CustomInterval.Minutes; m < 0 || m > 59 {
		return freq, models.ValidationError("notificationFrequency.customInterval.minutes", "minutes must be between 0 and 59")
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if freq.StartTime.IsZero() {
		freq.StartTime = day.Add(defaultStartHour * time.Hour)
	}
	if freq.EndTime.IsZero() {
		freq.EndTime = day.Add(defaultEndHour * time.Hour)
		if freq.EndTime.Before(freq.StartTime) {
			freq.EndTime = freq.StartTime.AddDate(0, 0, 7)
		}
	}
	if freq.EndTime.Before(freq.StartTime) {
		return freq, models.ValidationError("notificationFrequency.endTime", "end time must not be before start time")
	}
	return freq, nil
}

// Reschedule normalizes freq, stores it on the task and recomputes the next
// notification time.
func Reschedule(task *models.Task, freq models.NotificationFrequency, now time.Time) error {
	normalized, err := NormalizeFrequency(freq, now)
	if err != nil {
		return err
	}
	task.NotificationFrequency = normalized
	next := CalculateNextNotification(normalized, now)
	task.NextNotification = &next
	return nil
}

// MarkNotified records a dispatched reminder and advances recurring schedules.
func MarkNotified(task *models.Task, now time.Time) {
	task.LastNotified = &now
	if task.NotificationFrequency.Type == models.NotifyRecurring {
		next := CalculateNextNotification(task.NotificationFrequency, now)
		task.NextNotification = &next
	}
}
