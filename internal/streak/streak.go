// Package streak holds the pure streak arithmetic: how a habit's consecutive
// run advances or resets on completion, when a missed day breaks it, and how
// the rolling all-habits-done day count is derived. It never touches storage;
// the repo layer applies its results inside transactions.
package streak

import (
	"time"

	"daypulse/internal/models"
)

// MaxLookback bounds the backward walk in TotalDays.
const MaxLookback = 365

// Day normalizes t to its calendar day at UTC midnight. All engine
// comparisons run on Day-normalized values so time-of-day and zone offsets
// never influence gap math.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Gap returns the number of calendar days from lastDone to day.
func Gap(lastDone, day time.Time) int {
	return int(Day(day).Sub(Day(lastDone)) / (24 * time.Hour))
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Advance returns the streak value after the habit is marked done on day.
// No prior completion starts a streak of 1; a one-day gap extends it; a
// same-day repeat leaves it unchanged; any wider gap broke continuity, so
// today restarts at 1. Callers must apply the done-today idempotency guard
// before calling.
func Advance(current int, lastDone *time.Time, day time.Time) int {
	if lastDone == nil {
		return 1
	}
	switch gap := Gap(*lastDone, day); {
	case gap == 1:
		return current + 1
	case gap == 0:
		return current
	default:
		return 1
	}
}

// Lapsed reports whether the habit missed at least one full day before day,
// which resets its streak during reconciliation.
func Lapsed(lastDone *time.Time, day time.Time) bool {
	return lastDone != nil && Gap(*lastDone, day) > 1
}

// AllDone reports whether every habit in the slice is marked done today.
// A user with no habits has nothing to complete, so the answer is false.
func AllDone(habits []models.Habit) bool {
	if len(habits) == 0 {
		return false
	}
	for _, h := range habits {
		if !h.DoneToday {
			return false
		}
	}
	return true
}

// TotalDays counts consecutive calendar days, walking backward from today,
// on which every habit was completed. A day qualifies only if every habit has
// LastDoneDate on that day and DoneToday set, so the count reflects the
// current flags rather than ledger history and returns 0 for a user with no
// habits. The walk stops at the first non-qualifying day or after maxLookback
// days.
func TotalDays(habits []models.Habit, today time.Time, maxLookback int) int {
	if len(habits) == 0 {
		return 0
	}
	days := 0
	current := Day(today)
	for i := 0; i < maxLookback; i++ {
		done := 0
		for _, h := range habits {
			if h.LastDoneDate != nil && SameDay(*h.LastDoneDate, current) && h.DoneToday {
				done++
			}
		}
		if done != len(habits) {
			break
		}
		days++
		current = current.AddDate(0, 0, -1)
	}
	return days
}

// Score combines completed-task count and total streak days into the
// productivity score.
func Score(completedTasks, streakDays int) int {
	return completedTasks*10 + streakDays*5
}
