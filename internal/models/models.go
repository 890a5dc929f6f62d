package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Habit carries the streak triad (Streak, LastDoneDate, DoneToday) mutated
// only by a mark-done request or the daily reconciliation sweep. DoneToday is
// meaningful relative to the last reconciliation: true implies LastDoneDate is
// the current calendar day.
type Habit struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Frequency    string     `json:"frequency"`
	Streak       int        `json:"streak"`
	LastDoneDate *time.Time `json:"last_done_date"`
	DoneToday    bool       `json:"done_today"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DailyCompletion is the per-(user, date) ledger row recording whether every
// habit the user owned was marked done on that date. One row per pair,
// upserted in place, never deleted.
type DailyCompletion struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Date               time.Time `json:"date"`
	AllHabitsCompleted bool      `json:"all_habits_completed"`
}

type UserSettings struct {
	UserID              string `json:"user_id"`
	Theme               string `json:"theme"`
	MotivationalMessage string `json:"motivational_message"`
}

type DashboardSummary struct {
	ProductivityScore int `json:"productivity_score"`
	TasksCompleted    int `json:"tasks_completed"`
	TotalTasks        int `json:"total_tasks"`
	TotalStreakDays   int `json:"total_streak_days"`
	ActiveHabits      int `json:"active_habits"`
}
