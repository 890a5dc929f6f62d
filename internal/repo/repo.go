package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"daypulse/internal/models"
	"daypulse/internal/streak"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
)

type Repo struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) CreateUser(ctx context.Context, username, email, passwordHash string) (string, error) {
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username).Scan(&exists); err != nil {
		return "", err
	}
	if exists {
		return "", ErrUsernameTaken
	}
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`, email).Scan(&exists); err != nil {
		return "", err
	}
	if exists {
		return "", ErrEmailTaken
	}
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`, username, email, passwordHash).Scan(&id)
	if isUniqueViolation(err) {
		// Lost the race between the existence check and the insert.
		return "", ErrUsernameTaken
	}
	return id, err
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (string, string, error) {
	var id, hash string
	err := r.Pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE username=$1`, username).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.Pool.QueryRow(ctx, `SELECT id, username, email, created_at FROM users WHERE id=$1`, userID).
		Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// GetOrCreateSettings returns the user's settings row, creating it with
// defaults on first access.
func (r *Repo) GetOrCreateSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	s := models.UserSettings{UserID: userID}
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO user_settings (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id=EXCLUDED.user_id
		RETURNING theme, motivational_message`, userID).
		Scan(&s.Theme, &s.MotivationalMessage)
	return s, err
}

func (r *Repo) UpdateSettings(ctx context.Context, userID, theme, message string) (models.UserSettings, error) {
	s := models.UserSettings{UserID: userID}
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO user_settings (user_id, theme, motivational_message) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET theme=EXCLUDED.theme, motivational_message=EXCLUDED.motivational_message
		RETURNING theme, motivational_message`, userID, theme, message).
		Scan(&s.Theme, &s.MotivationalMessage)
	return s, err
}

func (r *Repo) CreateTask(ctx context.Context, userID, title string, dueDate *time.Time) (models.Task, error) {
	t := models.Task{UserID: userID, Title: title, DueDate: dueDate, Status: models.TaskStatusPending}
	err := r.Pool.QueryRow(ctx, `INSERT INTO tasks (user_id, title, due_date) VALUES ($1, $2, $3) RETURNING id, status, created_at`,
		userID, title, dueDate).Scan(&t.ID, &t.Status, &t.CreatedAt)
	return t, err
}

func (r *Repo) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, title, status, due_date, created_at, completed_at FROM tasks WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []models.Task
	for rows.Next() {
		t := models.Task{UserID: userID}
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.DueDate, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the provided fields; nil means leave unchanged. Moving a
// task to completed stamps completed_at, any other status clears it.
func (r *Repo) UpdateTask(ctx context.Context, id, userID string, title, status *string) (models.Task, error) {
	t := models.Task{ID: id, UserID: userID}
	err := r.Pool.QueryRow(ctx, `
		UPDATE tasks SET
			title = COALESCE($1, title),
			status = COALESCE($2, status),
			completed_at = CASE
				WHEN $2::text IS NULL THEN completed_at
				WHEN $2 = 'completed' THEN now()
				ELSE NULL
			END
		WHERE id=$3 AND user_id=$4
		RETURNING title, status, due_date, created_at, completed_at`, title, status, id, userID).
		Scan(&t.Title, &t.Status, &t.DueDate, &t.CreatedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	return t, err
}

func (r *Repo) DeleteTask(ctx context.Context, id, userID string) error {
	cmd, err := r.Pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskCounts returns the user's total and completed task counts.
func (r *Repo) TaskCounts(ctx context.Context, userID string) (total, completed int, err error) {
	err = r.Pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE status='completed')
		FROM tasks WHERE user_id=$1`, userID).Scan(&total, &completed)
	return total, completed, err
}

func (r *Repo) CreateHabit(ctx context.Context, userID, name, frequency string) (models.Habit, error) {
	h := models.Habit{UserID: userID, Name: name, Frequency: frequency}
	err := r.Pool.QueryRow(ctx, `INSERT INTO habits (user_id, name, frequency) VALUES ($1, $2, $3) RETURNING id, streak, done_today, created_at`,
		userID, name, frequency).Scan(&h.ID, &h.Streak, &h.DoneToday, &h.CreatedAt)
	return h, err
}

func (r *Repo) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, name, frequency, streak, last_done_date, done_today, created_at FROM habits WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHabits(rows, userID)
}

func scanHabits(rows pgx.Rows, userID string) ([]models.Habit, error) {
	var habits []models.Habit
	for rows.Next() {
		h := models.Habit{UserID: userID}
		if err := rows.Scan(&h.ID, &h.Name, &h.Frequency, &h.Streak, &h.LastDoneDate, &h.DoneToday, &h.CreatedAt); err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (r *Repo) RenameHabit(ctx context.Context, id, userID, name string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE habits SET name=$1 WHERE id=$2 AND user_id=$3`, name, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteHabit(ctx context.Context, id, userID string) error {
	cmd, err := r.Pool.Exec(ctx, `DELETE FROM habits WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetHabit(ctx context.Context, id, userID string) (models.Habit, error) {
	h := models.Habit{ID: id, UserID: userID}
	err := r.Pool.QueryRow(ctx, `SELECT name, frequency, streak, last_done_date, done_today, created_at FROM habits WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&h.Name, &h.Frequency, &h.Streak, &h.LastDoneDate, &h.DoneToday, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Habit{}, ErrNotFound
	}
	return h, err
}

// MarkHabitDone marks a habit complete for today and keeps the daily
// completion ledger in step, all in one transaction. The habit row is locked
// first so a concurrent duplicate call serializes behind this one, observes
// done_today=true and becomes a no-op. Partial application (streak updated
// but ledger not) is never committed.
func (r *Repo) MarkHabitDone(ctx context.Context, habitID, userID string, today time.Time) (models.Habit, error) {
	today = streak.Day(today)

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	defer tx.Rollback(ctx)

	h := models.Habit{ID: habitID, UserID: userID}
	err = tx.QueryRow(ctx, `SELECT name, frequency, streak, last_done_date, done_today, created_at FROM habits WHERE id=$1 AND user_id=$2 FOR UPDATE`, habitID, userID).
		Scan(&h.Name, &h.Frequency, &h.Streak, &h.LastDoneDate, &h.DoneToday, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Habit{}, ErrNotFound
	}
	if err != nil {
		return models.Habit{}, err
	}

	if h.DoneToday {
		// Already completed today; idempotent no-op.
		return h, nil
	}

	h.Streak = streak.Advance(h.Streak, h.LastDoneDate, today)
	h.LastDoneDate = &today
	h.DoneToday = true

	if _, err := tx.Exec(ctx, `UPDATE habits SET streak=$1, last_done_date=$2, done_today=true WHERE id=$3`, h.Streak, today, habitID); err != nil {
		return models.Habit{}, err
	}
	if _, err := recomputeDailyCompletion(ctx, tx, userID, today); err != nil {
		return models.Habit{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

// RecomputeDailyCompletion re-derives the all-habits-done snapshot for the
// given day and upserts the ledger row. Returns false without writing when
// the user owns no habits.
func (r *Repo) RecomputeDailyCompletion(ctx context.Context, userID string, date time.Time) (bool, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)
	allDone, err := recomputeDailyCompletion(ctx, tx, userID, streak.Day(date))
	if err != nil {
		return false, err
	}
	return allDone, tx.Commit(ctx)
}

func recomputeDailyCompletion(ctx context.Context, tx pgx.Tx, userID string, date time.Time) (bool, error) {
	rows, err := tx.Query(ctx, `SELECT id, name, frequency, streak, last_done_date, done_today, created_at FROM habits WHERE user_id=$1`, userID)
	if err != nil {
		return false, err
	}
	habits, err := scanHabits(rows, userID)
	if err != nil {
		return false, err
	}
	if len(habits) == 0 {
		return false, nil
	}
	allDone := streak.AllDone(habits)
	_, err = tx.Exec(ctx, `
		INSERT INTO daily_completions (id, user_id, date, all_habits_completed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, date) DO UPDATE SET all_habits_completed=EXCLUDED.all_habits_completed`,
		uuid.NewString(), userID, date, allDone)
	return allDone, err
}

// ResetLapsedStreaks is the daily reconciliation sweep over all habits for
// all users. Habits whose completion gap exceeds one day lose their streak;
// any habit last done before today has its done flag cleared so it must be
// re-marked. Both updates commit as one unit and the sweep is idempotent
// within a day.
func (r *Repo) ResetLapsedStreaks(ctx context.Context, today time.Time) error {
	today = streak.Day(today)

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE habits SET streak=0, done_today=false
		WHERE last_done_date IS NOT NULL AND last_done_date < $1::date - 1`, today); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE habits SET done_today=false
		WHERE done_today AND last_done_date IS DISTINCT FROM $1::date`, today); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
