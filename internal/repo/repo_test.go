package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupTestRepo(t *testing.T) (*Repo, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	if err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := createTestTables(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("create tables: %v", err)
	}
	repo := New(pool)
	return repo, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func createTestTables(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		`CREATE TABLE users (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), username text UNIQUE, email text UNIQUE, password_hash text, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE tasks (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, title text, status text DEFAULT 'pending', due_date date, created_at timestamptz DEFAULT now(), completed_at timestamptz)`,
		`CREATE TABLE habits (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, name text, frequency text DEFAULT 'daily', streak int DEFAULT 0, last_done_date date, done_today boolean DEFAULT false, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE daily_completions (id uuid PRIMARY KEY, user_id uuid, date date NOT NULL, all_habits_completed boolean DEFAULT false, UNIQUE (user_id, date))`,
		`CREATE TABLE user_settings (user_id uuid PRIMARY KEY, theme text DEFAULT 'light', motivational_message text DEFAULT 'Keep going! You are doing great!')`,
	}
	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func createTestUser(t *testing.T, repo *Repo, username string) string {
	t.Helper()
	var id string
	if err := repo.Pool.QueryRow(context.Background(),
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, 'x') RETURNING id`,
		username, username+"@example.com").Scan(&id); err != nil {
		t.Fatalf("user: %v", err)
	}
	return id
}

func createTestHabit(t *testing.T, repo *Repo, userID, name string, streakVal int, lastDone *time.Time, doneToday bool) string {
	t.Helper()
	var id string
	if err := repo.Pool.QueryRow(context.Background(),
		`INSERT INTO habits (user_id, name, streak, last_done_date, done_today) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		userID, name, streakVal, lastDone, doneToday).Scan(&id); err != nil {
		t.Fatalf("habit: %v", err)
	}
	return id
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func TestMarkHabitDoneIdempotent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "alice")
	habitID := createTestHabit(t, repo, userID, "Read", 0, nil, false)
	today := date("2025-06-10")

	h, err := repo.MarkHabitDone(ctx, habitID, userID, today)
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if h.Streak != 1 || !h.DoneToday {
		t.Fatalf("expected streak 1 and done, got streak=%d done=%v", h.Streak, h.DoneToday)
	}

	h, err = repo.MarkHabitDone(ctx, habitID, userID, today)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if h.Streak != 1 || !h.DoneToday || h.LastDoneDate == nil || !h.LastDoneDate.Equal(date("2025-06-10")) {
		t.Fatalf("second mark should be a no-op, got %+v", h)
	}

	var count int
	if err := repo.Pool.QueryRow(ctx, `SELECT count(*) FROM daily_completions WHERE user_id=$1`, userID).Scan(&count); err != nil {
		t.Fatalf("ledger count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one ledger row, got %d", count)
	}
}

func TestMarkHabitDoneConsecutiveDay(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "bob")
	habitID := createTestHabit(t, repo, userID, "Run", 4, datePtr("2025-06-09"), false)

	h, err := repo.MarkHabitDone(ctx, habitID, userID, date("2025-06-10"))
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if h.Streak != 5 {
		t.Fatalf("expected streak 5 after consecutive day, got %d", h.Streak)
	}
}

func TestMarkHabitDoneGapRestarts(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "carol")
	habitID := createTestHabit(t, repo, userID, "Stretch", 7, datePtr("2025-06-05"), false)

	h, err := repo.MarkHabitDone(ctx, habitID, userID, date("2025-06-10"))
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if h.Streak != 1 {
		t.Fatalf("expected streak reset to 1 after gap, got %d", h.Streak)
	}
}

func TestMarkHabitDoneForeignHabit(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, repo, "dave")
	other := createTestUser(t, repo, "erin")
	habitID := createTestHabit(t, repo, owner, "Write", 0, nil, false)

	if _, err := repo.MarkHabitDone(ctx, habitID, other, date("2025-06-10")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign habit, got %v", err)
	}
}

func TestLedgerFlipsWhenAllHabitsDone(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "fay")
	a := createTestHabit(t, repo, userID, "A", 0, nil, false)
	b := createTestHabit(t, repo, userID, "B", 0, nil, false)
	today := date("2025-06-10")

	if _, err := repo.MarkHabitDone(ctx, a, userID, today); err != nil {
		t.Fatalf("mark A: %v", err)
	}
	var allDone bool
	if err := repo.Pool.QueryRow(ctx, `SELECT all_habits_completed FROM daily_completions WHERE user_id=$1 AND date=$2`, userID, today).Scan(&allDone); err != nil {
		t.Fatalf("ledger read: %v", err)
	}
	if allDone {
		t.Fatal("ledger should be false while B is pending")
	}

	if _, err := repo.MarkHabitDone(ctx, b, userID, today); err != nil {
		t.Fatalf("mark B: %v", err)
	}
	if err := repo.Pool.QueryRow(ctx, `SELECT all_habits_completed FROM daily_completions WHERE user_id=$1 AND date=$2`, userID, today).Scan(&allDone); err != nil {
		t.Fatalf("ledger reread: %v", err)
	}
	if !allDone {
		t.Fatal("ledger should flip true once every habit is done")
	}
}

func TestRecomputeDailyCompletionNoHabits(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "gus")
	allDone, err := repo.RecomputeDailyCompletion(ctx, userID, date("2025-06-10"))
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if allDone {
		t.Fatal("expected false for user with no habits")
	}
	var count int
	if err := repo.Pool.QueryRow(ctx, `SELECT count(*) FROM daily_completions WHERE user_id=$1`, userID).Scan(&count); err != nil {
		t.Fatalf("ledger count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no ledger row for habit-less user, got %d", count)
	}
}

func TestResetLapsedStreaks(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "hana")
	lapsed := createTestHabit(t, repo, userID, "Lapsed", 5, datePtr("2025-06-07"), true)
	alive := createTestHabit(t, repo, userID, "Alive", 5, datePtr("2025-06-09"), true)
	fresh := createTestHabit(t, repo, userID, "Fresh", 2, datePtr("2025-06-10"), true)
	today := date("2025-06-10")

	if err := repo.ResetLapsedStreaks(ctx, today); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	assertHabit := func(id string, wantStreak int, wantDone bool) {
		t.Helper()
		var gotStreak int
		var gotDone bool
		if err := repo.Pool.QueryRow(ctx, `SELECT streak, done_today FROM habits WHERE id=$1`, id).Scan(&gotStreak, &gotDone); err != nil {
			t.Fatalf("read habit: %v", err)
		}
		if gotStreak != wantStreak || gotDone != wantDone {
			t.Fatalf("habit %s: got streak=%d done=%v, want streak=%d done=%v", id, gotStreak, gotDone, wantStreak, wantDone)
		}
	}

	// Gap of 3 days breaks the streak entirely.
	assertHabit(lapsed, 0, false)
	// Done yesterday: the streak survives but the flag clears for the new day.
	assertHabit(alive, 5, false)
	// Done today: untouched.
	assertHabit(fresh, 2, true)

	// Re-running on the same day leaves an identical state.
	if err := repo.ResetLapsedStreaks(ctx, today); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	assertHabit(lapsed, 0, false)
	assertHabit(alive, 5, false)
	assertHabit(fresh, 2, true)
}

func TestCreateUserDuplicates(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, "iris", "iris@example.com", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateUser(ctx, "iris", "other@example.com", "hash"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := repo.CreateUser(ctx, "iris2", "iris@example.com", "hash"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestTaskCompletionLifecycle(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "jude")
	task, err := repo.CreateTask(ctx, userID, "Ship it", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != "pending" {
		t.Fatalf("expected pending, got %s", task.Status)
	}

	completed := "completed"
	task, err = repo.UpdateTask(ctx, task.ID, userID, nil, &completed)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != "completed" || task.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", task)
	}

	pending := "pending"
	task, err = repo.UpdateTask(ctx, task.ID, userID, nil, &pending)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if task.Status != "pending" || task.CompletedAt != nil {
		t.Fatalf("reopening should clear completed_at, got %+v", task)
	}

	total, done, err := repo.TaskCounts(ctx, userID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 1 || done != 0 {
		t.Fatalf("expected 1 total, 0 completed, got %d/%d", total, done)
	}
}
