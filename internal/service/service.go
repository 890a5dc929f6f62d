package service

import (
	"context"
	"errors"
	"time"

	"daypulse/internal/auth"
	"daypulse/internal/models"
	"daypulse/internal/repo"
	"daypulse/internal/streak"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Service wires the streak engine to storage and auth. Now is the injected
// clock: everything date-sensitive (mark-done, dashboard, reconciliation
// default) flows through it so tests and external schedulers control time.
type Service struct {
	Repo     *repo.Repo
	Auth     *auth.Manager
	TokenTTL time.Duration
	Now      func() time.Time
}

func New(repository *repo.Repo, authManager *auth.Manager) *Service {
	return &Service{
		Repo:     repository,
		Auth:     authManager,
		TokenTTL: 24 * time.Hour,
		Now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	if username == "" || email == "" || password == "" {
		return "", &ValidationError{Message: "All fields are required"}
	}
	if len(username) < 3 {
		return "", &ValidationError{Message: "Username must be at least 3 characters"}
	}
	if len(password) < 6 {
		return "", &ValidationError{Message: "Password must be at least 6 characters"}
	}
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	userID, err := s.Repo.CreateUser(ctx, username, email, hash)
	if err != nil {
		return "", err
	}
	// Default settings row so the settings endpoints work right after signup.
	if _, err := s.Repo.GetOrCreateSettings(ctx, userID); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	userID, hash, err := s.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := s.Auth.ComparePassword(hash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.Auth.GenerateToken(userID, username, s.TokenTTL)
}

// MarkHabitDone marks the habit complete for the current day. Idempotent
// within a day; the habit update and ledger upsert commit together.
func (s *Service) MarkHabitDone(ctx context.Context, userID, habitID string) (models.Habit, error) {
	return s.Repo.MarkHabitDone(ctx, habitID, userID, s.Now())
}

// TotalStreakDays recomputes the rolling all-habits-done day count from the
// current habit flags. Not persisted.
func (s *Service) TotalStreakDays(ctx context.Context, userID string) (int, error) {
	habits, err := s.Repo.ListHabits(ctx, userID)
	if err != nil {
		return 0, err
	}
	return streak.TotalDays(habits, s.Now(), streak.MaxLookback), nil
}

// DashboardSummary combines task counts and streak days into the
// productivity score view.
func (s *Service) DashboardSummary(ctx context.Context, userID string) (models.DashboardSummary, error) {
	total, completed, err := s.Repo.TaskCounts(ctx, userID)
	if err != nil {
		return models.DashboardSummary{}, err
	}
	habits, err := s.Repo.ListHabits(ctx, userID)
	if err != nil {
		return models.DashboardSummary{}, err
	}
	streakDays := streak.TotalDays(habits, s.Now(), streak.MaxLookback)
	return models.DashboardSummary{
		ProductivityScore: streak.Score(completed, streakDays),
		TasksCompleted:    completed,
		TotalTasks:        total,
		TotalStreakDays:   streakDays,
		ActiveHabits:      len(habits),
	}, nil
}

// RunDailyReconciliation sweeps all habits for all users, resetting streaks
// broken by a missed day and clearing yesterday's done flags. Called once per
// calendar day by whatever scheduler drives the process; safe to re-run.
func (s *Service) RunDailyReconciliation(ctx context.Context, today time.Time) error {
	return s.Repo.ResetLapsedStreaks(ctx, today)
}
