package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"daypulse/internal/auth"
	"daypulse/internal/repo"
	"daypulse/internal/service"
)

const maxBodyBytes = 1 << 20

// FlexDate accepts YYYY-MM-DD from date inputs and full RFC3339 timestamps.
// Anything unparseable is treated as absent rather than rejected.
type FlexDate struct {
	time.Time
}

func (fd *FlexDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		fd.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		fd.Time = t
		return nil
	}
	return nil
}

func (fd *FlexDate) ToTimePtr() *time.Time {
	if fd == nil || fd.Time.IsZero() {
		return nil
	}
	t := fd.Time
	return &t
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return false
	}
	return true
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type taskRequest struct {
	Title   string    `json:"title"`
	DueDate *FlexDate `json:"due_date"`
}

type taskUpdateRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

type habitRequest struct {
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
}

type habitUpdateRequest struct {
	Name     *string `json:"name"`
	MarkDone bool    `json:"mark_done"`
}

type settingsRequest struct {
	Theme               *string `json:"theme"`
	MotivationalMessage *string `json:"motivational_message"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, err := a.Service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var ve *service.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", ve.Message)
		case errors.Is(err, repo.ErrUsernameTaken):
			writeError(w, http.StatusBadRequest, "USERNAME_TAKEN", "Username already exists")
		case errors.Is(err, repo.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "EMAIL_TAKEN", "Email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": userID, "username": req.Username})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required")
		return
	}
	token, err := a.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "username": req.Username})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	user, err := a.Repo.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	summary, err := a.Service.DashboardSummary(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	tasks, err := a.Repo.ListTasks(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title is required")
		return
	}
	task, err := a.Repo.CreateTask(r.Context(), userID, req.Title, req.DueDate.ToTimePtr())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	var req taskUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := a.Repo.UpdateTask(r.Context(), chi.URLParam(r, "id"), userID, req.Title, req.Status)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	if err := a.Repo.DeleteTask(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

func (a *API) handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	habits, err := a.Repo.ListHabits(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list habits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": habits})
}

func (a *API) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	var req habitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Habit name is required")
		return
	}
	frequency := req.Frequency
	if frequency == "" {
		frequency = "daily"
	}
	habit, err := a.Repo.CreateHabit(r.Context(), userID, req.Name, frequency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create habit")
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

// handleUpdateHabit renames a habit and/or marks it done for today. Marking
// done routes through the streak engine so the streak advances and the daily
// completion ledger is recomputed in the same transaction.
func (a *API) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	habitID := chi.URLParam(r, "id")
	var req habitUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MarkDone {
		if _, err := a.Service.MarkHabitDone(r.Context(), userID, habitID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Habit not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to mark habit done")
			return
		}
	}
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Habit name is required")
			return
		}
		if err := a.Repo.RenameHabit(r.Context(), habitID, userID, *req.Name); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "Habit not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rename habit")
			return
		}
	}
	habit, err := a.Repo.GetHabit(r.Context(), habitID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Habit not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load habit")
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (a *API) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	if err := a.Repo.DeleteHabit(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Habit not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete habit")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Habit deleted"})
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	settings, err := a.Repo.GetOrCreateSettings(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settings, err := a.Repo.GetOrCreateSettings(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load settings")
		return
	}
	if req.Theme != nil {
		settings.Theme = *req.Theme
	}
	if req.MotivationalMessage != nil {
		settings.MotivationalMessage = *req.MotivationalMessage
	}
	updated, err := a.Repo.UpdateSettings(r.Context(), userID, settings.Theme, settings.MotivationalMessage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
