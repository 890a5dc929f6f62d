package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"daypulse/internal/auth"
	"daypulse/internal/repo"
	"daypulse/internal/service"
)

type API struct {
	Repo    *repo.Repo
	Service *service.Service
	Auth    *auth.Manager
	Origins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.authMiddleware)
			r.Get("/me", a.handleMe)
			r.Get("/dashboard", a.handleDashboard)
			r.Get("/settings", a.handleGetSettings)
			r.Put("/settings", a.handleUpdateSettings)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", a.handleListTasks)
				r.Post("/", a.handleCreateTask)
				r.Put("/{id}", a.handleUpdateTask)
				r.Delete("/{id}", a.handleDeleteTask)
			})
			r.Route("/habits", func(r chi.Router) {
				r.Get("/", a.handleListHabits)
				r.Post("/", a.handleCreateHabit)
				r.Put("/{id}", a.handleUpdateHabit)
				r.Delete("/{id}", a.handleDeleteHabit)
			})
		})
	})

	return r
}
