package handlers

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the chi router for the JSON API.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	// Task API routes
	r.Get("/api/tasks", h.ListTasks)
	r.Post("/api/tasks", h.CreateTask)
	r.Post("/api/tasks/clear-completed", h.ClearCompleted)
	r.Get("/api/tasks/{id}", h.GetTask)
	r.Delete("/api/tasks/{id}", h.DeleteTask)
	r.Put("/api/tasks/{id}/description", h.UpdateDescription)
	r.Put("/api/tasks/{id}/location", h.SetLocation)
	r.Post("/api/tasks/{id}/location/current", h.UseCurrentLocation)
	r.Post("/api/tasks/{id}/location/favorite/{index}", h.AssignFavorite)
	r.Post("/api/tasks/{id}/toggle", h.ToggleTask)

	// Favorite API routes
	r.Get("/api/favorites", h.ListFavorites)
	r.Post("/api/favorites", h.CreateFavorite)
	r.Delete("/api/favorites/{index}", h.DeleteFavorite)

	// Location and notifications
	r.Post("/api/positions", h.PushPosition)
	r.Get("/api/positions/current", h.CurrentPosition)
	r.Get("/api/resolve", h.ResolveAddress)
	r.Get("/api/notifications", h.ListNotifications)
	r.Get("/api/status", h.Status)

	return r
}

// requestLogger logs one line per request through the structured logger.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
