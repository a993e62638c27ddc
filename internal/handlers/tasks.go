package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"geotasks/internal/models"
)

// oneShotTimeout bounds how long a "use current location" request waits for
// the next fix.
const oneShotTimeout = 30 * time.Second

// taskView is a task as the list renders it.
type taskView struct {
	models.Task
	DisplayLocation string `json:"display_location"`
}

func (h *Handlers) view(t models.Task) taskView {
	return taskView{Task: t, DisplayLocation: t.DisplayLocation(h.engine.Favorites().List())}
}

// ListTasks returns all tasks, optionally filtered by ?status=active|completed.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != "active" && status != "completed" {
		respondError(w, http.StatusBadRequest, "status must be active or completed")
		return
	}

	favs := h.engine.Favorites().List()
	out := []taskView{}
	for _, t := range h.engine.Tasks().List() {
		if status == "active" && t.Completed || status == "completed" && !t.Completed {
			continue
		}
		out = append(out, taskView{Task: t, DisplayLocation: t.DisplayLocation(favs)})
	}

	respondJSON(w, http.StatusOK, out)
}

// CreateTask creates a new open task.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	task, err := h.engine.Tasks().Create(r.Context(), r.FormValue("name"))
	if err != nil && !errors.Is(err, models.ErrPersistenceFailure) {
		h.respondResult(w, nil, err)
		return
	}
	if err != nil {
		h.logger.Warn("change applied but not saved", "err", err)
	}

	respondJSON(w, http.StatusCreated, h.view(task))
}

// GetTask returns a single task.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.engine.Tasks().Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}

	respondJSON(w, http.StatusOK, h.view(task))
}

// UpdateDescription replaces the task description.
func (h *Handlers) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	task, err := h.engine.Tasks().SetDescription(r.Context(), chi.URLParam(r, "id"), r.FormValue("description"))
	h.respondResult(w, h.view(task), err)
}

// SetLocation pins the task to the posted coordinate. The address follows
// asynchronously.
func (h *Handlers) SetLocation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	c, err := parseCoordinate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.engine.AssignLocation(r.Context(), chi.URLParam(r, "id"), c)
	h.respondResult(w, h.view(task), err)
}

// UseCurrentLocation waits for the next fix and pins the task to it.
func (h *Handlers) UseCurrentLocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), oneShotTimeout)
	defer cancel()

	task, err := h.engine.UseCurrentLocation(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "no location fix received")
		return
	}
	h.respondResult(w, h.view(task), err)
}

// AssignFavorite copies a favorite's coordinate and address onto the task.
func (h *Handlers) AssignFavorite(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r, "index")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid favorite index")
		return
	}

	task, err := h.engine.AssignFavorite(r.Context(), chi.URLParam(r, "id"), index)
	h.respondResult(w, h.view(task), err)
}

// ToggleTask toggles the completion status of a task.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.Tasks().ToggleCompleted(r.Context(), chi.URLParam(r, "id"))
	h.respondResult(w, h.view(task), err)
}

// DeleteTask deletes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Tasks().Delete(r.Context(), chi.URLParam(r, "id"))
	if err == nil || errors.Is(err, models.ErrPersistenceFailure) {
		if err != nil {
			h.logger.Warn("change applied but not saved", "err", err)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.respondResult(w, nil, err)
}

// ClearCompleted removes every completed task.
func (h *Handlers) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.Tasks().ClearCompleted(r.Context())
	h.respondResult(w, map[string]int{"removed": removed}, err)
}
