package handlers

import (
	"errors"
	"net/http"

	"geotasks/internal/models"
)

// ListFavorites returns the saved places in order.
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Favorites().List())
}

// CreateFavorite saves a named place.
func (h *Handlers) CreateFavorite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	c, err := parseCoordinate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	fav, err := h.engine.Favorites().Add(r.Context(), r.FormValue("name"), c, models.StringPtr(r.FormValue("address")))
	if err != nil && !errors.Is(err, models.ErrPersistenceFailure) {
		h.respondResult(w, nil, err)
		return
	}
	if err != nil {
		h.logger.Warn("change applied but not saved", "err", err)
	}

	respondJSON(w, http.StatusCreated, fav)
}

// DeleteFavorite removes the favorite at {index}.
func (h *Handlers) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r, "index")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid favorite index")
		return
	}

	removed, err := h.engine.Favorites().Remove(r.Context(), index)
	h.respondResult(w, removed, err)
}
