package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"geotasks/internal/engine"
	"geotasks/internal/location"
	"geotasks/internal/models"
	"geotasks/internal/notify"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	engine *engine.Engine
	feed   *location.PushFeed
	outbox *notify.Outbox
	logger *log.Logger
}

// New creates a new Handlers instance. feed and outbox may be nil, in which
// case the position push and notification routes answer 404.
func New(e *engine.Engine, feed *location.PushFeed, outbox *notify.Outbox, logger *log.Logger) *Handlers {
	return &Handlers{
		engine: e,
		feed:   feed,
		outbox: outbox,
		logger: logger.WithPrefix("http"),
	}
}

// parseIndex extracts a non-negative integer from URL parameters.
func parseIndex(r *http.Request, param string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, param))
}

// parseCoordinate reads latitude and longitude form values.
func parseCoordinate(r *http.Request) (models.Coordinate, error) {
	lat, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil {
		return models.Coordinate{}, errors.New("invalid latitude")
	}
	lon, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil {
		return models.Coordinate{}, errors.New("invalid longitude")
	}
	c := models.Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return models.Coordinate{}, err
	}
	return c, nil
}

// respondJSON writes v as a JSON body.
func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func (h *Handlers) respondServerError(w http.ResponseWriter, err error) {
	h.logger.Error("internal server error", "err", err)
	respondError(w, http.StatusInternalServerError, "internal server error")
}

// respondResult writes v unless err is a real failure. A persistence failure
// means the change is live in memory, so the caller still gets v.
func (h *Handlers) respondResult(w http.ResponseWriter, v interface{}, err error) {
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, v)
	case errors.Is(err, models.ErrPersistenceFailure):
		h.logger.Warn("change applied but not saved", "err", err)
		respondJSON(w, http.StatusOK, v)
	case errors.Is(err, models.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrOutOfRange):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		h.respondServerError(w, err)
	}
}
