package handlers

import (
	"net/http"
	"time"

	"geotasks/internal/geocode"
	"geotasks/internal/models"
)

// PushPosition feeds a device fix into the location feed.
func (h *Handlers) PushPosition(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		respondError(w, http.StatusNotFound, "position push is not enabled")
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	c, err := parseCoordinate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := h.feed.Push(c)
	if err != nil {
		h.respondResult(w, nil, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

// CurrentPosition returns the tracker's last fix.
func (h *Handlers) CurrentPosition(w http.ResponseWriter, r *http.Request) {
	c, ok := h.engine.Tracker().Current()
	if !ok {
		respondError(w, http.StatusNotFound, "no position yet")
		return
	}

	respondJSON(w, http.StatusOK, struct {
		models.Coordinate
		UpdatedAt time.Time `json:"updated_at"`
	}{c, h.engine.Tracker().UpdatedAt()})
}

// ResolveAddress names a coordinate the way task locations are named:
// favorite first, then the reverse geocoder.
func (h *Handlers) ResolveAddress(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, source, err := h.engine.ResolveAddress(r.Context(), c)
	if err != nil {
		h.logger.Warn("address resolution failed", "location", c, "err", err)
		respondError(w, http.StatusBadGateway, "address lookup failed")
		return
	}
	if source == geocode.SourceNone {
		respondError(w, http.StatusNotFound, "no address found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"address": name, "source": string(source)})
}

// ListNotifications returns the most recent notifications, oldest first.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if h.outbox == nil {
		respondError(w, http.StatusNotFound, "notification outbox is not enabled")
		return
	}
	out := h.outbox.List()
	if out == nil {
		out = []models.Notification{}
	}
	respondJSON(w, http.StatusOK, out)
}

type statusView struct {
	Geofencing    bool               `json:"geofencing"`
	Permitted     bool               `json:"location_permitted"`
	Tasks         int                `json:"tasks"`
	Armed         int                `json:"armed"`
	Triggered     int                `json:"triggered"`
	Favorites     int                `json:"favorites"`
	LastPosition  *models.Coordinate `json:"last_position"`
	LastUpdatedAt *time.Time         `json:"last_updated_at"`
}

// Status summarises the engine state.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	tracker := h.engine.Tracker()
	s := statusView{
		Geofencing: h.engine.GeofencingEnabled(),
		Permitted:  tracker.Permitted(),
		Favorites:  len(h.engine.Favorites().List()),
	}

	for _, t := range h.engine.Tasks().List() {
		s.Tasks++
		if !t.HasGeofence() {
			continue
		}
		if t.Notified {
			s.Triggered++
		} else {
			s.Armed++
		}
	}

	if c, ok := tracker.Current(); ok {
		at := tracker.UpdatedAt()
		s.LastPosition = &c
		s.LastUpdatedAt = &at
	}

	respondJSON(w, http.StatusOK, s)
}
