// Package favorites keeps the user's named, reusable locations.
package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"geotasks/internal/geo"
	"geotasks/internal/models"
	"geotasks/internal/store"
)

// Registry is an ordered list of favorites. Duplicates are allowed.
// Coordinates are compared with geo.SameLocation at the configured precision.
type Registry struct {
	mu        sync.RWMutex
	items     []models.FavoriteLocation
	backend   store.Store
	logger    *log.Logger
	precision int
}

// New creates an empty registry. A negative precision compares raw floats.
func New(backend store.Store, logger *log.Logger, precision int) *Registry {
	return &Registry{
		backend:   backend,
		logger:    logger.WithPrefix("favorites"),
		precision: precision,
	}
}

// Load replaces the registry contents with the persisted list.
func (r *Registry) Load(ctx context.Context) error {
	payload, err := r.backend.Load(ctx, store.KeyFavorites)
	if err != nil {
		r.logger.Error("failed to load favorites", "err", err)
		return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}

	var loaded []models.FavoriteLocation
	if payload != nil {
		if err := store.DecodeDocument(store.KeyFavorites, payload, &loaded); err != nil {
			r.logger.Error("failed to decode favorites", "err", err)
			return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
		}
	}

	r.mu.Lock()
	r.items = loaded
	r.mu.Unlock()
	return nil
}

// Add appends a favorite and persists the list.
func (r *Registry) Add(ctx context.Context, name string, location models.Coordinate, address *string) (models.FavoriteLocation, error) {
	fav := models.FavoriteLocation{
		Name:     strings.TrimSpace(name),
		Location: location,
		Address:  address,
	}
	if err := fav.Validate(); err != nil {
		return models.FavoriteLocation{}, err
	}
	fav = fav.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, fav)
	return fav.Clone(), r.persistLocked(ctx)
}

// Remove deletes the favorite at index.
func (r *Registry) Remove(ctx context.Context, index int) (models.FavoriteLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.items) {
		return models.FavoriteLocation{}, fmt.Errorf("favorite %d of %d: %w", index, len(r.items), models.ErrOutOfRange)
	}

	removed := r.items[index]
	r.items = append(r.items[:index], r.items[index+1:]...)
	return removed, r.persistLocked(ctx)
}

// Get returns the favorite at index.
func (r *Registry) Get(index int) (models.FavoriteLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.items) {
		return models.FavoriteLocation{}, fmt.Errorf("favorite %d of %d: %w", index, len(r.items), models.ErrOutOfRange)
	}
	return r.items[index].Clone(), nil
}

// List returns a copy of all favorites in insertion order.
func (r *Registry) List() []models.FavoriteLocation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.FavoriteLocation, len(r.items))
	for i, f := range r.items {
		out[i] = f.Clone()
	}
	return out
}

// FindByAddress returns the first favorite whose address equals address.
func (r *Registry) FindByAddress(address string) (models.FavoriteLocation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.items {
		if f.Address != nil && *f.Address == address {
			return f.Clone(), true
		}
	}
	return models.FavoriteLocation{}, false
}

// FindByLocation returns the first favorite at location.
func (r *Registry) FindByLocation(location models.Coordinate) (models.FavoriteLocation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.items {
		if geo.SameLocation(f.Location, location, r.precision) {
			return f.Clone(), true
		}
	}
	return models.FavoriteLocation{}, false
}

func (r *Registry) persistLocked(ctx context.Context) error {
	items := r.items
	if items == nil {
		items = []models.FavoriteLocation{}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode favorites: %w", models.ErrPersistenceFailure, err)
	}

	if err := r.backend.Save(ctx, store.KeyFavorites, payload); err != nil {
		r.logger.Error("failed to save favorites", "err", err)
		return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}
	return nil
}
