// Package geocode turns coordinates into human-readable place names.
package geocode

import (
	"context"
	"fmt"

	"geotasks/internal/models"
)

// Geocoder resolves a coordinate to a formatted address. An empty string
// with a nil error means the provider found nothing.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c models.Coordinate) (string, error)
}

// FavoriteFinder looks up a favorite by coordinate.
type FavoriteFinder interface {
	FindByLocation(location models.Coordinate) (models.FavoriteLocation, bool)
}

// Source tells where a resolved name came from.
type Source string

const (
	SourceNone     Source = ""
	SourceFavorite Source = "favorite"
	SourceGeocoder Source = "geocoder"
)

// Resolver resolves favorites first and falls back to a geocoder.
type Resolver struct {
	favorites FavoriteFinder
	geocoder  Geocoder // nil disables reverse geocoding
}

// NewResolver creates a resolver. geocoder may be nil.
func NewResolver(favorites FavoriteFinder, geocoder Geocoder) *Resolver {
	return &Resolver{favorites: favorites, geocoder: geocoder}
}

// Resolve returns the favorite name at c, or else the geocoded address.
// It returns SourceNone with an empty name when neither produced anything.
func (r *Resolver) Resolve(ctx context.Context, c models.Coordinate) (string, Source, error) {
	if r.favorites != nil {
		if fav, ok := r.favorites.FindByLocation(c); ok {
			return fav.Name, SourceFavorite, nil
		}
	}

	if r.geocoder == nil {
		return "", SourceNone, nil
	}

	addr, err := r.geocoder.ReverseGeocode(ctx, c)
	if err != nil {
		return "", SourceNone, fmt.Errorf("reverse geocode %s: %w", c, err)
	}
	if addr == "" {
		return "", SourceNone, nil
	}
	return addr, SourceGeocoder, nil
}
