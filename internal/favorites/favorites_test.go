package favorites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotasks/internal/geo"
	"geotasks/internal/logging"
	"geotasks/internal/models"
	"geotasks/internal/store"
)

func setupRegistry(t *testing.T, precision int) (*Registry, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, logging.Discard(), precision), s
}

type brokenBackend struct{}

func (brokenBackend) Load(context.Context, string) ([]byte, error) { return nil, errors.New("gone") }
func (brokenBackend) Save(context.Context, string, []byte) error  { return errors.New("gone") }
func (brokenBackend) Close() error                                { return nil }

func addr(s string) *string { return &s }

func TestAdd_AllowsDuplicatesAndPersists(t *testing.T) {
	r, backend := setupRegistry(t, geo.DefaultMatchPrecision)
	ctx := context.Background()
	home := models.Coordinate{Latitude: 37.7749, Longitude: -122.4194}

	_, err := r.Add(ctx, "Home", home, addr("1 Main St"))
	require.NoError(t, err)
	_, err = r.Add(ctx, "Home", home, addr("1 Main St"))
	require.NoError(t, err)

	assert.Len(t, r.List(), 2)

	reloaded := New(backend, logging.Discard(), geo.DefaultMatchPrecision)
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.List(), 2)
}

func TestAdd_Validation(t *testing.T) {
	r, _ := setupRegistry(t, geo.DefaultMatchPrecision)
	ctx := context.Background()

	_, err := r.Add(ctx, "  ", models.Coordinate{}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = r.Add(ctx, "Moon", models.Coordinate{Latitude: 400}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	fav, err := r.Add(ctx, "  Gym ", models.Coordinate{Latitude: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Gym", fav.Name)
}

func TestRemove(t *testing.T) {
	r, _ := setupRegistry(t, geo.DefaultMatchPrecision)
	ctx := context.Background()

	r.Add(ctx, "A", models.Coordinate{Latitude: 1}, nil)
	r.Add(ctx, "B", models.Coordinate{Latitude: 2}, nil)
	r.Add(ctx, "C", models.Coordinate{Latitude: 3}, nil)

	removed, err := r.Remove(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", removed.Name)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "C", list[1].Name)

	for _, index := range []int{-1, 2, 10} {
		_, err := r.Remove(ctx, index)
		assert.ErrorIs(t, err, models.ErrOutOfRange, "index %d", index)
	}
}

func TestGet(t *testing.T) {
	r, _ := setupRegistry(t, geo.DefaultMatchPrecision)
	ctx := context.Background()

	r.Add(ctx, "Office", models.Coordinate{Latitude: 5, Longitude: 6}, addr("HQ"))

	fav, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Office", fav.Name)

	_, err = r.Get(1)
	assert.ErrorIs(t, err, models.ErrOutOfRange)
}

func TestFindByAddress_FirstExactMatch(t *testing.T) {
	r, _ := setupRegistry(t, geo.DefaultMatchPrecision)
	ctx := context.Background()

	r.Add(ctx, "No address", models.Coordinate{Latitude: 1}, nil)
	r.Add(ctx, "First", models.Coordinate{Latitude: 2}, addr("1 Main St"))
	r.Add(ctx, "Second", models.Coordinate{Latitude: 3}, addr("1 Main St"))

	fav, ok := r.FindByAddress("1 Main St")
	require.True(t, ok)
	assert.Equal(t, "First", fav.Name)

	_, ok = r.FindByAddress("1 main st")
	assert.False(t, ok, "matching is exact")
}

func TestFindByLocation_Precision(t *testing.T) {
	ctx := context.Background()
	stored := models.Coordinate{Latitude: 37.774901, Longitude: -122.419402}
	probe := models.Coordinate{Latitude: 37.774903, Longitude: -122.419399}

	rounded, _ := setupRegistry(t, geo.DefaultMatchPrecision)
	rounded.Add(ctx, "Cafe", stored, nil)
	fav, ok := rounded.FindByLocation(probe)
	require.True(t, ok)
	assert.Equal(t, "Cafe", fav.Name)

	exact, _ := setupRegistry(t, -1)
	exact.Add(ctx, "Cafe", stored, nil)
	_, ok = exact.FindByLocation(probe)
	assert.False(t, ok)
	_, ok = exact.FindByLocation(stored)
	assert.True(t, ok)
}

func TestMutations_PersistenceFailure(t *testing.T) {
	r := New(brokenBackend{}, logging.Discard(), geo.DefaultMatchPrecision)
	ctx := context.Background()

	_, err := r.Add(ctx, "Home", models.Coordinate{}, nil)
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.Len(t, r.List(), 1, "memory stays authoritative")

	_, err = r.Remove(ctx, 0)
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.Empty(t, r.List())

	assert.ErrorIs(t, r.Load(ctx), models.ErrPersistenceFailure)
}

func TestList_IsSnapshot(t *testing.T) {
	r, _ := setupRegistry(t, geo.DefaultMatchPrecision)
	ctx := context.Background()

	r.Add(ctx, "Park", models.Coordinate{Latitude: 1}, addr("Park Ave"))
	list := r.List()
	*list[0].Address = "changed"

	fav, _ := r.Get(0)
	assert.Equal(t, "Park Ave", *fav.Address)
}
