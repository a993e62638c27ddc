package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotasks/internal/logging"
	"geotasks/internal/models"
	"geotasks/internal/store"
)

type fakeBackend struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   int
	saveErr error
	loadErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: make(map[string][]byte)}
}

func (f *fakeBackend) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.docs[key], nil
}

func (f *fakeBackend) Save(_ context.Context, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.docs[key] = append([]byte(nil), payload...)
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) savedTasks(t *testing.T) []models.Task {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	require.NoError(t, json.Unmarshal(f.docs[store.KeyTasks], &out))
	return out
}

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
}

func setupStore(t *testing.T) (*Store, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	return New(backend, logging.Discard(), WithIDFunc(sequentialIDs())), backend
}

func TestCreate_Defaults(t *testing.T) {
	s, backend := setupStore(t)

	task, err := s.Create(context.Background(), "Buy milk")
	require.NoError(t, err)

	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "Buy milk", task.Name)
	assert.False(t, task.Completed)
	assert.Nil(t, task.Location)
	assert.False(t, task.Notified)
	assert.Equal(t, 1, backend.saves, "create should write through")
}

func TestCreate_RejectsBlankNames(t *testing.T) {
	s, backend := setupStore(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.Create(context.Background(), name)
		assert.ErrorIs(t, err, models.ErrInvalidArgument, "name %q", name)
	}
	assert.Empty(t, s.List())
	assert.Zero(t, backend.saves)
}

func TestCreate_StoresTrimmedName(t *testing.T) {
	s, _ := setupStore(t)

	task, err := s.Create(context.Background(), "  Buy milk\n")
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", task.Name)

	got, ok := s.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, "Buy milk", got.Name)
}

func TestCreate_DefaultIDsAreUnique(t *testing.T) {
	s := New(newFakeBackend(), logging.Discard())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		task, err := s.Create(ctx, "task")
		require.NoError(t, err)
		require.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
}

func TestList_PreservesInsertionOrderAndIsSnapshot(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"First", "Second", "Third"} {
		_, err := s.Create(ctx, name)
		require.NoError(t, err)
	}

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "First", list[0].Name)
	assert.Equal(t, "Second", list[1].Name)
	assert.Equal(t, "Third", list[2].Name)

	list[0].Name = "mutated"
	got, ok := s.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "First", got.Name)
}

func TestSetLocation_DoesNotTouchNotified(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	task, _ := s.Create(ctx, "Pick up parcel")
	home := models.Coordinate{Latitude: 37, Longitude: -122}
	_, err := s.SetLocation(ctx, task.ID, home, nil)
	require.NoError(t, err)

	_, err = s.ApplyTransitions(ctx, []models.Transition{{TaskID: task.ID, Kind: models.Entered}})
	require.NoError(t, err)

	addr := "Post office"
	updated, err := s.SetLocation(ctx, task.ID, models.Coordinate{Latitude: 40, Longitude: -74}, &addr)
	require.NoError(t, err)

	assert.True(t, updated.Notified, "moving the pin must not reset the latch")
	assert.Equal(t, 40.0, updated.Location.Latitude)
	require.NotNil(t, updated.Address)
	assert.Equal(t, "Post office", *updated.Address)
}

func TestSetLocation_KeepsAddressWhenNoneSupplied(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	task, _ := s.Create(ctx, "Gym")
	addr := "Old address"
	s.SetLocation(ctx, task.ID, models.Coordinate{Latitude: 1, Longitude: 1}, &addr)

	updated, err := s.SetLocation(ctx, task.ID, models.Coordinate{Latitude: 2, Longitude: 2}, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.Address)
	assert.Equal(t, "Old address", *updated.Address, "address is not re-derived automatically")
}

func TestSetLocation_Errors(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.SetLocation(ctx, "missing", models.Coordinate{}, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)

	task, _ := s.Create(ctx, "x")
	_, err = s.SetLocation(ctx, task.ID, models.Coordinate{Latitude: 123}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestSetAddress_OnlyAppliesToUnchangedLocation(t *testing.T) {
	s, backend := setupStore(t)
	ctx := context.Background()

	task, _ := s.Create(ctx, "Dentist")
	first := models.Coordinate{Latitude: 10, Longitude: 10}
	second := models.Coordinate{Latitude: 20, Longitude: 20}
	s.SetLocation(ctx, task.ID, first, nil)
	s.SetLocation(ctx, task.ID, second, nil)
	saves := backend.saves

	applied, err := s.SetAddress(ctx, task.ID, first, "stale")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, saves, backend.saves, "a dropped address should not persist")

	applied, err = s.SetAddress(ctx, task.ID, second, "fresh")
	require.NoError(t, err)
	assert.True(t, applied)

	got, _ := s.Get(task.ID)
	require.NotNil(t, got.Address)
	assert.Equal(t, "fresh", *got.Address)
}

func TestSetDescription(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	task, _ := s.Create(ctx, "Read")
	updated, err := s.SetDescription(ctx, task.ID, "chapter 3")
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "chapter 3", *updated.Description)

	cleared, err := s.SetDescription(ctx, task.ID, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.Description)
}

func TestToggleCompleted(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	task, _ := s.Create(ctx, "Laundry")

	done, err := s.ToggleCompleted(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	reopened, err := s.ToggleCompleted(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, reopened.Completed)

	_, err = s.ToggleCompleted(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, backend := setupStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, "A")
	b, _ := s.Create(ctx, "B")

	require.NoError(t, s.Delete(ctx, a.ID))

	_, ok := s.Get(a.ID)
	assert.False(t, ok)
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Len(t, backend.savedTasks(t), 1)

	assert.ErrorIs(t, s.Delete(ctx, a.ID), models.ErrNotFound)
}

func TestClearCompleted(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, "A")
	s.Create(ctx, "B")
	c, _ := s.Create(ctx, "C")
	s.ToggleCompleted(ctx, a.ID)
	s.ToggleCompleted(ctx, c.ID)

	removed, err := s.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Name)

	removed, err = s.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestApplyTransitions_RechecksCurrentState(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	loc := models.Coordinate{Latitude: 1, Longitude: 1}

	open, _ := s.Create(ctx, "open")
	done, _ := s.Create(ctx, "done")
	bare, _ := s.Create(ctx, "no location")
	s.SetLocation(ctx, open.ID, loc, nil)
	s.SetLocation(ctx, done.ID, loc, nil)
	s.ToggleCompleted(ctx, done.ID)

	entered, err := s.ApplyTransitions(ctx, []models.Transition{
		{TaskID: open.ID, Kind: models.Entered},
		{TaskID: done.ID, Kind: models.Entered},
		{TaskID: bare.ID, Kind: models.Entered},
		{TaskID: "deleted", Kind: models.Entered},
	})
	require.NoError(t, err)
	require.Len(t, entered, 1)
	assert.Equal(t, open.ID, entered[0].ID)
	assert.True(t, entered[0].Notified)

	again, err := s.ApplyTransitions(ctx, []models.Transition{{TaskID: open.ID, Kind: models.Entered}})
	require.NoError(t, err)
	assert.Empty(t, again, "an already-notified task cannot enter twice")

	_, err = s.ApplyTransitions(ctx, []models.Transition{{TaskID: open.ID, Kind: models.Left}})
	require.NoError(t, err)
	got, _ := s.Get(open.ID)
	assert.False(t, got.Notified)
}

func TestMutations_PersistenceFailureKeepsMemoryState(t *testing.T) {
	s, backend := setupStore(t)
	ctx := context.Background()
	backend.saveErr = errors.New("disk full")

	task, err := s.Create(ctx, "Survives")
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.Equal(t, "Survives", task.Name)

	_, ok := s.Get(task.ID)
	assert.True(t, ok, "in-memory state stays authoritative")

	backend.saveErr = nil
	_, err = s.SetDescription(ctx, task.ID, "reconciled")
	require.NoError(t, err)

	saved := backend.savedTasks(t)
	require.Len(t, saved, 1)
	assert.Equal(t, "Survives", saved[0].Name)
}

func TestLoad(t *testing.T) {
	backend := newFakeBackend()
	backend.docs[store.KeyTasks] = []byte(`[
		{"id":"1","name":"Buy milk","completed":false,"location":{"latitude":37,"longitude":-122},"address":"Store","notified":true,"description":null},
		{"id":"2","name":"Broken latch","completed":false,"location":null,"address":null,"notified":true,"description":"x"}
	]`)

	s := New(backend, logging.Discard())
	require.NoError(t, s.Load(context.Background()))

	list := s.List()
	require.Len(t, list, 2)
	assert.True(t, list[0].Notified)
	require.NotNil(t, list[0].Address)
	assert.Equal(t, "Store", *list[0].Address)
	assert.False(t, list[1].Notified, "notified without a location is repaired on load")
}

func TestLoad_Failures(t *testing.T) {
	backend := newFakeBackend()
	backend.loadErr = errors.New("io error")
	s := New(backend, logging.Discard())
	assert.ErrorIs(t, s.Load(context.Background()), models.ErrPersistenceFailure)

	backend.loadErr = nil
	backend.docs[store.KeyTasks] = []byte(`[{"name":"missing id"}]`)
	assert.ErrorIs(t, s.Load(context.Background()), models.ErrPersistenceFailure)
	assert.Empty(t, s.List())
}

func TestLoad_EmptyBackend(t *testing.T) {
	s, _ := setupStore(t)
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.List())
}
