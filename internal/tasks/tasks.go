// Package tasks owns the in-memory task collection and writes it through to
// the persistence backend after every mutation.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"

	"geotasks/internal/models"
	"geotasks/internal/store"
)

// IDFunc produces task identifiers. IDs must never repeat.
type IDFunc func() string

// Option configures a Store.
type Option func(*Store)

// WithIDFunc overrides the default xid-based identifier source.
func WithIDFunc(fn IDFunc) Option {
	return func(s *Store) { s.newID = fn }
}

// Store is the authoritative task collection. Mutations persist the whole
// collection before returning. When that save fails the mutation stays
// applied in memory and the returned error wraps models.ErrPersistenceFailure.
type Store struct {
	mu      sync.Mutex
	tasks   []models.Task
	backend store.Store
	logger  *log.Logger
	newID   IDFunc
}

// New creates an empty store backed by backend.
func New(backend store.Store, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger.WithPrefix("tasks"),
		newID:   func() string { return xid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	payload, err := s.backend.Load(ctx, store.KeyTasks)
	if err != nil {
		s.logger.Error("failed to load tasks", "err", err)
		return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}

	var loaded []models.Task
	if payload != nil {
		if err := store.DecodeDocument(store.KeyTasks, payload, &loaded); err != nil {
			s.logger.Error("failed to decode tasks", "err", err)
			return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
		}
	}

	for i := range loaded {
		if loaded[i].Notified && loaded[i].Location == nil {
			s.logger.Warn("clearing notified flag on task without location", "task", loaded[i].ID)
			loaded[i].Notified = false
		}
	}

	s.mu.Lock()
	s.tasks = loaded
	s.mu.Unlock()

	s.logger.Debug("tasks loaded", "count", len(loaded))
	return nil
}

// Create adds a new open task named name.
func (s *Store) Create(ctx context.Context, name string) (models.Task, error) {
	if err := models.ValidateName(name); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := models.Task{
		ID:   s.newID(),
		Name: strings.TrimSpace(name),
	}
	s.tasks = append(s.tasks, task)

	return task.Clone(), s.persistLocked(ctx)
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return models.Task{}, false
}

// List returns copies of all tasks in insertion order.
func (s *Store) List() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// SetLocation overwrites the task's location and, when address is non-nil,
// its address. The notified latch is left alone.
func (s *Store) SetLocation(ctx context.Context, id string, location models.Coordinate, address *string) (models.Task, error) {
	if err := location.Validate(); err != nil {
		return models.Task{}, err
	}

	return s.update(ctx, id, func(t *models.Task) bool {
		loc := location
		t.Location = &loc
		if address != nil {
			addr := *address
			t.Address = &addr
		}
		return true
	})
}

// SetAddress stores an address resolved for expected, but only while the
// task is still pinned to expected. It reports whether the address was applied.
func (s *Store) SetAddress(ctx context.Context, id string, expected models.Coordinate, address string) (bool, error) {
	applied := false
	_, err := s.update(ctx, id, func(t *models.Task) bool {
		if t.Location == nil || *t.Location != expected {
			return false
		}
		addr := address
		t.Address = &addr
		applied = true
		return true
	})
	return applied, err
}

// SetDescription replaces the task's description. An empty text clears it.
func (s *Store) SetDescription(ctx context.Context, id, text string) (models.Task, error) {
	return s.update(ctx, id, func(t *models.Task) bool {
		t.Description = models.StringPtr(text)
		return true
	})
}

// ToggleCompleted flips the completed flag.
func (s *Store) ToggleCompleted(ctx context.Context, id string) (models.Task, error) {
	return s.update(ctx, id, func(t *models.Task) bool {
		t.Completed = !t.Completed
		return true
	})
}

// Delete removes the task.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)

	return s.persistLocked(ctx)
}

// ClearCompleted removes every completed task and returns how many went.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	removed := 0
	for _, t := range s.tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept

	if removed == 0 {
		return 0, nil
	}
	return removed, s.persistLocked(ctx)
}

// ApplyTransitions applies geofence transitions computed from an earlier
// snapshot. Each one is re-checked against the current task so that a task
// deleted, completed or already flipped in the meantime is left untouched.
// It returns copies of the tasks that entered their radius.
func (s *Store) ApplyTransitions(ctx context.Context, transitions []models.Transition) ([]models.Task, error) {
	if len(transitions) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entered []models.Task
	changed := false

	for _, tr := range transitions {
		i := s.indexLocked(tr.TaskID)
		if i < 0 {
			continue
		}
		t := &s.tasks[i]
		if !t.HasGeofence() {
			continue
		}

		switch tr.Kind {
		case models.Entered:
			if t.Notified {
				continue
			}
			t.Notified = true
			entered = append(entered, t.Clone())
		case models.Left:
			if !t.Notified {
				continue
			}
			t.Notified = false
		default:
			continue
		}
		changed = true
		s.logger.Debug("geofence transition", "task", t.ID, "kind", tr.Kind, "distance", tr.Distance)
	}

	if !changed {
		return entered, nil
	}
	return entered, s.persistLocked(ctx)
}

func (s *Store) update(ctx context.Context, id string, fn func(*models.Task) bool) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Task{}, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}

	if !fn(&s.tasks[i]) {
		return s.tasks[i].Clone(), nil
	}
	return s.tasks[i].Clone(), s.persistLocked(ctx)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked saves the full collection. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	tasks := s.tasks
	if tasks == nil {
		tasks = []models.Task{}
	}

	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("%w: encode tasks: %w", models.ErrPersistenceFailure, err)
	}

	if err := s.backend.Save(ctx, store.KeyTasks, payload); err != nil {
		s.logger.Error("failed to save tasks", "err", err, "count", len(tasks))
		return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}
	return nil
}
