// Package engine wires position updates into geofence evaluation, task
// mutation and notification dispatch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"geotasks/internal/favorites"
	"geotasks/internal/geocode"
	"geotasks/internal/geofence"
	"geotasks/internal/location"
	"geotasks/internal/models"
	"geotasks/internal/notify"
	"geotasks/internal/tasks"
)

// Config holds the engine's tunables.
type Config struct {
	ArrivalRadiusMeters float64
}

// Engine is the proximity-aware reminder engine.
type Engine struct {
	cfg        Config
	tasks      *tasks.Store
	favorites  *favorites.Registry
	tracker    *location.Tracker
	dispatcher *notify.Dispatcher
	resolver   *geocode.Resolver
	logger     *log.Logger

	// mu serializes evaluation with the store mutations it applies.
	mu sync.Mutex

	stateMu     sync.Mutex
	geofencing  bool
	unsubscribe func()
	done        chan struct{}
	bg          sync.WaitGroup

	// queue holds accepted fixes in arrival order until loop evaluates them.
	queueMu sync.Mutex
	queue   []models.Coordinate
	wake    chan struct{}
}

// New creates an engine. Call Start to begin tracking.
func New(
	cfg Config,
	store *tasks.Store,
	favs *favorites.Registry,
	tracker *location.Tracker,
	dispatcher *notify.Dispatcher,
	resolver *geocode.Resolver,
	logger *log.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		tasks:      store,
		favorites:  favs,
		tracker:    tracker,
		dispatcher: dispatcher,
		resolver:   resolver,
		logger:     logger.WithPrefix("engine"),
	}
}

// Tasks returns the task store.
func (e *Engine) Tasks() *tasks.Store { return e.tasks }

// Favorites returns the favorites registry.
func (e *Engine) Favorites() *favorites.Registry { return e.favorites }

// Tracker returns the location tracker.
func (e *Engine) Tracker() *location.Tracker { return e.tracker }

// Start hydrates tasks and favorites and starts the position watch. Load
// failures are logged and the engine continues with empty state. A denied
// location permission disables geofencing but is not an error.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.tasks.Load(ctx); err != nil {
		e.logger.Error("starting with empty task list", "err", err)
	}
	if err := e.favorites.Load(ctx); err != nil {
		e.logger.Error("starting with empty favorites", "err", err)
	}

	e.stateMu.Lock()
	if e.done != nil {
		e.stateMu.Unlock()
		return nil
	}
	// Fixes are queued so the feed never waits on evaluation or persistence.
	// Every fix is evaluated, in order.
	wake := make(chan struct{}, 1)
	e.queueMu.Lock()
	e.queue = nil
	e.wake = wake
	e.queueMu.Unlock()
	done := make(chan struct{})
	e.done = done
	e.unsubscribe = e.tracker.Subscribe(e.enqueue)
	e.stateMu.Unlock()

	e.bg.Add(1)
	go e.loop(done, wake)

	err := e.tracker.Start(ctx)
	switch {
	case errors.Is(err, models.ErrPermissionDenied):
		e.logger.Warn("geofencing disabled: location permission denied")
		return nil
	case err != nil:
		e.Stop()
		return fmt.Errorf("start tracker: %w", err)
	}

	e.stateMu.Lock()
	e.geofencing = true
	e.stateMu.Unlock()
	return nil
}

// Stop unsubscribes from the tracker, stops the watch and waits for
// in-flight address lookups and notifications.
func (e *Engine) Stop() {
	e.stateMu.Lock()
	unsubscribe, done := e.unsubscribe, e.done
	e.unsubscribe = nil
	e.done = nil
	e.geofencing = false
	e.stateMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.tracker.Stop()
	if done != nil {
		close(done)
	}

	e.bg.Wait()
	e.dispatcher.Wait()
}

// GeofencingEnabled reports whether position updates are being evaluated.
func (e *Engine) GeofencingEnabled() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.geofencing
}

func (e *Engine) enqueue(c models.Coordinate) {
	e.queueMu.Lock()
	e.queue = append(e.queue, c)
	wake := e.wake
	e.queueMu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(done <-chan struct{}, wake <-chan struct{}) {
	defer e.bg.Done()
	for {
		select {
		case <-done:
			return
		case <-wake:
		}

		for {
			e.queueMu.Lock()
			batch := e.queue
			e.queue = nil
			e.queueMu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, c := range batch {
				e.HandlePosition(context.Background(), c)
			}
		}
	}
}

// HandlePosition evaluates every task against position, applies the
// resulting transitions and dispatches one notification per arrival.
// It returns the notifications that were scheduled.
func (e *Engine) HandlePosition(ctx context.Context, position models.Coordinate) []models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	transitions := geofence.Evaluate(position, e.tasks.List(), e.cfg.ArrivalRadiusMeters)
	if len(transitions) == 0 {
		return nil
	}

	entered, err := e.tasks.ApplyTransitions(ctx, transitions)
	if err != nil {
		// The latch is already flipped in memory; the next save reconciles.
		e.logger.Error("failed to persist geofence transitions", "err", err)
	}

	sent := make([]models.Notification, 0, len(entered))
	for _, t := range entered {
		sent = append(sent, e.dispatcher.Notify(ctx, t))
	}
	return sent
}

// AssignLocation pins a task to location. The address is resolved in the
// background and applied only if the task is still pinned there.
func (e *Engine) AssignLocation(ctx context.Context, id string, location models.Coordinate) (models.Task, error) {
	task, err := e.setLocation(ctx, id, location, nil)
	if err != nil && !errors.Is(err, models.ErrPersistenceFailure) {
		return task, err
	}

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		e.resolveAddress(context.WithoutCancel(ctx), id, location)
	}()

	return task, err
}

// AssignFavorite copies the favorite at index onto a task.
func (e *Engine) AssignFavorite(ctx context.Context, id string, index int) (models.Task, error) {
	fav, err := e.favorites.Get(index)
	if err != nil {
		return models.Task{}, err
	}

	address := fav.Address
	if address == nil {
		address = &fav.Name
	}
	return e.setLocation(ctx, id, fav.Location, address)
}

// UseCurrentLocation takes a one-shot fix and assigns it to a task.
func (e *Engine) UseCurrentLocation(ctx context.Context, id string) (models.Task, error) {
	if _, ok := e.tasks.Get(id); !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}

	position, err := e.tracker.RequestOneShot(ctx)
	if err != nil {
		return models.Task{}, err
	}
	return e.AssignLocation(ctx, id, position)
}

// ResolveAddress runs address resolution for a coordinate without touching
// any task.
func (e *Engine) ResolveAddress(ctx context.Context, c models.Coordinate) (string, geocode.Source, error) {
	return e.resolver.Resolve(ctx, c)
}

func (e *Engine) setLocation(ctx context.Context, id string, location models.Coordinate, address *string) (models.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.SetLocation(ctx, id, location, address)
}

func (e *Engine) resolveAddress(ctx context.Context, id string, location models.Coordinate) {
	name, source, err := e.resolver.Resolve(ctx, location)
	if err != nil {
		e.logger.Warn("address resolution failed", "task", id, "err", err)
		return
	}
	if source == geocode.SourceNone {
		e.logger.Debug("no address found", "task", id, "location", location)
		return
	}

	e.mu.Lock()
	applied, err := e.tasks.SetAddress(ctx, id, location, name)
	e.mu.Unlock()

	switch {
	case errors.Is(err, models.ErrNotFound):
		e.logger.Debug("task deleted before its address resolved", "task", id)
	case err != nil:
		e.logger.Error("failed to store resolved address", "task", id, "err", err)
	case !applied:
		e.logger.Debug("discarding address for a moved task", "task", id)
	default:
		e.logger.Debug("address resolved", "task", id, "source", source, "address", name)
	}
}
