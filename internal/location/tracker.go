// Package location wraps a device position feed behind a small
// subscription API.
package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"geotasks/internal/models"
)

// Options configures the continuous watch. Filtering is done by the feed.
type Options struct {
	Accuracy          string
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// DefaultOptions matches a foreground, high-accuracy watch.
func DefaultOptions() Options {
	return Options{
		Accuracy:          "high",
		MinInterval:       time.Second,
		MinDistanceMeters: 0.5,
	}
}

// Feed is the platform position source.
type Feed interface {
	// RequestPermission asks for foreground location access.
	RequestPermission(ctx context.Context) (bool, error)
	// Watch calls fn for every accepted fix until stop is called.
	Watch(ctx context.Context, opts Options, fn func(models.Coordinate)) (stop func(), err error)
	// CurrentPosition waits for a single fresh fix.
	CurrentPosition(ctx context.Context) (models.Coordinate, error)
}

type permission int

const (
	permissionUnknown permission = iota
	permissionGranted
	permissionDenied
)

type subscription struct {
	mu        sync.Mutex
	fn        func(models.Coordinate)
	cancelled bool
}

// Tracker remembers the latest fix and fans fixes out to subscribers.
type Tracker struct {
	feed   Feed
	opts   Options
	logger *log.Logger

	mu         sync.Mutex
	permission permission
	current    *models.Coordinate
	updatedAt  time.Time
	subs       map[int]*subscription
	nextID     int
	stopWatch  func()
}

// NewTracker creates a tracker over feed. Nothing happens until Start.
func NewTracker(feed Feed, opts Options, logger *log.Logger) *Tracker {
	return &Tracker{
		feed:   feed,
		opts:   opts,
		logger: logger.WithPrefix("location"),
		subs:   make(map[int]*subscription),
	}
}

// Start requests permission and begins the continuous watch. When permission
// is denied it returns models.ErrPermissionDenied and subscribers never fire.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.ensurePermission(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	if t.stopWatch != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	stop, err := t.feed.Watch(ctx, t.opts, t.accept)
	if err != nil {
		return fmt.Errorf("watch position: %w", err)
	}

	t.mu.Lock()
	t.stopWatch = stop
	t.mu.Unlock()

	t.logger.Info("position watch started", "interval", t.opts.MinInterval, "distance", t.opts.MinDistanceMeters)
	return nil
}

// Stop releases the underlying watch. It is safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	stop := t.stopWatch
	t.stopWatch = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
		t.logger.Info("position watch stopped")
	}
}

// Current returns the last known fix.
func (t *Tracker) Current() (models.Coordinate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return models.Coordinate{}, false
	}
	return *t.current, true
}

// UpdatedAt returns when the last fix arrived, zero before the first one.
func (t *Tracker) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

// Permitted reports whether location access was granted.
func (t *Tracker) Permitted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.permission == permissionGranted
}

// Subscribe registers fn for every accepted fix. Once the returned cancel
// func returns, fn is not running and will not be called again. fn must not
// call cancel itself.
func (t *Tracker) Subscribe(fn func(models.Coordinate)) (cancel func()) {
	sub := &subscription{fn: fn}

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = sub
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()

			sub.mu.Lock()
			sub.cancelled = true
			sub.mu.Unlock()
		})
	}
}

// RequestOneShot waits for a single fresh fix, independent of the watch.
func (t *Tracker) RequestOneShot(ctx context.Context) (models.Coordinate, error) {
	if err := t.ensurePermission(ctx); err != nil {
		return models.Coordinate{}, err
	}

	c, err := t.feed.CurrentPosition(ctx)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("current position: %w", err)
	}

	t.mu.Lock()
	t.current = &c
	t.updatedAt = time.Now()
	t.mu.Unlock()

	return c, nil
}

func (t *Tracker) ensurePermission(ctx context.Context) error {
	t.mu.Lock()
	state := t.permission
	t.mu.Unlock()

	switch state {
	case permissionGranted:
		return nil
	case permissionDenied:
		return models.ErrPermissionDenied
	}

	granted, err := t.feed.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}

	t.mu.Lock()
	if granted {
		t.permission = permissionGranted
	} else {
		t.permission = permissionDenied
	}
	t.mu.Unlock()

	if !granted {
		t.logger.Warn("permission to access location was denied")
		return models.ErrPermissionDenied
	}
	return nil
}

func (t *Tracker) accept(c models.Coordinate) {
	t.mu.Lock()
	t.current = &c
	t.updatedAt = time.Now()
	subs := make([]*subscription, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		if !s.cancelled {
			s.fn(c)
		}
		s.mu.Unlock()
	}
}
