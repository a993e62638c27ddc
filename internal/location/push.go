package location

import (
	"context"
	"sync"
	"time"

	"geotasks/internal/geo"
	"geotasks/internal/models"
)

type watcher struct {
	opts     Options
	fn       func(models.Coordinate)
	last     *models.Coordinate
	lastTime time.Time
}

// PushFeed is a Feed whose fixes are pushed in by the host device, for
// example over HTTP. It applies the interval and distance filters of each
// watch and hands every fix to pending one-shot requests.
type PushFeed struct {
	mu       sync.Mutex
	granted  bool
	watchers map[int]*watcher
	nextID   int
	waiters  []chan models.Coordinate
	now      func() time.Time
}

// NewPushFeed creates a feed. granted is the answer RequestPermission gives.
func NewPushFeed(granted bool) *PushFeed {
	return &PushFeed{
		granted:  granted,
		watchers: make(map[int]*watcher),
		now:      time.Now,
	}
}

// RequestPermission reports the configured permission.
func (p *PushFeed) RequestPermission(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, nil
}

// Watch registers fn until stop is called.
func (p *PushFeed) Watch(_ context.Context, opts Options, fn func(models.Coordinate)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.granted {
		return nil, models.ErrPermissionDenied
	}

	id := p.nextID
	p.nextID++
	p.watchers[id] = &watcher{opts: opts, fn: fn}

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}, nil
}

// CurrentPosition waits for the next pushed fix.
func (p *PushFeed) CurrentPosition(ctx context.Context) (models.Coordinate, error) {
	ch := make(chan models.Coordinate, 1)

	p.mu.Lock()
	if !p.granted {
		p.mu.Unlock()
		return models.Coordinate{}, models.ErrPermissionDenied
	}
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == ch {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		return models.Coordinate{}, ctx.Err()
	}
}

// Push feeds a fix from the device. It returns how many watches accepted it
// after filtering. Callbacks run on the caller's goroutine.
func (p *PushFeed) Push(c models.Coordinate) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	now := p.now()

	p.mu.Lock()
	if !p.granted {
		p.mu.Unlock()
		return 0, models.ErrPermissionDenied
	}

	var deliver []func(models.Coordinate)
	for _, w := range p.watchers {
		if w.last != nil {
			if now.Sub(w.lastTime) < w.opts.MinInterval {
				continue
			}
			if geo.DistanceMeters(*w.last, c) < w.opts.MinDistanceMeters {
				continue
			}
		}
		fix := c
		w.last = &fix
		w.lastTime = now
		deliver = append(deliver, w.fn)
	}

	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- c
	}
	for _, fn := range deliver {
		fn(c)
	}

	return len(deliver), nil
}
