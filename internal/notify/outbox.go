package notify

import (
	"context"
	"sync"

	"geotasks/internal/models"
)

// Outbox keeps the most recent notifications in memory, oldest first.
type Outbox struct {
	mu    sync.Mutex
	limit int
	items []models.Notification
}

// NewOutbox creates an outbox holding at most limit notifications.
func NewOutbox(limit int) *Outbox {
	if limit <= 0 {
		limit = 1
	}
	return &Outbox{limit: limit}
}

// Notify records n, evicting the oldest entry when full.
func (o *Outbox) Notify(_ context.Context, n models.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.items = append(o.items, n)
	if over := len(o.items) - o.limit; over > 0 {
		o.items = append([]models.Notification(nil), o.items[over:]...)
	}
	return nil
}

// List returns a copy of the recorded notifications.
func (o *Outbox) List() []models.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.Notification, len(o.items))
	copy(out, o.items)
	return out
}

// Len returns the number of recorded notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
