// Package notify turns geofence arrivals into host notifications.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"geotasks/internal/models"
)

// ArrivalTitle is the title of every proximity notification.
const ArrivalTitle = "You're close to a task location!"

// Notifier is the host notification surface.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n models.Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// Dispatcher fires one notification per arrival without waiting for
// delivery. Delivery errors are logged and dropped; nothing is retried.
type Dispatcher struct {
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher delivering through notifier.
func NewDispatcher(notifier Notifier, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   logger.WithPrefix("notify"),
		now:      time.Now,
	}
}

// Build returns the notification payload for an arrival at task.
func (d *Dispatcher) Build(task models.Task) models.Notification {
	return models.Notification{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Title:     ArrivalTitle,
		Body:      "Task: " + task.Name,
		Data:      map[string]string{"taskId": task.ID},
		CreatedAt: d.now(),
	}
}

// Notify schedules immediate delivery for task and returns the payload.
// The context only carries values; cancelling it does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, task models.Task) models.Notification {
	n := d.Build(task)
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed", "task", task.ID, "err", err)
			return
		}
		d.logger.Info("notification sent", "task", task.ID, "name", task.Name)
	}()

	return n
}

// Wait blocks until every scheduled delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

// Notify delivers n to every notifier.
func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// Notify logs n.
func (l LogNotifier) Notify(_ context.Context, n models.Notification) error {
	l.Logger.Info(n.Title, "body", n.Body, "task", n.TaskID, "id", n.ID)
	return nil
}
