package models

import "time"

// TransitionKind is the direction of a geofence latch change.
type TransitionKind string

const (
	// Entered moves a task from armed to triggered and emits a notification.
	Entered TransitionKind = "entered"
	// Left re-arms a triggered task.
	Left TransitionKind = "left"
)

// Transition is a single latch change produced by the geofence evaluator.
type Transition struct {
	TaskID   string         `json:"task_id"`
	Kind     TransitionKind `json:"kind"`
	Distance float64        `json:"distance_meters"`
}

// Notification is the title/body/payload triple handed to the host surface.
type Notification struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"task_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}
