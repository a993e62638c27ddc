package models

import (
	"fmt"
	"math"
	"strings"
)

// NoLocationLabel is shown for tasks without a resolved address.
const NoLocationLabel = "No location set"

// Coordinate is a WGS 84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that both components are finite and inside their ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v must be within [-90, 90]", ErrInvalidArgument, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v must be within [-180, 180]", ErrInvalidArgument, c.Longitude)
	}
	return nil
}

// String formats the coordinate with four decimals.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Latitude, c.Longitude)
}

// Task is a to-do item, optionally pinned to a place.
type Task struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Completed   bool        `json:"completed"`
	Location    *Coordinate `json:"location"`
	Address     *string     `json:"address"`
	Notified    bool        `json:"notified"` // geofence latch, owned by the evaluator
	Description *string     `json:"description"`
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if err := ValidateName(t.Name); err != nil {
		return err
	}

	if t.Location != nil {
		if err := t.Location.Validate(); err != nil {
			return err
		}
	}

	if t.Notified && t.Location == nil {
		return fmt.Errorf("%w: notified task %s has no location", ErrInvalidArgument, t.ID)
	}

	return nil
}

// HasGeofence reports whether the task takes part in proximity checks.
func (t *Task) HasGeofence() bool {
	return t.Location != nil && !t.Completed
}

// Clone returns a deep copy so callers never alias the owner's pointers.
func (t Task) Clone() Task {
	if t.Location != nil {
		loc := *t.Location
		t.Location = &loc
	}
	if t.Address != nil {
		addr := *t.Address
		t.Address = &addr
	}
	if t.Description != nil {
		desc := *t.Description
		t.Description = &desc
	}
	return t
}

// DisplayLocation returns the label a task list shows for the task: the name
// of a favorite with the same address, the address itself, or NoLocationLabel.
func (t *Task) DisplayLocation(favorites []FavoriteLocation) string {
	if t.Address == nil || *t.Address == "" {
		return NoLocationLabel
	}
	for _, f := range favorites {
		if f.Address != nil && *f.Address == *t.Address {
			return f.Name
		}
	}
	return *t.Address
}

// ValidateName rejects names that are empty after trimming whitespace.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	return nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
