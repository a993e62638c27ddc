// Package geofence decides when a task's proximity latch flips.
//
// Each task with a location is a two-state machine: armed (notified=false)
// and triggered (notified=true). A fix strictly inside the radius moves an
// armed task to triggered, and a fix strictly outside moves a triggered task
// back to armed. A fix exactly on the boundary changes nothing, so a position
// hovering at the radius cannot oscillate. Completed tasks are skipped and
// keep whatever latch value they had.
package geofence

import (
	"geotasks/internal/geo"
	"geotasks/internal/models"
)

// Evaluate returns the transitions implied by position for tasks, in task
// order. It does not modify tasks.
func Evaluate(position models.Coordinate, tasks []models.Task, radius float64) []models.Transition {
	var transitions []models.Transition

	for i := range tasks {
		t := &tasks[i]
		if !t.HasGeofence() {
			continue
		}

		d := geo.DistanceMeters(position, *t.Location)
		switch {
		case d < radius && !t.Notified:
			transitions = append(transitions, models.Transition{TaskID: t.ID, Kind: models.Entered, Distance: d})
		case d > radius && t.Notified:
			transitions = append(transitions, models.Transition{TaskID: t.ID, Kind: models.Left, Distance: d})
		}
	}

	return transitions
}
