package event

import (
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/observer"

	"github.com/google/uuid"
)

// Kind names what an Event reports.
type Kind string

const (
	KindCollision  Kind = "collision"
	KindDangerZone Kind = "danger_zone"
)

// Event is an accident notification produced while observing a source.
type Event struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	SourceID     string    `json:"source_id"`
	FrameID      int64     `json:"frame_id"`
	PedestrianID int       `json:"pedestrian_id"`
	VehicleID    int       `json:"vehicle_id,omitempty"`
	X            int       `json:"x"`
	Y            int       `json:"y"`
	DangerStreak int       `json:"danger_streak,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// FromFrame turns the collisions and danger alerts of a step into events.
func FromFrame(sourceID string, f *observer.Frame, at time.Time) []*Event {
	var events []*Event
	for _, c := range f.Collisions {
		events = append(events, &Event{
			ID:           uuid.NewString(),
			Kind:         KindCollision,
			SourceID:     sourceID,
			FrameID:      f.FrameID,
			PedestrianID: c.PedestrianID,
			VehicleID:    c.VehicleID,
			X:            c.Point.X,
			Y:            c.Point.Y,
			Timestamp:    at,
		})
	}
	for _, a := range f.Alerts {
		events = append(events, &Event{
			ID:           uuid.NewString(),
			Kind:         KindDangerZone,
			SourceID:     sourceID,
			FrameID:      f.FrameID,
			PedestrianID: a.PedestrianID,
			X:            a.Point.X,
			Y:            a.Point.Y,
			DangerStreak: a.Streak,
			Timestamp:    at,
		})
	}
	return events
}
