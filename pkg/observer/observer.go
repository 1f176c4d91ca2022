package observer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is wrapped by configuration errors.
var ErrInvalidConfig = errors.New("invalid observer config")

// Config is the static configuration of an Observer.
type Config struct {
	// TrackBuffer is the number of consecutive unseen frames after which a track is evicted.
	TrackBuffer    int
	Zones          []Zone
	VehicleClasses []string
	Motion         MotionConfig
	// DangerAlertFrames raises a DangerAlert when a pedestrian's zone streak reaches it. Zero disables alerts.
	DangerAlertFrames int
}

// DefaultConfig returns the defaults for everything but TrackBuffer, which has to be set.
func DefaultConfig() Config {
	return Config{
		VehicleClasses:    append([]string(nil), DefaultVehicleClasses...),
		Motion:            DefaultMotionConfig(),
		DangerAlertFrames: 3,
	}
}

func (c Config) Validate() error {
	if c.TrackBuffer <= 0 {
		return fmt.Errorf("%w: track_buffer must be positive, got %d", ErrInvalidConfig, c.TrackBuffer)
	}
	for i, z := range c.Zones {
		if len(z.vertices) < 3 {
			return fmt.Errorf("%w: zone %d has %d vertices", ErrInvalidConfig, i, len(z.vertices))
		}
	}
	for _, name := range c.VehicleClasses {
		if strings.TrimSpace(name) == "" || name == PersonClass {
			return fmt.Errorf("%w: invalid vehicle class %q", ErrInvalidConfig, name)
		}
	}
	m := c.Motion
	if m.Interval <= 0 || m.MaxIter <= 0 || m.MinMovement <= 0 {
		return fmt.Errorf("%w: motion interval, max_iter and min_movement must be positive", ErrInvalidConfig)
	}
	if m.AnomalyWindow < 2 || m.MinAnomalies <= 0 {
		return fmt.Errorf("%w: anomaly_window must be at least 2 and min_anomalies positive", ErrInvalidConfig)
	}
	if m.MinStep < 0 || m.TurnAngle <= 0 || m.TurnAngle > 180 || m.SpeedZScore <= 0 {
		return fmt.Errorf("%w: min_step, turn_angle or speed_zscore out of range", ErrInvalidConfig)
	}
	if c.DangerAlertFrames < 0 {
		return fmt.Errorf("%w: danger_alert_frames must not be negative", ErrInvalidConfig)
	}
	return nil
}

// FrameInput is the detection batch of one frame.
type FrameInput struct {
	FrameID    int64
	Detections []Detection
}

// Collision is a collision latched during a step.
type Collision struct {
	PedestrianID int
	VehicleID    int
	Point        Point
}

// DangerAlert is raised once per zone visit, when the streak reaches DangerAlertFrames.
type DangerAlert struct {
	PedestrianID int
	Point        Point
	Streak       int
}

// Rejection is a detection dropped by validation.
type Rejection struct {
	Detection Detection
	Err       error
}

// Frame is the output of one step. The views share history storage with the
// registry and must be treated as read-only.
type Frame struct {
	FrameID     int64
	Pedestrians map[int]PedestrianView
	Vehicles    map[int]VehicleView
	Collisions  []Collision
	Alerts      []DangerAlert
	Rejected    []Rejection
	Evicted     int
}

// PedestrianView is a read-only copy of a TrackedPedestrian at the end of a step.
type PedestrianView struct {
	Points       []Point    `json:"points"`
	LeftPoints   []Point    `json:"left_points"`
	RightPoints  []Point    `json:"right_points"`
	DangerStreak int        `json:"danger_streak"`
	Latch        LatchState `json:"latch"`
	FramesUnseen int        `json:"frames_unseen"`
}

func (v PedestrianView) Collided() bool { return v.Latch == Flagged }

// VehicleView is a read-only copy of a TrackedVehicle at the end of a step.
type VehicleView struct {
	Box          Box     `json:"box"`
	Points       []Point `json:"points"`
	FramesUnseen int     `json:"frames_unseen"`
}

// Observer correlates detections into tracks and flags pedestrian/vehicle
// collisions. It is not safe for concurrent use; frames must be stepped in order.
type Observer struct {
	cfg      Config
	classes  classifier
	registry *Registry
}

func New(cfg Config) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Observer{
		cfg:      cfg,
		classes:  newClassifier(cfg.VehicleClasses),
		registry: NewRegistry(),
	}, nil
}

// Config returns the configuration the observer was built with.
func (o *Observer) Config() Config { return o.cfg }

// Registry exposes the live registry for inspection. Callers must not mutate it.
func (o *Observer) Registry() *Registry { return o.registry }

// Step ingests one frame, evaluates collisions, ages out stale tracks and
// returns a snapshot of the registry.
func (o *Observer) Step(in FrameInput) *Frame {
	out := &Frame{FrameID: in.FrameID}
	seenPedestrians := make(map[int]struct{})
	seenVehicles := make(map[int]struct{})

	for _, d := range in.Detections {
		kind := o.classes.kind(d.Class)
		if kind == KindIgnored {
			continue
		}
		if err := d.Validate(); err != nil {
			out.Rejected = append(out.Rejected, Rejection{Detection: d, Err: err})
			continue
		}

		switch kind {
		case KindPedestrian:
			seenPedestrians[d.TrackID] = struct{}{}
			o.updatePedestrian(d, out)
		case KindVehicle:
			seenVehicles[d.TrackID] = struct{}{}
			o.registry.vehicle(d.TrackID).observe(d.Box)
		}
	}

	evictedPedestrians, evictedVehicles := o.registry.age(seenPedestrians, seenVehicles, o.cfg.TrackBuffer)
	out.Evicted = len(evictedPedestrians) + len(evictedVehicles)

	out.Pedestrians = make(map[int]PedestrianView, o.registry.PedestrianCount())
	o.registry.EachPedestrian(func(id int, p *TrackedPedestrian) bool {
		out.Pedestrians[id] = PedestrianView{
			Points:       capped(p.Points),
			LeftPoints:   capped(p.LeftPoints),
			RightPoints:  capped(p.RightPoints),
			DangerStreak: p.DangerStreak,
			Latch:        p.Latch,
			FramesUnseen: p.FramesUnseen,
		}
		return true
	})
	out.Vehicles = make(map[int]VehicleView, o.registry.VehicleCount())
	o.registry.EachVehicle(func(id int, v *TrackedVehicle) bool {
		out.Vehicles[id] = VehicleView{
			Box:          v.Box,
			Points:       capped(v.Points),
			FramesUnseen: v.FramesUnseen,
		}
		return true
	})
	return out
}

func (o *Observer) updatePedestrian(d Detection, out *Frame) {
	p := o.registry.pedestrian(d.TrackID)
	p.observe(d.Box)
	point := p.Last()

	if InAnyZone(point, o.cfg.Zones) {
		p.DangerStreak++
		if o.cfg.DangerAlertFrames > 0 && p.DangerStreak == o.cfg.DangerAlertFrames {
			out.Alerts = append(out.Alerts, DangerAlert{PedestrianID: d.TrackID, Point: point, Streak: p.DangerStreak})
		}
	} else {
		p.DangerStreak = 0
	}

	if p.Latch == Flagged {
		return
	}
	if vehicleID, hit := DetectCollision(o.registry, p, o.cfg.Motion); hit {
		p.Latch = Flagged
		out.Collisions = append(out.Collisions, Collision{PedestrianID: d.TrackID, VehicleID: vehicleID, Point: point})
	}
}

// capped limits capacity to length so appends by a reader never reach registry storage.
func capped(p []Point) []Point {
	return p[:len(p):len(p)]
}
