package observer

import "fmt"

// LatchState is the collision latch of a pedestrian track.
// Flagged is terminal for the lifetime of the track.
type LatchState int

const (
	Unflagged LatchState = iota
	Flagged
)

func (s LatchState) String() string {
	if s == Flagged {
		return "flagged"
	}
	return "unflagged"
}

func (s LatchState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LatchState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "flagged":
		*s = Flagged
	case "unflagged", "":
		*s = Unflagged
	default:
		return fmt.Errorf("unknown latch state %q", b)
	}
	return nil
}

// TrackedPedestrian is the history of one person track.
// Points, LeftPoints and RightPoints always have the same length.
type TrackedPedestrian struct {
	Points       []Point
	LeftPoints   []Point
	RightPoints  []Point
	DangerStreak int
	Latch        LatchState
	FramesUnseen int
}

func (p *TrackedPedestrian) observe(b Box) {
	p.FramesUnseen = 0
	p.Points = append(p.Points, b.BottomCenter())
	p.LeftPoints = append(p.LeftPoints, b.BottomLeft())
	p.RightPoints = append(p.RightPoints, b.BottomRight())
}

// Last returns the most recent bottom-centre point.
func (p *TrackedPedestrian) Last() Point { return p.Points[len(p.Points)-1] }

// LastLeft returns the most recent bottom-left corner.
func (p *TrackedPedestrian) LastLeft() Point { return p.LeftPoints[len(p.LeftPoints)-1] }

// TrackedVehicle keeps the last known box and the centre history of one vehicle track.
type TrackedVehicle struct {
	Box          Box
	Points       []Point
	FramesUnseen int
}

func (v *TrackedVehicle) observe(b Box) {
	v.FramesUnseen = 0
	v.Points = append(v.Points, b.Center())
	v.Box = b
}

// Registry holds the tracks of one video source. Iteration follows the order
// in which ids were first seen, so collision matching is deterministic.
type Registry struct {
	pedestrians map[int]*TrackedPedestrian
	vehicles    map[int]*TrackedVehicle

	pedestrianOrder []int
	vehicleOrder    []int
}

func NewRegistry() *Registry {
	return &Registry{
		pedestrians: make(map[int]*TrackedPedestrian),
		vehicles:    make(map[int]*TrackedVehicle),
	}
}

func (r *Registry) pedestrian(id int) *TrackedPedestrian {
	p, ok := r.pedestrians[id]
	if !ok {
		p = &TrackedPedestrian{}
		r.pedestrians[id] = p
		r.pedestrianOrder = append(r.pedestrianOrder, id)
	}
	return p
}

func (r *Registry) vehicle(id int) *TrackedVehicle {
	v, ok := r.vehicles[id]
	if !ok {
		v = &TrackedVehicle{}
		r.vehicles[id] = v
		r.vehicleOrder = append(r.vehicleOrder, id)
	}
	return v
}

// Pedestrian returns the track with the given id, if present.
func (r *Registry) Pedestrian(id int) (*TrackedPedestrian, bool) {
	p, ok := r.pedestrians[id]
	return p, ok
}

// Vehicle returns the track with the given id, if present.
func (r *Registry) Vehicle(id int) (*TrackedVehicle, bool) {
	v, ok := r.vehicles[id]
	return v, ok
}

func (r *Registry) PedestrianCount() int { return len(r.pedestrians) }
func (r *Registry) VehicleCount() int    { return len(r.vehicles) }

// EachVehicle calls fn for every vehicle in first-seen order until fn returns false.
func (r *Registry) EachVehicle(fn func(id int, v *TrackedVehicle) bool) {
	for _, id := range r.vehicleOrder {
		if !fn(id, r.vehicles[id]) {
			return
		}
	}
}

// EachPedestrian calls fn for every pedestrian in first-seen order until fn returns false.
func (r *Registry) EachPedestrian(fn func(id int, p *TrackedPedestrian) bool) {
	for _, id := range r.pedestrianOrder {
		if !fn(id, r.pedestrians[id]) {
			return
		}
	}
}

// age increments FramesUnseen of every track absent from seen and drops the
// ones that reached buffer. It returns the evicted ids per class.
func (r *Registry) age(seenPedestrians, seenVehicles map[int]struct{}, buffer int) (evictedPedestrians, evictedVehicles []int) {
	kept := r.pedestrianOrder[:0]
	for _, id := range r.pedestrianOrder {
		p := r.pedestrians[id]
		if _, ok := seenPedestrians[id]; !ok {
			p.FramesUnseen++
		}
		if p.FramesUnseen >= buffer {
			delete(r.pedestrians, id)
			evictedPedestrians = append(evictedPedestrians, id)
			continue
		}
		kept = append(kept, id)
	}
	r.pedestrianOrder = kept

	keptVehicles := r.vehicleOrder[:0]
	for _, id := range r.vehicleOrder {
		v := r.vehicles[id]
		if _, ok := seenVehicles[id]; !ok {
			v.FramesUnseen++
		}
		if v.FramesUnseen >= buffer {
			delete(r.vehicles, id)
			evictedVehicles = append(evictedVehicles, id)
			continue
		}
		keptVehicles = append(keptVehicles, id)
	}
	r.vehicleOrder = keptVehicles
	return evictedPedestrians, evictedVehicles
}
