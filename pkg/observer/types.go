package observer

import (
	"errors"
	"fmt"
)

// ErrMalformedDetection is wrapped by every error returned from Detection.Validate.
var ErrMalformedDetection = errors.New("malformed detection")

// Point is an integer pixel position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Box is an axis-aligned bounding box.
// The (X1, Y1) position is at the top left corner,
// the (X2, Y2) position is at the bottom right corner.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Contains reports whether p lies inside b, edges included.
func (b Box) Contains(p Point) bool {
	return b.X1 <= p.X && p.X <= b.X2 && b.Y1 <= p.Y && p.Y <= b.Y2
}

// BottomCenter returns the point where a standing object touches the ground.
func (b Box) BottomCenter() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: b.Y2}
}

func (b Box) BottomLeft() Point  { return Point{X: b.X1, Y: b.Y2} }
func (b Box) BottomRight() Point { return Point{X: b.X2, Y: b.Y2} }

func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Detection is one box reported by the upstream detector/tracker for a frame.
type Detection struct {
	TrackID    int
	Box        Box
	Class      string
	Confidence float64
}

// Validate rejects coordinates that would corrupt track history.
func (d Detection) Validate() error {
	b := d.Box
	if b.X1 < 0 || b.Y1 < 0 || b.X2 < 0 || b.Y2 < 0 {
		return fmt.Errorf("%w: track [%d] has negative coordinates %v", ErrMalformedDetection, d.TrackID, b)
	}
	if b.X1 > b.X2 || b.Y1 > b.Y2 {
		return fmt.Errorf("%w: track [%d] has inverted box %v", ErrMalformedDetection, d.TrackID, b)
	}
	return nil
}

// ClassKind is the closed set of categories the observer distinguishes.
type ClassKind int

const (
	KindIgnored ClassKind = iota
	KindPedestrian
	KindVehicle
)

func (k ClassKind) String() string {
	switch k {
	case KindPedestrian:
		return "pedestrian"
	case KindVehicle:
		return "vehicle"
	default:
		return "ignored"
	}
}

// PersonClass is the detector label tracked as a pedestrian.
const PersonClass = "person"

// DefaultVehicleClasses are the detector labels tracked as vehicles.
var DefaultVehicleClasses = []string{"car", "bus", "truck", "train"}

// classifier maps detector labels onto a ClassKind once, at configuration time.
type classifier map[string]ClassKind

func newClassifier(vehicleClasses []string) classifier {
	c := classifier{PersonClass: KindPedestrian}
	for _, name := range vehicleClasses {
		c[name] = KindVehicle
	}
	return c
}

func (c classifier) kind(class string) ClassKind {
	if k, ok := c[class]; ok {
		return k
	}
	return KindIgnored
}
