package observer

import "fmt"

// Zone is a danger polygon in frame coordinates. It is immutable once built.
type Zone struct {
	vertices []Point
}

// NewZone copies vertices into a zone. A polygon needs at least three vertices.
func NewZone(vertices []Point) (Zone, error) {
	if len(vertices) < 3 {
		return Zone{}, fmt.Errorf("%w: zone needs at least 3 vertices, got %d", ErrInvalidConfig, len(vertices))
	}
	v := make([]Point, len(vertices))
	copy(v, vertices)
	return Zone{vertices: v}, nil
}

// Vertices returns a copy of the polygon vertices.
func (z Zone) Vertices() []Point {
	v := make([]Point, len(z.vertices))
	copy(v, z.vertices)
	return v
}

// Contains reports whether p lies inside the polygon or on its boundary.
func (z Zone) Contains(p Point) bool {
	n := len(z.vertices)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := z.vertices[i], z.vertices[j]
		if onSegment(p, a, b) {
			return true
		}
		// ray casting towards +x
		if (a.Y > p.Y) != (b.Y > p.Y) {
			// x of the edge at height p.Y, compared without division
			lhs := (p.X - a.X) * (b.Y - a.Y)
			rhs := (b.X - a.X) * (p.Y - a.Y)
			if b.Y-a.Y > 0 {
				if lhs < rhs {
					inside = !inside
				}
			} else if lhs > rhs {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(p, a, b Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if cross != 0 {
		return false
	}
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// InAnyZone reports whether p is inside at least one zone. It is false for no zones.
func InAnyZone(p Point, zones []Zone) bool {
	for _, z := range zones {
		if z.Contains(p) {
			return true
		}
	}
	return false
}
