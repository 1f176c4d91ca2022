package observer

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MotionConfig holds the thresholds of the vehicle motion and pedestrian anomaly heuristics.
type MotionConfig struct {
	// Vehicle motion: samples Interval apart are compared MaxIter times,
	// moving when any axis changed by at least MinMovement.
	MinMovement int
	Interval    int
	MaxIter     int

	// Pedestrian anomalies over the last AnomalyWindow points.
	AnomalyWindow int
	MinAnomalies  int
	MinStep       float64 // steps shorter than this are jitter
	TurnAngle     float64 // degrees
	SpeedZScore   float64
}

func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		MinMovement:   20,
		Interval:      3,
		MaxIter:       3,
		AnomalyWindow: 5,
		MinAnomalies:  3,
		MinStep:       2,
		TurnAngle:     90,
		SpeedZScore:   1.5,
	}
}

// IsMoving compares the latest sample with the ones interval, 2*interval, ...
// samples back (at most maxIter comparisons) and reports whether any of them
// is at least minMovement away on either axis.
func IsMoving(points []Point, interval, maxIter, minMovement int) bool {
	n := len(points)
	if n < 2 || interval <= 0 {
		return false
	}
	if limit := maxIter*interval + 1; n > limit {
		points = points[n-limit:]
		n = limit
	}
	for i := 0; i < maxIter; i++ {
		newer := n - 1 - i*interval
		older := newer - interval
		if older < 0 {
			break
		}
		dx := abs(points[newer].X - points[older].X)
		dy := abs(points[newer].Y - points[older].Y)
		if dx >= minMovement || dy >= minMovement {
			return true
		}
	}
	return false
}

// CountAnomalies counts anomalous steps among the last cfg.AnomalyWindow points.
// A step is anomalous when it is longer than cfg.MinStep and either turns by at
// least cfg.TurnAngle against the previous (non-jitter) step, or its length is
// cfg.SpeedZScore standard deviations away from the mean step length of the window.
func CountAnomalies(points []Point, cfg MotionConfig) int {
	if cfg.AnomalyWindow > 0 && len(points) > cfg.AnomalyWindow {
		points = points[len(points)-cfg.AnomalyWindow:]
	}
	if len(points) < 2 {
		return 0
	}

	steps := make([]Point, len(points)-1)
	lengths := make([]float64, len(steps))
	for i := range steps {
		steps[i] = Point{X: points[i+1].X - points[i].X, Y: points[i+1].Y - points[i].Y}
		lengths[i] = math.Hypot(float64(steps[i].X), float64(steps[i].Y))
	}
	mean, std := stat.PopMeanStdDev(lengths, nil)
	turnCos := math.Cos(cfg.TurnAngle * math.Pi / 180)

	count := 0
	for i, s := range steps {
		if lengths[i] < cfg.MinStep {
			continue
		}
		if i > 0 && lengths[i-1] >= cfg.MinStep {
			prev := steps[i-1]
			dot := float64(prev.X*s.X + prev.Y*s.Y)
			if dot/(lengths[i-1]*lengths[i]) <= turnCos+1e-9 {
				count++
				continue
			}
		}
		if std > 0 && math.Abs(lengths[i]-mean)/std >= cfg.SpeedZScore {
			count++
		}
	}
	return count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
