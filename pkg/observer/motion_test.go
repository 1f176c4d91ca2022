package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func xs(values ...int) []Point {
	p := make([]Point, len(values))
	for i, x := range values {
		p[i] = Point{X: x, Y: 30}
	}
	return p
}

func TestIsMoving(t *testing.T) {
	cases := []struct {
		name   string
		points []Point
		want   bool
	}{
		{"no samples", nil, false},
		{"single sample", xs(0), false},
		{"shorter than a stride", xs(0, 30, 60), false},
		{"one stride at threshold", xs(0, 5, 10, 20), true},
		{"one stride below threshold", xs(0, 5, 10, 19), false},
		{"displacement in an older stride", xs(0, 0, 0, 30, 30, 30, 30), true},
		{"vertical displacement", []Point{{0, 0}, {0, 0}, {0, 0}, {0, 25}}, true},
		{"only beyond the look-back window", xs(100, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsMoving(tc.points, 3, 3, 20))
		})
	}
}

func TestCountAnomalies(t *testing.T) {
	cfg := DefaultMotionConfig()
	cases := []struct {
		name   string
		points []Point
		want   int
	}{
		{"empty", nil, 0},
		{"standing still", xs(5, 5, 5, 5, 5), 0},
		{"steady walk", xs(0, 5, 10, 15, 20), 0},
		{"zig-zag", xs(5, 15, 5, 15, 5), 3},
		{"single reversal", xs(0, 10, 20, 10, 0), 1},
		{"sudden jump", xs(0, 2, 4, 6, 26), 1},
		{"jitter is ignored", xs(5, 6, 5, 6, 5), 0},
		{"only the last window counts", xs(5, 15, 5, 15, 5, 10, 15, 20, 25), 0},
		{"right angle turn", []Point{{0, 0}, {10, 0}, {10, 10}}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CountAnomalies(tc.points, cfg))
		})
	}
}

func TestCountAnomaliesIsDeterministic(t *testing.T) {
	cfg := DefaultMotionConfig()
	points := []Point{{3, 4}, {40, 1}, {2, 30}, {9, 9}, {50, 50}}
	first := CountAnomalies(points, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CountAnomalies(points, cfg))
	}
}
