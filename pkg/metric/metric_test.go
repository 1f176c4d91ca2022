package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricRecords(t *testing.T) {
	m := NewMetric(prometheus.NewRegistry(), nil, []float64{1, 5, 10}, nil, nil)

	m.AddFrame("cam", "ok")
	m.AddFrame("cam", "ok")
	m.AddCollisions("cam", 2)
	m.AddCollisions("cam", 0)
	m.SetTracked("cam", 3, 1)
	m.AddEventDelivery("file", false)
	m.AddProcessingTime("cam", 4.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("cam", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.collisions.WithLabelValues("cam")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.trackedEntities.WithLabelValues("cam", "pedestrian")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trackedEntities.WithLabelValues("cam", "vehicle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventDeliveries.WithLabelValues("file", "error")))
	assert.Equal(t, 4.5, testutil.ToFloat64(m.procTime.WithLabelValues("cam")))
}

func TestNilMetricIsNoop(t *testing.T) {
	var m *Metric
	assert.NotPanics(t, func() {
		m.AddFrame("cam", "ok")
		m.AddProcessingTime("cam", 1)
		m.SetTracked("cam", 1, 1)
		m.AddEventDelivery("file", true)
		m.AddSentDataBytes("observer", 10)
	})
}
