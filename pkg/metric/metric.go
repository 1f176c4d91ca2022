package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric records pipeline metrics. A nil *Metric records nothing, which keeps
// unit tests free of the global registry.
type Metric struct {
	mu sync.Mutex

	procTimeHistogram  *prometheus.HistogramVec
	procTime           *prometheus.GaugeVec
	frames             *prometheus.CounterVec
	trackedEntities    *prometheus.GaugeVec
	collisions         *prometheus.CounterVec
	dangerAlerts       *prometheus.CounterVec
	rejectedDetections *prometheus.CounterVec
	evictedTracks      *prometheus.CounterVec
	eventDeliveries    *prometheus.CounterVec

	sentDataBytesHistogram *prometheus.HistogramVec
	transitTimeHistogram   *prometheus.HistogramVec
	e2eTimeHistogram       *prometheus.HistogramVec
}

// NewMetric builds the collectors and registers them with reg.
// Nil bucket slices fall back to prometheus.DefBuckets.
func NewMetric(reg prometheus.Registerer, sentDataBuckets, procTimeBuckets, transitTimeBuckets, e2eTimeBuckets []float64) *Metric {
	if sentDataBuckets == nil {
		sentDataBuckets = prometheus.DefBuckets
	}
	if procTimeBuckets == nil {
		procTimeBuckets = prometheus.DefBuckets
	}
	if transitTimeBuckets == nil {
		transitTimeBuckets = prometheus.DefBuckets
	}
	if e2eTimeBuckets == nil {
		e2eTimeBuckets = prometheus.DefBuckets
	}

	m := &Metric{
		procTimeHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "processing_time_ms_histogram",
				Help:    "Histogram of frame processing times.",
				Buckets: procTimeBuckets,
			},
			[]string{"source"},
		),
		procTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "processing_time_ms",
				Help: "Gauge of the last frame processing time.",
			},
			[]string{"source"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frames_total",
				Help: "Frames handled, by result.",
			},
			[]string{"source", "result"},
		),
		trackedEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracked_entities",
				Help: "Tracks currently held in the registry.",
			},
			[]string{"source", "kind"},
		),
		collisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collisions_total",
				Help: "Pedestrian/vehicle collisions latched.",
			},
			[]string{"source"},
		),
		dangerAlerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "danger_alerts_total",
				Help: "Pedestrians that lingered in a danger zone.",
			},
			[]string{"source"},
		),
		rejectedDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rejected_detections_total",
				Help: "Detections dropped for malformed coordinates.",
			},
			[]string{"source"},
		),
		evictedTracks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evicted_tracks_total",
				Help: "Tracks evicted after too many unseen frames.",
			},
			[]string{"source"},
		),
		eventDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_deliveries_total",
				Help: "Accident event deliveries, by sink and result.",
			},
			[]string{"sink", "result"},
		),
		sentDataBytesHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sent_data_bytes_histogram",
				Help:    "Histogram of sent data bytes.",
				Buckets: sentDataBuckets,
			},
			[]string{"service"},
		),
		transitTimeHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transit_time_ms_histogram",
				Help:    "Histogram of transit times, excluding remote processing.",
				Buckets: transitTimeBuckets,
			},
			[]string{"service"},
		),
		e2eTimeHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "e2e_time_ms_histogram",
				Help:    "Histogram of end-to-end latencies, including remote processing.",
				Buckets: e2eTimeBuckets,
			},
			[]string{"service"},
		),
	}

	reg.MustRegister(
		m.procTimeHistogram,
		m.procTime,
		m.frames,
		m.trackedEntities,
		m.collisions,
		m.dangerAlerts,
		m.rejectedDetections,
		m.evictedTracks,
		m.eventDeliveries,
		m.sentDataBytesHistogram,
		m.transitTimeHistogram,
		m.e2eTimeHistogram,
	)
	return m
}

func (m *Metric) AddProcessingTime(source string, ms float64) {
	if m == nil {
		return
	}
	m.lock()
	defer m.unlock()
	m.procTimeHistogram.WithLabelValues(source).Observe(ms)
	m.procTime.WithLabelValues(source).Set(ms)
}

func (m *Metric) AddFrame(source, result string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(source, result).Inc()
}

func (m *Metric) SetTracked(source string, pedestrians, vehicles int) {
	if m == nil {
		return
	}
	m.lock()
	defer m.unlock()
	m.trackedEntities.WithLabelValues(source, "pedestrian").Set(float64(pedestrians))
	m.trackedEntities.WithLabelValues(source, "vehicle").Set(float64(vehicles))
}

func (m *Metric) AddCollisions(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.collisions.WithLabelValues(source).Add(float64(n))
}

func (m *Metric) AddDangerAlerts(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.dangerAlerts.WithLabelValues(source).Add(float64(n))
}

func (m *Metric) AddRejected(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejectedDetections.WithLabelValues(source).Add(float64(n))
}

func (m *Metric) AddEvicted(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictedTracks.WithLabelValues(source).Add(float64(n))
}

func (m *Metric) AddEventDelivery(sink string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventDeliveries.WithLabelValues(sink, result).Inc()
}

func (m *Metric) AddSentDataBytes(service string, bytes float64) {
	if m == nil {
		return
	}
	m.sentDataBytesHistogram.WithLabelValues(service).Observe(bytes)
}

func (m *Metric) AddTransitTime(service string, ms float64) {
	if m == nil {
		return
	}
	m.transitTimeHistogram.WithLabelValues(service).Observe(ms)
}

func (m *Metric) AddE2ETime(service string, ms float64) {
	if m == nil {
		return
	}
	m.e2eTimeHistogram.WithLabelValues(service).Observe(ms)
}

func (m *Metric) lock() {
	m.mu.Lock()
}

func (m *Metric) unlock() {
	m.mu.Unlock()
}
