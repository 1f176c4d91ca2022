package internal

import (
	mt "github.com/etesami/traffic-accident-observer/pkg/metric"
)

func addSentDataBytes(l string, m *mt.Metric, sentDataBytes float64) {
	m.AddSentDataBytes(l, sentDataBytes)
}

// E2E Latency (ms) is similar to transit time (ms) but includes the time taken
// to process the frame in the remote service
func addE2ELatency(l string, m *mt.Metric, elapsedMs float64) {
	m.AddE2ETime(l, elapsedMs)
}

// Transit time (ms) include the time taken to send the frame
// to the remote service and receive the response, not including
// the processing time in the remote service.
func addTransitTime(l string, m *mt.Metric, elapsedMs float64) {
	m.AddTransitTime(l, elapsedMs)
}

// Frames are counted as "sent", "skipped" (no connection) or "failed".
func increaseFrames(l string, m *mt.Metric, result string) {
	m.AddFrame(l, result)
}
