package internal

import (
	"time"

	mt "github.com/etesami/traffic-accident-observer/pkg/metric"
	"github.com/etesami/traffic-accident-observer/pkg/observer"
)

// Processing time covers the whole handler: conversion, step, events and rendering.
func addProcessingTime(m *mt.Metric, sourceID string, stTime time.Time) {
	elapsed := float64(time.Since(stTime).Microseconds()) / 1000.0
	m.AddProcessingTime(sourceID, elapsed)
}

// Frames are counted as "processed", "out_of_order" or "invalid".
func increaseFrames(m *mt.Metric, sourceID, result string) {
	m.AddFrame(sourceID, result)
}

func recordStep(m *mt.Metric, sourceID string, f *observer.Frame) {
	m.SetTracked(sourceID, len(f.Pedestrians), len(f.Vehicles))
	m.AddCollisions(sourceID, len(f.Collisions))
	m.AddDangerAlerts(sourceID, len(f.Alerts))
	m.AddRejected(sourceID, len(f.Rejected))
	m.AddEvicted(sourceID, f.Evicted)
}
