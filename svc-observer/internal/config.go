package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/event"
	"github.com/etesami/traffic-accident-observer/pkg/observer"

	"gopkg.in/yaml.v3"
)

// Config is the observer service configuration file.
type Config struct {
	Detection   DetectionConfig   `yaml:"detection"`
	SourceInfo  SourceInfoConfig  `yaml:"source_info"`
	Motion      MotionConfig      `yaml:"motion"`
	Render      RenderConfig      `yaml:"render"`
	VideoWriter VideoWriterConfig `yaml:"video_writer"`
	Events      EventsConfig      `yaml:"events"`
}

type DetectionConfig struct {
	TrackBuffer       int      `yaml:"track_buffer"`
	VehicleClasses    []string `yaml:"vehicle_classes"`
	DangerAlertFrames *int     `yaml:"danger_alert_frames"` // 0 disables danger alerts
}

type SourceInfoConfig struct {
	// TrafficROI lists the danger zones, each a polygon of [x, y] vertices.
	TrafficROI [][][2]int `yaml:"traffic_roi"`
}

type MotionConfig struct {
	MinMovement   int     `yaml:"min_movement"`
	Interval      int     `yaml:"interval"`
	MaxIter       int     `yaml:"max_iter"`
	AnomalyWindow int     `yaml:"anomaly_window"`
	MinAnomalies  int     `yaml:"min_anomalies"`
	MinStep       float64 `yaml:"min_step"`
	TurnAngle     float64 `yaml:"turn_angle"`
	SpeedZScore   float64 `yaml:"speed_zscore"`
}

type RenderConfig struct {
	DrawROI            bool   `yaml:"draw_roi"`
	DrawPersonWay      bool   `yaml:"draw_person_way"`
	SaveImage          bool   `yaml:"save_image"`
	SaveImagePath      string `yaml:"save_image_path"`
	SaveImageFrequency int    `yaml:"save_image_frequency"`
}

type VideoWriterConfig struct {
	Write          bool    `yaml:"write"`
	OutputPath     string  `yaml:"output_path"`
	FPS            float64 `yaml:"fps"`
	FourCC         string  `yaml:"fourcc"`
	SkipFrames     int     `yaml:"skip_frames"`
	SegmentSeconds float64 `yaml:"segment_seconds"`
}

type EventsConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	Workers         int           `yaml:"workers"`
	DeliverTimeout  time.Duration `yaml:"deliver_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Sinks; an empty value disables the sink.
	FilePath       string            `yaml:"file_path"`
	WebhookURL     string            `yaml:"webhook_url"`
	WebhookHeaders map[string]string `yaml:"webhook_headers"`
	SQLitePath     string            `yaml:"sqlite_path"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if len(cfg.Detection.VehicleClasses) == 0 {
		cfg.Detection.VehicleClasses = append([]string(nil), observer.DefaultVehicleClasses...)
	}
	if cfg.Detection.DangerAlertFrames == nil {
		n := observer.DefaultConfig().DangerAlertFrames
		cfg.Detection.DangerAlertFrames = &n
	}

	def := observer.DefaultMotionConfig()
	m := &cfg.Motion
	if m.MinMovement == 0 {
		m.MinMovement = def.MinMovement
	}
	if m.Interval == 0 {
		m.Interval = def.Interval
	}
	if m.MaxIter == 0 {
		m.MaxIter = def.MaxIter
	}
	if m.AnomalyWindow == 0 {
		m.AnomalyWindow = def.AnomalyWindow
	}
	if m.MinAnomalies == 0 {
		m.MinAnomalies = def.MinAnomalies
	}
	if m.MinStep == 0 {
		m.MinStep = def.MinStep
	}
	if m.TurnAngle == 0 {
		m.TurnAngle = def.TurnAngle
	}
	if m.SpeedZScore == 0 {
		m.SpeedZScore = def.SpeedZScore
	}

	if cfg.Render.SaveImageFrequency == 0 {
		cfg.Render.SaveImageFrequency = 10
	}

	vw := &cfg.VideoWriter
	if vw.FPS == 0 {
		vw.FPS = 25
	}
	if vw.FourCC == "" {
		vw.FourCC = "XVID"
	}
	if vw.SkipFrames == 0 {
		vw.SkipFrames = 1
	}
	if vw.SegmentSeconds == 0 {
		vw.SegmentSeconds = 300
	}

	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = 256
	}
	if cfg.Events.Workers == 0 {
		cfg.Events.Workers = 2
	}
	if cfg.Events.DeliverTimeout == 0 {
		cfg.Events.DeliverTimeout = 5 * time.Second
	}
	if cfg.Events.ShutdownTimeout == 0 {
		cfg.Events.ShutdownTimeout = 2 * time.Second
	}
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("TRACK_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRACK_BUFFER: %w", err)
		}
		c.Detection.TrackBuffer = n
	}
	if v := getenv("EVENTS_SQLITE_PATH"); v != "" {
		c.Events.SQLitePath = v
	}
	if v := getenv("EVENTS_WEBHOOK_URL"); v != "" {
		c.Events.WebhookURL = v
	}
	return nil
}

// Validate checks the parts of the config that are not covered by the observer itself.
func (c *Config) Validate() error {
	if _, err := c.ObserverConfig(); err != nil {
		return err
	}
	if c.Render.SaveImage && c.Render.SaveImagePath == "" {
		return fmt.Errorf("render.save_image_path is required when save_image is set")
	}
	if c.VideoWriter.Write && c.VideoWriter.OutputPath == "" {
		return fmt.Errorf("video_writer.output_path is required when write is set")
	}
	if len(c.VideoWriter.FourCC) != 4 {
		return fmt.Errorf("video_writer.fourcc must have 4 characters, got %q", c.VideoWriter.FourCC)
	}
	if c.Events.QueueSize < 0 || c.Events.Workers < 0 {
		return fmt.Errorf("events.queue_size and events.workers must not be negative")
	}
	return nil
}

// ObserverConfig builds and validates the per-source observer configuration.
func (c *Config) ObserverConfig() (observer.Config, error) {
	cfg := observer.Config{
		TrackBuffer:    c.Detection.TrackBuffer,
		VehicleClasses: c.Detection.VehicleClasses,
		Motion: observer.MotionConfig{
			MinMovement:   c.Motion.MinMovement,
			Interval:      c.Motion.Interval,
			MaxIter:       c.Motion.MaxIter,
			AnomalyWindow: c.Motion.AnomalyWindow,
			MinAnomalies:  c.Motion.MinAnomalies,
			MinStep:       c.Motion.MinStep,
			TurnAngle:     c.Motion.TurnAngle,
			SpeedZScore:   c.Motion.SpeedZScore,
		},
	}
	if c.Detection.DangerAlertFrames != nil {
		cfg.DangerAlertFrames = *c.Detection.DangerAlertFrames
	}
	for i, roi := range c.SourceInfo.TrafficROI {
		vertices := make([]observer.Point, 0, len(roi))
		for _, v := range roi {
			vertices = append(vertices, observer.Point{X: v[0], Y: v[1]})
		}
		z, err := observer.NewZone(vertices)
		if err != nil {
			return observer.Config{}, fmt.Errorf("traffic_roi[%d]: %w", i, err)
		}
		cfg.Zones = append(cfg.Zones, z)
	}
	if err := cfg.Validate(); err != nil {
		return observer.Config{}, err
	}
	return cfg, nil
}

// RenderEnabled reports whether any overlay output is configured.
func (c *Config) RenderEnabled() bool {
	return c.Render.SaveImage || c.VideoWriter.Write
}

func (c *Config) EmitterConfig() event.EmitterConfig {
	return event.EmitterConfig{
		QueueSize:       c.Events.QueueSize,
		Workers:         c.Events.Workers,
		DeliverTimeout:  c.Events.DeliverTimeout,
		ShutdownTimeout: c.Events.ShutdownTimeout,
	}
}
